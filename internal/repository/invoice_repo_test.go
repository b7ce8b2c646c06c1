package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"eggbot/internal/model"
	"eggbot/internal/testkit"
)

func TestInvoiceLifecycle(t *testing.T) {
	repo := NewInvoiceRepository(testkit.NewDB(t))
	ctx := context.Background()
	now := time.Now()

	open := &model.Invoice{InvoiceNo: "INV1", UserID: 1, Quantity: 5, Amount: 50, Currency: "XTR",
		Status: model.InvoiceStatusCreated, ExpiredAt: now.Add(time.Hour)}
	stale := &model.Invoice{InvoiceNo: "INV2", UserID: 1, Quantity: 3, Amount: 30, Currency: "XTR",
		Status: model.InvoiceStatusCreated, ExpiredAt: now.Add(-time.Minute)}
	for _, inv := range []*model.Invoice{open, stale} {
		if err := repo.Create(ctx, nil, inv); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.GetOpen(ctx, 1, 5, now)
	if err != nil || got == nil || got.InvoiceNo != "INV1" {
		t.Fatalf("GetOpen: got=%v err=%v", got, err)
	}
	if got, _ := repo.GetOpen(ctx, 1, 3, now); got != nil {
		t.Fatalf("expired invoice returned as open: %v", got.InvoiceNo)
	}

	expired, err := repo.GetExpired(ctx, now, 10)
	if err != nil || len(expired) != 1 || expired[0].InvoiceNo != "INV2" {
		t.Fatalf("GetExpired: got=%v err=%v", expired, err)
	}
	if err := repo.UpdateStatus(ctx, nil, "INV2", model.InvoiceStatusCreated, model.InvoiceStatusClosed); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, nil, "INV2", model.InvoiceStatusCreated, model.InvoiceStatusClosed); !errors.Is(err, ErrInvoiceStatusInvalid) {
		t.Fatalf("second close: got=%v", err)
	}

	// late payment on a closed invoice still lands
	if err := repo.MarkPaid(ctx, nil, "INV2", "charge-late", now); err != nil {
		t.Fatalf("MarkPaid on closed invoice failed: %v", err)
	}
	if err := repo.MarkPaid(ctx, nil, "INV2", "charge-late", now); !errors.Is(err, ErrInvoiceStatusInvalid) {
		t.Fatalf("MarkPaid twice: got=%v", err)
	}
	paid, err := repo.GetByInvoiceNo(ctx, nil, "INV2")
	if err != nil {
		t.Fatalf("GetByInvoiceNo failed: %v", err)
	}
	if paid.Status != model.InvoiceStatusPaid || paid.ChargeID != "charge-late" {
		t.Fatalf("unexpected invoice: status=%s charge=%s", paid.Status, paid.ChargeID)
	}

	if _, err := repo.GetByInvoiceNo(ctx, nil, "missing"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}
