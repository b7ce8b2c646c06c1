package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/lock"
	"eggbot/internal/infrastructure/mq"
	"eggbot/internal/model"
	"eggbot/internal/repository"
	"eggbot/internal/service"
	"eggbot/internal/testkit"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

type recordingPublisher struct {
	mu   sync.Mutex
	fail error
	sent []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func seedOutbox(t *testing.T, repo *repository.OutboxRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := &model.OutboxMessage{
			MessageKey: "1",
			Topic:      "eggbot.game",
			EventType:  model.EventEggOpened,
			Payload:    `{"user_id":1}`,
			Status:     model.OutboxStatusPending,
		}
		if err := repo.Create(context.Background(), nil, msg); err != nil {
			t.Fatalf("seed outbox: %v", err)
		}
	}
}

func TestOutboxSenderDeliversPending(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, 3)

	pub := &recordingPublisher{}
	sender := NewOutboxSender(db, pub, config.Default())

	if sent := sender.processPendingMessages(context.Background()); sent != 3 {
		t.Fatalf("unexpected sent count: got=%d want=3", sent)
	}
	if len(pub.sent) != 3 {
		t.Fatalf("publisher saw %d messages", len(pub.sent))
	}
	if n, _ := repo.CountByStatus(context.Background(), model.OutboxStatusSent); n != 3 {
		t.Fatalf("unexpected SENT count: got=%d want=3", n)
	}
	if sent := sender.processPendingMessages(context.Background()); sent != 0 {
		t.Fatalf("sent messages must not be redelivered: got=%d", sent)
	}
}

func TestOutboxSenderGivesUpAfterMaxRetry(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, 1)

	cfg := config.Default()
	cfg.Business.MaxRetryCount = 2
	sender := NewOutboxSender(db, &recordingPublisher{fail: errors.New("broker down")}, cfg)

	ctx := context.Background()
	sender.processPendingMessages(ctx)
	if n, _ := repo.CountByStatus(ctx, model.OutboxStatusPending); n != 1 {
		t.Fatalf("message should stay pending after first failure: got=%d", n)
	}
	sender.processPendingMessages(ctx)
	if n, _ := repo.CountByStatus(ctx, model.OutboxStatusFailed); n != 1 {
		t.Fatalf("message should be FAILED after max retries: got=%d", n)
	}
}

func TestOutboxSenderThroughKafkaPublisher(t *testing.T) {
	db := testkit.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, 2)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), config.Default())
	if sent := sender.processPendingMessages(context.Background()); sent != 1 {
		t.Fatalf("unexpected sent count: got=%d want=1", sent)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("producer close: %v", err)
	}

	var failed model.OutboxMessage
	db.Where("status = ?", model.OutboxStatusPending).First(&failed)
	if failed.RetryCount != 1 {
		t.Fatalf("failed delivery should count a retry: got=%d", failed.RetryCount)
	}
}

func TestOutboxSenderStops(t *testing.T) {
	db := testkit.NewDB(t)
	sender := NewOutboxSender(db, mq.LogPublisher{}, config.Default())

	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()
	sender.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not stop")
	}
}

func TestInvoiceTimeoutJobClosesExpired(t *testing.T) {
	db := testkit.NewDB(t)
	cfg := config.Default()
	invoices := service.NewInvoiceService(db, cfg, lock.NewLocalProvider())
	ctx := context.Background()

	inv, _, err := invoices.CreateInvoice(ctx, 1, 1, "")
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	db.Model(&model.Invoice{}).Where("invoice_no = ?", inv.InvoiceNo).
		Update("expired_at", time.Now().Add(-time.Second))

	j := NewInvoiceTimeoutJob(invoices)
	if closed := j.closeExpiredInvoices(ctx); closed != 1 {
		t.Fatalf("unexpected closed count: got=%d want=1", closed)
	}

	got, err := repository.NewInvoiceRepository(db).GetByInvoiceNo(ctx, nil, inv.InvoiceNo)
	if err != nil {
		t.Fatalf("GetByInvoiceNo failed: %v", err)
	}
	if got.Status != model.InvoiceStatusClosed {
		t.Fatalf("unexpected status: %s", got.Status)
	}
}

func TestPaymentReconcileJobRepairsOnce(t *testing.T) {
	db := testkit.NewDB(t)
	cfg := config.Default()
	cfg.Business.ReconcileAfterSeconds = -60
	ledger := service.NewLedgerService(db, cfg)
	settlement := service.NewSettlementService(db, cfg, ledger)
	ctx := context.Background()

	if _, err := ledger.EnsureAccount(ctx, 1, "alice"); err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	stuck := &model.Payment{
		ChargeID:        "ch_stuck",
		UserID:          1,
		AmountPaid:      20,
		CreditUnitPrice: 10,
		CreditsGranted:  2,
		Currency:        "XTR",
	}
	if err := repository.NewPaymentRepository(db).InsertReceived(ctx, nil, stuck); err != nil {
		t.Fatalf("InsertReceived failed: %v", err)
	}

	j := NewPaymentReconcileJob(settlement, cfg)
	if repaired := j.reconcile(ctx); repaired != 1 {
		t.Fatalf("unexpected repaired count: got=%d want=1", repaired)
	}
	if repaired := j.reconcile(ctx); repaired != 0 {
		t.Fatalf("second pass must not repair again: got=%d", repaired)
	}

	acct, err := ledger.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.PurchasedCredits != 2 {
		t.Fatalf("unexpected purchased credits: got=%d want=2", acct.PurchasedCredits)
	}
}
