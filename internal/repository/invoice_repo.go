package repository

import (
	"context"
	"errors"
	"time"

	"eggbot/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound      = errors.New("账单不存在")
	ErrInvoiceStatusInvalid = errors.New("账单状态不合法")
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, tx *gorm.DB, invoice *model.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByInvoiceNo(ctx context.Context, tx *gorm.DB, invoiceNo string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := conn(r.db, tx).WithContext(ctx).Where("invoice_no = ?", invoiceNo).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// GetOpen 查询用户同数量、未过期的待支付账单，没有返回 nil
func (r *InvoiceRepository) GetOpen(ctx context.Context, userID, quantity int64, now time.Time) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND quantity = ? AND status = ? AND expired_at > ?",
			userID, quantity, model.InvoiceStatusCreated, now).
		Order("created_at DESC").
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// MarkPaid CREATED -> PAID，已关闭（过期）的账单只要钱到了也允许入账，所以不校验 expired_at
func (r *InvoiceRepository) MarkPaid(ctx context.Context, tx *gorm.DB, invoiceNo, chargeID string, paidAt time.Time) error {
	updates := map[string]interface{}{
		"status":    model.InvoiceStatusPaid,
		"charge_id": chargeID,
		"paid_at":   &paidAt,
	}
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Invoice{}).
		Where("invoice_no = ? AND status IN ?", invoiceNo, []string{model.InvoiceStatusCreated, model.InvoiceStatusClosed}).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvoiceStatusInvalid
	}
	return nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, invoiceNo string, fromStatus, toStatus string) error {
	if !model.CanInvoiceTransitionTo(fromStatus, toStatus) {
		return ErrInvoiceStatusInvalid
	}

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Invoice{}).
		Where("invoice_no = ? AND status = ?", invoiceNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInvoiceStatusInvalid
	}

	return nil
}

func (r *InvoiceRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	err := r.db.WithContext(ctx).
		Where("status = ? AND expired_at < ?", model.InvoiceStatusCreated, now).
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}
