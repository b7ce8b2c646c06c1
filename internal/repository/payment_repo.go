package repository

import (
	"context"
	"errors"
	"time"

	"eggbot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPaymentNotFound      = errors.New("支付记录不存在")
	ErrDuplicatePayment     = errors.New("支付已处理，重复通知")
	ErrPaymentStatusInvalid = errors.New("支付状态不合法")
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// InsertReceived 以 RECEIVED 状态写入支付记录
//
// 【关键点】幂等由 charge_id 唯一索引保证，不是先查后插：
// 同一笔扣款的两次通知并发到达时，只有一次 INSERT 真正落库，
// 另一次 RowsAffected = 0，返回 ErrDuplicatePayment。
func (r *PaymentRepository) InsertReceived(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	payment.Status = model.SettlementReceived
	result := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "charge_id"}},
			DoNothing: true,
		}).
		Create(payment)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (r *PaymentRepository) GetByChargeID(ctx context.Context, tx *gorm.DB, chargeID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(r.db, tx).WithContext(ctx).Where("charge_id = ?", chargeID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// MarkApplied RECEIVED -> APPLIED，条件更新保证只有一个调用方能完成状态翻转
func (r *PaymentRepository) MarkApplied(ctx context.Context, tx *gorm.DB, chargeID string, appliedAt time.Time) error {
	if !model.SettlementReceived.CanTransitionTo(model.SettlementApplied) {
		return ErrPaymentStatusInvalid
	}

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("charge_id = ? AND status = ?", chargeID, model.SettlementReceived).
		Updates(map[string]interface{}{
			"status":     model.SettlementApplied,
			"applied_at": &appliedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentStatusInvalid
	}
	return nil
}

// GetReceivedBefore 查询停留在 RECEIVED 的支付（写入记录后、入账前进程崩溃）
func (r *PaymentRepository) GetReceivedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.SettlementReceived, before).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Payment{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(page, pageSize)
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error

	return payments, total, err
}
