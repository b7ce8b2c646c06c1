package repository

import (
	"context"

	"eggbot/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return conn(r.db, tx).WithContext(ctx).Create(msg).Error
}

func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Update("status", model.OutboxStatusSent).Error
}

// RecordFailure 投递失败：重试次数 +1，达到上限标记为 FAILED，返回是否已放弃
func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64, maxRetry int) (bool, error) {
	var giveUp bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.OutboxMessage
		if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
		}
		if msg.RetryCount+1 >= maxRetry {
			updates["status"] = model.OutboxStatusFailed
			giveUp = true
		}
		return tx.Model(&model.OutboxMessage{}).Where("id = ?", id).Updates(updates).Error
	})
	return giveUp, err
}

func (r *OutboxRepository) GetFailedMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusFailed).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OutboxMessage{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
