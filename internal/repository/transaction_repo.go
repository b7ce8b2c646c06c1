package repository

import (
	"context"

	"eggbot/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.CreditTransaction) error {
	return conn(r.db, tx).WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	var transactions []*model.CreditTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.CreditTransaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(page, pageSize)
	err = query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) CountByReference(ctx context.Context, userID int64, txType, reference string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditTransaction{}).
		Where("user_id = ? AND type = ? AND reference = ?", userID, txType, reference).
		Count(&n).Error
	return n, err
}
