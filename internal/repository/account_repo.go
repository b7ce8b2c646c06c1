package repository

import (
	"context"
	"errors"

	"eggbot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound     = errors.New("账户不存在")
	ErrInsufficientCredits = errors.New("开蛋额度不足")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := conn(r.db, tx).WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Ensure 幂等创建账户
//
// 不存在：插入，免费额度 = freeGrant，created = true
// 已存在：只更新展示名（最后一次写入为准，空名不覆盖）
//
// 插入依赖 user_id 唯一索引 + ON CONFLICT DO NOTHING，并发首次访问也只会建一个账户
func (r *AccountRepository) Ensure(ctx context.Context, tx *gorm.DB, userID int64, displayName string, freeGrant int64) (*model.Account, bool, error) {
	db := conn(r.db, tx).WithContext(ctx)

	newAccount := &model.Account{
		UserID:           userID,
		DisplayName:      displayName,
		FreeCredits:      freeGrant,
		PurchasedCredits: 0,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(newAccount)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0

	if !created && displayName != "" {
		err := db.Model(&model.Account{}).
			Where("user_id = ? AND display_name <> ?", userID, displayName).
			Update("display_name", displayName).Error
		if err != nil {
			return nil, false, err
		}
	}

	account, err := r.GetByUserID(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	return account, created, nil
}

// ConsumeOne 扣减一个开蛋额度，返回被扣的额度桶
//
// 【关键点】每一步都是带条件的原子 UPDATE，而不是"先查再写"：
//
//	第一步：free_credits > 0 时扣免费额度
//	第二步：第一步没命中，purchased_credits > 0 时扣购买额度
//	都没命中：额度不足
//
// 两个请求同时抢最后一个额度时，数据库保证只有一个 UPDATE 命中。
func (r *AccountRepository) ConsumeOne(ctx context.Context, tx *gorm.DB, userID int64) (string, error) {
	db := conn(r.db, tx).WithContext(ctx)

	result := db.Model(&model.Account{}).
		Where("user_id = ? AND free_credits > 0", userID).
		Updates(map[string]interface{}{
			"free_credits": gorm.Expr("free_credits - 1"),
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected > 0 {
		return model.BucketFree, nil
	}

	result = db.Model(&model.Account{}).
		Where("user_id = ? AND purchased_credits > 0", userID).
		Updates(map[string]interface{}{
			"purchased_credits": gorm.Expr("purchased_credits - 1"),
			"version":           gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected > 0 {
		return model.BucketPurchased, nil
	}

	if _, err := r.GetByUserID(ctx, tx, userID); err != nil {
		return "", err
	}
	return "", ErrInsufficientCredits
}

// IncreasePurchased 增加购买额度
func (r *AccountRepository) IncreasePurchased(ctx context.Context, tx *gorm.DB, userID int64, count int64) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"purchased_credits": gorm.Expr("purchased_credits + ?", count),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
