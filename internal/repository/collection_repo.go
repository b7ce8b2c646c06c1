package repository

import (
	"context"
	"time"

	"eggbot/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Increment 收集数量 +1，不存在时以 1 插入
//
// INSERT ... ON CONFLICT (user_id, item_slug) DO UPDATE SET quantity = quantity + 1
// 单条语句完成，同一用户同一手办的并发记录互不覆盖
func (r *CollectionRepository) Increment(ctx context.Context, tx *gorm.DB, userID int64, itemSlug string) error {
	entry := &model.CollectionEntry{
		UserID:   userID,
		ItemSlug: itemSlug,
		Quantity: 1,
	}
	return conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "item_slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("quantity + ?", 1),
				"updated_at": time.Now(),
			}),
		}).
		Create(entry).Error
}

// ListByUserID 按数量倒序、slug 正序
func (r *CollectionRepository) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.CollectionEntry, error) {
	var entries []*model.CollectionEntry
	err := conn(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("quantity DESC").
		Order("item_slug ASC").
		Find(&entries).Error
	return entries, err
}

func (r *CollectionRepository) Get(ctx context.Context, tx *gorm.DB, userID int64, itemSlug string) (*model.CollectionEntry, error) {
	var entry model.CollectionEntry
	err := conn(r.db, tx).WithContext(ctx).
		Where("user_id = ? AND item_slug = ?", userID, itemSlug).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}
