package service

import (
	"context"
	"fmt"
	"sort"

	"eggbot/internal/catalog"
	"eggbot/internal/config"
	"eggbot/internal/repository"

	"gorm.io/gorm"
)

type CollectionService struct {
	db             *gorm.DB
	cfg            *config.Config
	catalog        *catalog.Catalog
	collectionRepo *repository.CollectionRepository
}

func NewCollectionService(db *gorm.DB, cfg *config.Config, c *catalog.Catalog) *CollectionService {
	return &CollectionService{
		db:             db,
		cfg:            cfg,
		catalog:        c,
		collectionRepo: repository.NewCollectionRepository(db),
	}
}

// RecordDraw 收集数量 +1
func (s *CollectionService) RecordDraw(ctx context.Context, userID int64, slug string) error {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return s.record(ctx, nil, userID, slug)
}

func (s *CollectionService) record(ctx context.Context, tx *gorm.DB, userID int64, slug string) error {
	if _, ok := s.catalog.Lookup(slug); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, slug)
	}
	if err := s.collectionRepo.Increment(ctx, tx, userID, slug); err != nil {
		return fmt.Errorf("记录收集失败: %w", err)
	}
	return nil
}

// Snapshot 用户的收集册
// 按数量倒序；数量相同按目录顺序；从未抽到过的手办不出现
func (s *CollectionService) Snapshot(ctx context.Context, userID int64) ([]CollectionItem, error) {
	return retryRead(ctx, s.cfg, func(ctx context.Context) ([]CollectionItem, error) {
		return s.snapshot(ctx, nil, userID)
	})
}

func (s *CollectionService) snapshot(ctx context.Context, tx *gorm.DB, userID int64) ([]CollectionItem, error) {
	entries, err := s.collectionRepo.ListByUserID(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询收集失败: %w", err)
	}

	items := make([]CollectionItem, 0, len(entries))
	for _, e := range entries {
		if e.Quantity <= 0 {
			continue
		}
		item, ok := s.catalog.Lookup(e.ItemSlug)
		if !ok {
			// 目录下架的手办仍然展示，只是没有图
			item = catalog.Item{Slug: e.ItemSlug, Name: e.ItemSlug}
		}
		items = append(items, CollectionItem{
			Slug:     item.Slug,
			Name:     item.Name,
			MediaRef: item.MediaRef,
			Count:    e.Quantity,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		ii, ij := s.catalog.Index(items[i].Slug), s.catalog.Index(items[j].Slug)
		if ii != ij {
			return ii < ij
		}
		return items[i].Slug < items[j].Slug
	})
	return items, nil
}
