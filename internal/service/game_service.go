package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eggbot/internal/catalog"
	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/model"
	"eggbot/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Drawer 从目录中按概率抽一个手办
type Drawer interface {
	Draw() catalog.Item
}

// GameService 游戏会话入口
//
// 每个操作只返回结构化的 Result，文案由展示层决定。
// 业务失败（额度不足、数量不合法）是 Success=false + ErrorKind，error 为 nil；
// 只有基础设施失败才同时返回 error。
type GameService struct {
	db         *gorm.DB
	cfg        *config.Config
	drawer     Drawer
	ledger     *LedgerService
	collection *CollectionService
	invoices   *InvoiceService
	outboxRepo *repository.OutboxRepository
}

func NewGameService(db *gorm.DB, cfg *config.Config, drawer Drawer, ledger *LedgerService, collection *CollectionService, invoices *InvoiceService) *GameService {
	return &GameService{
		db:         db,
		cfg:        cfg,
		drawer:     drawer,
		ledger:     ledger,
		collection: collection,
		invoices:   invoices,
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

func failure(kind ResultKind, err error) (*Result, error) {
	res := &Result{Success: false, Kind: kind, ErrorKind: KindOf(err)}
	if res.ErrorKind.Transient() {
		return res, err
	}
	return res, nil
}

// Handle 按意图分发
func (s *GameService) Handle(ctx context.Context, cmd *Command) (*Result, error) {
	switch cmd.Intent {
	case IntentStart:
		return s.StartSession(ctx, cmd.UserID, cmd.DisplayName)
	case IntentOpenEgg:
		return s.OpenEgg(ctx, cmd.UserID, cmd.DisplayName)
	case IntentInspect:
		return s.InspectCollection(ctx, cmd.UserID, cmd.DisplayName)
	case IntentRequestPurchase:
		return s.RequestPurchase(ctx, cmd.UserID, cmd.DisplayName, cmd.Quantity, cmd.RequestID)
	default:
		return &Result{Success: false, ErrorKind: ErrorKindInvalidIntent}, nil
	}
}

func (s *GameService) StartSession(ctx context.Context, userID int64, displayName string) (*Result, error) {
	account, err := s.ledger.EnsureAccount(ctx, userID, displayName)
	if err != nil {
		return failure(ResultSessionStarted, err)
	}
	return &Result{
		Success:  true,
		Kind:     ResultSessionStarted,
		Balances: balancesOf(account),
	}, nil
}

// OpenEgg 开一个蛋
//
// 【关键点】扣额度、抽取、记收集、流水、事件在同一个事务里：
// 扣额度失败就不抽；任何一步失败整体回滚，不会出现"扣了额度没拿到手办"。
func (s *GameService) OpenEgg(ctx context.Context, userID int64, displayName string) (*Result, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var (
		account  *model.Account
		drawn    catalog.Item
		snapshot []CollectionItem
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.ensure(ctx, tx, userID, displayName); err != nil {
			return err
		}

		var (
			bucket string
			err    error
		)
		account, bucket, err = s.ledger.consume(ctx, tx, userID)
		if err != nil {
			return err
		}

		drawn = s.drawer.Draw()

		if err := s.collection.record(ctx, tx, userID, drawn.Slug); err != nil {
			return err
		}
		if err := s.ledger.journal(ctx, tx, account, model.TransactionTypeConsume, bucket, -1, drawn.Slug, "开蛋"); err != nil {
			return err
		}

		msg, err := newOutboxMessage(s.cfg.Kafka.Topic.GameEvents, model.EventEggOpened, userID, map[string]interface{}{
			"user_id":           userID,
			"item_slug":         drawn.Slug,
			"bucket":            bucket,
			"free_credits":      account.FreeCredits,
			"purchased_credits": account.PurchasedCredits,
			"opened_at":         time.Now().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		snapshot, err = s.collection.snapshot(ctx, tx, userID)
		return err
	})

	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			res := &Result{Success: false, Kind: ResultEggOpened, ErrorKind: ErrorKindInsufficientCredits}
			if current, getErr := s.ledger.GetAccount(ctx, userID); getErr == nil {
				res.Balances = balancesOf(current)
			}
			return res, nil
		}
		logger.Error("开蛋失败", zap.Int64("user_id", userID), zap.Error(err))
		return failure(ResultEggOpened, err)
	}

	logger.Debug("开蛋", zap.Int64("user_id", userID), zap.String("item", drawn.Slug), zap.Int64("available", account.AvailableCredits()))

	return &Result{
		Success:    true,
		Kind:       ResultEggOpened,
		ItemDrawn:  itemDrawn(drawn),
		Collection: snapshot,
		Balances:   balancesOf(account),
	}, nil
}

func (s *GameService) InspectCollection(ctx context.Context, userID int64, displayName string) (*Result, error) {
	account, err := s.ledger.EnsureAccount(ctx, userID, displayName)
	if err != nil {
		return failure(ResultCollection, err)
	}
	snapshot, err := s.collection.Snapshot(ctx, userID)
	if err != nil {
		return failure(ResultCollection, err)
	}
	return &Result{
		Success:    true,
		Kind:       ResultCollection,
		Collection: snapshot,
		Balances:   balancesOf(account),
	}, nil
}

func (s *GameService) RequestPurchase(ctx context.Context, userID int64, displayName string, quantity int64, requestID string) (*Result, error) {
	if quantity < 1 || quantity > s.cfg.Business.MaxPurchaseQuantity {
		return failure(ResultPurchaseRequested, ErrInvalidQuantity)
	}
	account, err := s.ledger.EnsureAccount(ctx, userID, displayName)
	if err != nil {
		return failure(ResultPurchaseRequested, err)
	}
	invoice, reused, err := s.invoices.CreateInvoice(ctx, userID, quantity, requestID)
	if err != nil {
		return failure(ResultPurchaseRequested, err)
	}
	return &Result{
		Success:  true,
		Kind:     ResultPurchaseRequested,
		Balances: balancesOf(account),
		Invoice:  invoiceViewOf(invoice, reused),
	}, nil
}
