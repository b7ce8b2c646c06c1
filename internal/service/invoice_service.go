package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/lock"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/model"
	"eggbot/internal/repository"
	"eggbot/pkg/idgen"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceService 购买意向
//
// 账单只决定"让用户付多少钱"，不影响额度；额度只在 SettlementService 收到支付后变化。
type InvoiceService struct {
	db          *gorm.DB
	cfg         *config.Config
	locks       lock.Provider
	invoiceRepo *repository.InvoiceRepository
}

func NewInvoiceService(db *gorm.DB, cfg *config.Config, locks lock.Provider) *InvoiceService {
	if locks == nil {
		locks = lock.NewLocalProvider()
	}
	return &InvoiceService{
		db:          db,
		cfg:         cfg,
		locks:       locks,
		invoiceRepo: repository.NewInvoiceRepository(db),
	}
}

// CreateInvoice 创建账单，同一用户同一数量未过期的账单直接复用
//
// 用户连点"购买"时，锁保证只生成一张账单
func (s *InvoiceService) CreateInvoice(ctx context.Context, userID, quantity int64, requestID string) (*model.Invoice, bool, error) {
	if quantity < 1 || quantity > s.cfg.Business.MaxPurchaseQuantity {
		return nil, false, fmt.Errorf("%w: %d (1-%d)", ErrInvalidQuantity, quantity, s.cfg.Business.MaxPurchaseQuantity)
	}

	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	owner := requestID
	if owner == "" {
		var err error
		if owner, err = gonanoid.New(); err != nil {
			return nil, false, fmt.Errorf("生成锁标识失败: %w", err)
		}
	}

	invoiceLock := lock.NewInvoiceLock(s.locks, userID, owner)
	if err := invoiceLock.Lock(ctx, 50*time.Millisecond, 20); err != nil {
		return nil, false, fmt.Errorf("%w: 系统繁忙，请稍后重试: %v", ErrPersistenceUnavailable, err)
	}
	defer func() {
		if err := invoiceLock.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("释放账单锁失败", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()

	now := time.Now()
	existing, err := s.invoiceRepo.GetOpen(ctx, userID, quantity, now)
	if err != nil {
		return nil, false, fmt.Errorf("查询账单失败: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	invoice := &model.Invoice{
		InvoiceNo: idgen.GenerateInvoiceNo(),
		UserID:    userID,
		Quantity:  quantity,
		Amount:    quantity * s.cfg.Business.CreditUnitPrice,
		Currency:  s.cfg.Business.Currency,
		Status:    model.InvoiceStatusCreated,
		ExpiredAt: now.Add(s.cfg.Business.InvoiceTimeout()),
	}
	if err := s.invoiceRepo.Create(ctx, nil, invoice); err != nil {
		return nil, false, fmt.Errorf("创建账单失败: %w", err)
	}

	logger.Info("账单已创建",
		zap.String("invoice_no", invoice.InvoiceNo),
		zap.Int64("user_id", userID),
		zap.Int64("quantity", quantity),
		zap.Int64("amount", invoice.Amount))
	return invoice, false, nil
}

// ValidatePreCheckout 支付渠道扣款前的确认
// 只接受未过期、未支付、币种和金额一致的账单
func (s *InvoiceService) ValidatePreCheckout(ctx context.Context, invoiceNo, currency string, amount int64) error {
	if currency != s.cfg.Business.Currency {
		return fmt.Errorf("%w: 不支持的币种 %s", ErrInvalidPreCheckout, currency)
	}

	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	invoice, err := s.invoiceRepo.GetByInvoiceNo(ctx, nil, invoiceNo)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			return fmt.Errorf("%w: 账单不存在", ErrInvalidPreCheckout)
		}
		return err
	}
	if !invoice.Open(time.Now()) {
		return fmt.Errorf("%w: 账单已失效", ErrInvalidPreCheckout)
	}
	if invoice.Amount != amount {
		return fmt.Errorf("%w: 金额不一致 %d != %d", ErrInvalidPreCheckout, amount, invoice.Amount)
	}
	return nil
}

// CloseExpired 关闭过期未付的账单，返回关闭的数量
func (s *InvoiceService) CloseExpired(ctx context.Context, limit int) (int, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	invoices, err := s.invoiceRepo.GetExpired(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, inv := range invoices {
		err := s.invoiceRepo.UpdateStatus(ctx, nil, inv.InvoiceNo, model.InvoiceStatusCreated, model.InvoiceStatusClosed)
		if err != nil {
			// 并发支付已把它置为 PAID
			if errors.Is(err, repository.ErrInvoiceStatusInvalid) {
				continue
			}
			logger.Error("关闭账单失败", zap.String("invoice_no", inv.InvoiceNo), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}
