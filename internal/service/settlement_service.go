package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/model"
	"eggbot/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService 支付入账
//
// 【核心保证】同一个 charge_id 无论通知多少次、并发多少个，额度只加一次。
// 实现分两步：
//
//	第一步：以 RECEIVED 写入支付记录（charge_id 唯一索引去重）
//	第二步：一个事务内 RECEIVED -> APPLIED + 加额度 + 流水 + 账单置为已付 + 发事件
//
// 两步之间进程崩溃，记录会停在 RECEIVED，由 PaymentReconcileJob 调用 ApplyReceived 补齐。
type SettlementService struct {
	db          *gorm.DB
	cfg         *config.Config
	ledger      *LedgerService
	paymentRepo *repository.PaymentRepository
	invoiceRepo *repository.InvoiceRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, cfg *config.Config, ledger *LedgerService) *SettlementService {
	return &SettlementService{
		db:          db,
		cfg:         cfg,
		ledger:      ledger,
		paymentRepo: repository.NewPaymentRepository(db),
		invoiceRepo: repository.NewInvoiceRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// PaymentConfirmation 支付渠道的成功通知
type PaymentConfirmation struct {
	ChargeID        string `json:"charge_id" binding:"required"`
	UserID          int64  `json:"user_id" binding:"required"`
	DisplayName     string `json:"display_name"`
	AmountPaid      int64  `json:"amount_paid"`
	CreditUnitPrice int64  `json:"credit_unit_price"`
	Currency        string `json:"currency"`
	InvoiceNo       string `json:"invoice_no"`
}

type SettlementResult struct {
	State          model.SettlementState `json:"state"`
	ChargeID       string                `json:"charge_id"`
	CreditsGranted int64                 `json:"credits_granted"`
	// RecordStatus 重复通知时已有记录的状态
	RecordStatus model.SettlementState `json:"record_status,omitempty"`
	Account      *model.Account        `json:"account,omitempty"`
}

func (s *SettlementService) validate(req *PaymentConfirmation) error {
	if req.ChargeID == "" || req.UserID == 0 {
		return ErrInvalidPayment
	}
	if req.AmountPaid <= 0 || req.CreditUnitPrice <= 0 {
		return fmt.Errorf("%w: amount=%d, unit_price=%d", ErrInvalidAmount, req.AmountPaid, req.CreditUnitPrice)
	}
	if req.AmountPaid%req.CreditUnitPrice != 0 {
		return fmt.Errorf("%w: %d 不是 %d 的整数倍", ErrInvalidAmount, req.AmountPaid, req.CreditUnitPrice)
	}
	if req.Currency != "" && req.Currency != s.cfg.Business.Currency {
		return fmt.Errorf("%w: 币种 %s", ErrInvalidAmount, req.Currency)
	}
	return nil
}

// Settle 处理一次支付通知
//
// 拒绝时同时返回结果和错误，errors.Is(err, ErrDuplicatePayment / ErrInvalidAmount) 可判断原因
func (s *SettlementService) Settle(ctx context.Context, req *PaymentConfirmation) (*SettlementResult, error) {
	result := &SettlementResult{ChargeID: req.ChargeID}

	if err := s.validate(req); err != nil {
		logger.Warn("支付通知不合法", zap.String("charge_id", req.ChargeID), zap.Int64("user_id", req.UserID), zap.Error(err))
		result.State = model.SettlementRejectedInvalid
		return result, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	// 支付通知可能先于任何游戏指令到达
	if _, err := s.ledger.EnsureAccount(ctx, req.UserID, req.DisplayName); err != nil {
		result.State = model.SettlementReceived
		return result, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Business.Currency
	}
	payment := &model.Payment{
		ChargeID:        req.ChargeID,
		UserID:          req.UserID,
		AmountPaid:      req.AmountPaid,
		CreditUnitPrice: req.CreditUnitPrice,
		CreditsGranted:  req.AmountPaid / req.CreditUnitPrice,
		Currency:        currency,
		InvoiceNo:       req.InvoiceNo,
	}

	if err := s.paymentRepo.InsertReceived(ctx, nil, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			result.State = model.SettlementRejectedDuplicate
			if existing, getErr := s.paymentRepo.GetByChargeID(ctx, nil, req.ChargeID); getErr == nil {
				result.RecordStatus = existing.Status
			}
			logger.Info("重复的支付通知", zap.String("charge_id", req.ChargeID), zap.String("record_status", string(result.RecordStatus)))
			return result, ErrDuplicatePayment
		}
		result.State = model.SettlementReceived
		return result, fmt.Errorf("写入支付记录失败: %w", err)
	}

	account, err := s.apply(ctx, payment)
	if errors.Is(err, ErrAlreadyApplied) {
		// 对账任务抢先补齐了这笔支付
		account, err = s.ledger.GetAccount(ctx, req.UserID)
	}
	if err != nil {
		logger.Error("支付入账失败，等待对账补偿",
			zap.String("charge_id", req.ChargeID),
			zap.Int64("user_id", req.UserID),
			zap.Error(err))
		result.State = model.SettlementReceived
		return result, err
	}

	logger.Info("支付入账成功",
		zap.String("charge_id", req.ChargeID),
		zap.Int64("user_id", req.UserID),
		zap.Int64("credits", payment.CreditsGranted),
		zap.Int64("purchased_credits", account.PurchasedCredits))

	result.State = model.SettlementApplied
	result.CreditsGranted = payment.CreditsGranted
	result.Account = account
	return result, nil
}

// ApplyReceived 补齐停在 RECEIVED 的支付
// 已被其他调用方入账时返回 ErrAlreadyApplied
func (s *SettlementService) ApplyReceived(ctx context.Context, chargeID string) (*SettlementResult, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	payment, err := s.paymentRepo.GetByChargeID(ctx, nil, chargeID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.SettlementReceived {
		return &SettlementResult{State: payment.Status, ChargeID: chargeID}, ErrAlreadyApplied
	}

	account, err := s.apply(ctx, payment)
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			return &SettlementResult{State: model.SettlementApplied, ChargeID: chargeID}, err
		}
		return nil, err
	}
	return &SettlementResult{
		State:          model.SettlementApplied,
		ChargeID:       chargeID,
		CreditsGranted: payment.CreditsGranted,
		Account:        account,
	}, nil
}

func (s *SettlementService) apply(ctx context.Context, payment *model.Payment) (*model.Account, error) {
	var account *model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// 状态翻转是这一步的锁：只有一个事务能命中 status = RECEIVED
		if err := s.paymentRepo.MarkApplied(ctx, tx, payment.ChargeID, now); err != nil {
			if errors.Is(err, repository.ErrPaymentStatusInvalid) {
				return ErrAlreadyApplied
			}
			return fmt.Errorf("更新支付状态失败: %w", err)
		}

		var err error
		account, err = s.ledger.grant(ctx, tx, payment.UserID, payment.CreditsGranted, payment.ChargeID, "支付入账")
		if err != nil {
			return err
		}

		if payment.InvoiceNo != "" {
			err := s.invoiceRepo.MarkPaid(ctx, tx, payment.InvoiceNo, payment.ChargeID, now)
			switch {
			case err == nil:
			case errors.Is(err, repository.ErrInvoiceNotFound), errors.Is(err, repository.ErrInvoiceStatusInvalid):
				// 账单只是意向，找不到或已付不影响入账
				logger.Warn("支付关联的账单无法置为已付",
					zap.String("charge_id", payment.ChargeID),
					zap.String("invoice_no", payment.InvoiceNo),
					zap.Error(err))
			default:
				return fmt.Errorf("更新账单失败: %w", err)
			}
		}

		msg, err := newOutboxMessage(s.cfg.Kafka.Topic.PaymentEvents, model.EventPaymentApplied, payment.UserID, map[string]interface{}{
			"charge_id":         payment.ChargeID,
			"user_id":           payment.UserID,
			"amount_paid":       payment.AmountPaid,
			"currency":          payment.Currency,
			"credits_granted":   payment.CreditsGranted,
			"purchased_credits": account.PurchasedCredits,
			"invoice_no":        payment.InvoiceNo,
			"applied_at":        now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListStuck 停留在 RECEIVED 超过 age 的支付
func (s *SettlementService) ListStuck(ctx context.Context, age time.Duration, limit int) ([]*model.Payment, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return s.paymentRepo.GetReceivedBefore(ctx, time.Now().Add(-age), limit)
}

func (s *SettlementService) ListPayments(ctx context.Context, userID int64, page, pageSize int) ([]*model.Payment, int64, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return s.paymentRepo.ListByUserID(ctx, userID, page, pageSize)
}
