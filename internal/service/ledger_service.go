package service

import (
	"context"
	"errors"
	"fmt"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/model"
	"eggbot/internal/repository"
	"eggbot/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService 开蛋额度账本
//
// 账户有两个额度桶：免费（首次访问赠送）和购买（支付入账）。
// 消耗时先扣免费，再扣购买；每次变动都写一条流水。
type LedgerService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedgerService(db *gorm.DB, cfg *config.Config) *LedgerService {
	return &LedgerService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// EnsureAccount 幂等创建账户，首次创建时赠送免费额度
func (s *LedgerService) EnsureAccount(ctx context.Context, userID int64, displayName string) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var account *model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = s.ensure(ctx, tx, userID, displayName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) ensure(ctx context.Context, tx *gorm.DB, userID int64, displayName string) (*model.Account, error) {
	grant := s.cfg.Business.FreeCreditGrant
	account, created, err := s.accountRepo.Ensure(ctx, tx, userID, displayName, grant)
	if err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}
	if created {
		logger.Info("新账户", zap.Int64("user_id", userID), zap.Int64("free_credits", account.FreeCredits))
		if grant > 0 {
			if err := s.journal(ctx, tx, account, model.TransactionTypeGrantFree, model.BucketFree, grant, "", "新用户赠送"); err != nil {
				return nil, err
			}
		}
	}
	return account, nil
}

// AvailableCredits 可用额度 = 免费 + 购买
func (s *LedgerService) AvailableCredits(account *model.Account) int64 {
	return account.AvailableCredits()
}

// GetAccount 查询账户，读操作失败时会退避重试
func (s *LedgerService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return retryRead(ctx, s.cfg, func(ctx context.Context) (*model.Account, error) {
		return s.accountRepo.GetByUserID(ctx, nil, userID)
	})
}

// ConsumeOneCredit 扣减一个额度
// 额度不足时返回 ErrInsufficientCredits，账户不变
func (s *LedgerService) ConsumeOneCredit(ctx context.Context, userID int64) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var account *model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			bucket string
			err    error
		)
		account, bucket, err = s.consume(ctx, tx, userID)
		if err != nil {
			return err
		}
		return s.journal(ctx, tx, account, model.TransactionTypeConsume, bucket, -1, "", "")
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// consume 只扣额度不写流水，调用方在同一事务里补流水（开蛋时流水要带上抽中的手办）
func (s *LedgerService) consume(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, string, error) {
	bucket, err := s.accountRepo.ConsumeOne(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) || errors.Is(err, repository.ErrAccountNotFound) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("扣减额度失败: %w", err)
	}
	account, err := s.accountRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("查询账户失败: %w", err)
	}
	return account, bucket, nil
}

// GrantPurchasedCredits 增加购买额度
// 不做幂等判断，幂等由 SettlementService 在调用前保证
func (s *LedgerService) GrantPurchasedCredits(ctx context.Context, userID int64, count int64) (*model.Account, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var account *model.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		account, err = s.grant(ctx, tx, userID, count, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) grant(ctx context.Context, tx *gorm.DB, userID int64, count int64, reference, remark string) (*model.Account, error) {
	if count <= 0 {
		return nil, ErrInvalidCreditCount
	}
	if err := s.accountRepo.IncreasePurchased(ctx, tx, userID, count); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("入账失败: %w", err)
	}
	account, err := s.accountRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询账户失败: %w", err)
	}
	if err := s.journal(ctx, tx, account, model.TransactionTypePurchase, model.BucketPurchased, count, reference, remark); err != nil {
		return nil, err
	}
	return account, nil
}

// journal 记录额度流水，account 必须是变动之后的状态
func (s *LedgerService) journal(ctx context.Context, tx *gorm.DB, account *model.Account, txType, bucket string, delta int64, reference, remark string) error {
	trans := &model.CreditTransaction{
		TransactionNo:         idgen.GenerateTransactionNo(),
		UserID:                account.UserID,
		Type:                  txType,
		Bucket:                bucket,
		Delta:                 delta,
		FreeCreditsAfter:      account.FreeCredits,
		PurchasedCreditsAfter: account.PurchasedCredits,
		Reference:             reference,
		Remark:                remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
