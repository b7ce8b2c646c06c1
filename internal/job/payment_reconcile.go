package job

import (
	"context"
	"errors"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/model"
	"eggbot/internal/service"

	"go.uber.org/zap"
)

type settlementRepairer interface {
	ListStuck(ctx context.Context, age time.Duration, limit int) ([]*model.Payment, error)
	ApplyReceived(ctx context.Context, chargeID string) (*service.SettlementResult, error)
}

// PaymentReconcileJob 补偿停在 RECEIVED 的支付
//
// 支付记录写入后、入账事务提交前进程崩溃，记录会一直是 RECEIVED。
// 只处理超过 reconcile_after 的记录，避免和正在进行的 Settle 抢同一笔。
type PaymentReconcileJob struct {
	settlement settlementRepairer
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewPaymentReconcileJob(settlement settlementRepairer, cfg *config.Config) *PaymentReconcileJob {
	return &PaymentReconcileJob{
		settlement: settlement,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   30 * time.Second,
		batchSize:  50,
	}
}

func (j *PaymentReconcileJob) Start(ctx context.Context) {
	logger.Info("[PaymentReconcileJob] 支付对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[PaymentReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logger.Info("[PaymentReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *PaymentReconcileJob) Stop() {
	close(j.stopCh)
}

func (j *PaymentReconcileJob) reconcile(ctx context.Context) int {
	payments, err := j.settlement.ListStuck(ctx, j.cfg.Business.ReconcileAfter(), j.batchSize)
	if err != nil {
		logger.Error("[PaymentReconcileJob] 查询待补偿支付失败", zap.Error(err))
		return 0
	}
	if len(payments) == 0 {
		return 0
	}

	logger.Warn("[PaymentReconcileJob] 发现未入账的支付", zap.Int("count", len(payments)))

	repaired := 0
	for _, p := range payments {
		res, err := j.settlement.ApplyReceived(ctx, p.ChargeID)
		switch {
		case err == nil:
			repaired++
			logger.Info("[PaymentReconcileJob] 补偿入账成功",
				zap.String("charge_id", p.ChargeID),
				zap.Int64("user_id", p.UserID),
				zap.Int64("credits", res.CreditsGranted))
		case errors.Is(err, service.ErrAlreadyApplied):
		default:
			logger.Error("[PaymentReconcileJob] 补偿入账失败", zap.String("charge_id", p.ChargeID), zap.Error(err))
		}
	}
	return repaired
}
