package job

import (
	"context"
	"time"

	"eggbot/internal/infrastructure/logger"

	"go.uber.org/zap"
)

type invoiceCloser interface {
	CloseExpired(ctx context.Context, limit int) (int, error)
}

// InvoiceTimeoutJob 关闭过期未付的账单
type InvoiceTimeoutJob struct {
	invoices  invoiceCloser
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewInvoiceTimeoutJob(invoices invoiceCloser) *InvoiceTimeoutJob {
	return &InvoiceTimeoutJob{
		invoices:  invoices,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

func (j *InvoiceTimeoutJob) Start(ctx context.Context) {
	logger.Info("[InvoiceTimeoutJob] 账单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[InvoiceTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logger.Info("[InvoiceTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.closeExpiredInvoices(ctx)
		}
	}
}

func (j *InvoiceTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *InvoiceTimeoutJob) closeExpiredInvoices(ctx context.Context) int {
	closed, err := j.invoices.CloseExpired(ctx, j.batchSize)
	if err != nil {
		logger.Error("[InvoiceTimeoutJob] 关闭超时账单失败", zap.Error(err))
		return 0
	}
	if closed > 0 {
		logger.Info("[InvoiceTimeoutJob] 本次关闭超时账单", zap.Int("count", closed))
	}
	return closed
}
