package job

import (
	"context"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"
	"eggbot/internal/infrastructure/mq"
	"eggbot/internal/model"
	"eggbot/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 把与业务同事务写入的事件投递出去
// 投递失败按次数重试，超过 max_retry_count 标记为 FAILED 不再投递
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   200 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	logger.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			logger.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.Error("[OutboxSender] 查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			logger.Error("[OutboxSender] 更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		logger.Debug("[OutboxSender] 消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("event", msg.EventType))
		return true
	}

	logger.Warn("[OutboxSender] 消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry", msg.RetryCount), zap.Error(err))

	gaveUp, recordErr := s.outboxRepo.RecordFailure(ctx, msg.ID, s.cfg.Business.MaxRetryCount)
	if recordErr != nil {
		logger.Error("[OutboxSender] 记录失败次数失败", zap.Int64("id", msg.ID), zap.Error(recordErr))
		return false
	}
	if gaveUp {
		logger.Error("[OutboxSender] 消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID), zap.String("event", msg.EventType))
	}
	return false
}
