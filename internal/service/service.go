package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"eggbot/internal/config"
	"eggbot/internal/model"

	"github.com/cenkalti/backoff/v5"
)

// withTimeout 每次存储调用都有上限，超时返回错误而不是挂住
func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Business.StoreTimeout())
}

// retryRead 只用于幂等的读操作；写操作（尤其是资金相关）从不自动重试
func retryRead[T any](ctx context.Context, cfg *config.Config, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := withTimeout(ctx, cfg)
		defer cancel()

		res, err := op(attemptCtx)
		if err != nil && !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrAccountNotFound):
		return false
	default:
		return KindOf(err).Transient()
	}
}

func newOutboxMessage(topic, eventType string, userID int64, payload map[string]interface{}) (*model.OutboxMessage, error) {
	payload["event"] = eventType
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	return &model.OutboxMessage{
		MessageKey: strconv.FormatInt(userID, 10),
		Topic:      topic,
		EventType:  eventType,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}, nil
}
