package mq

import (
	"context"
	"fmt"

	"eggbot/internal/config"
	"eggbot/internal/infrastructure/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Publisher 投递 outbox 消息的出口
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
	Close() error
}

// NewProducer 初始化 Kafka 同步生产者
func NewProducer(cfg *config.KafkaConfig) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Idempotent = true                // 生产端幂等，配合 outbox 的至少一次投递
	kafkaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return producer, nil
}

// KafkaPublisher 基于 sarama.SyncProducer 的 Publisher
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

func NewKafkaPublisher(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish 发送消息到 Kafka，key 相同的消息落在同一分区，保证同一用户事件有序
func (p *KafkaPublisher) Publish(_ context.Context, topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	logger.Debug("kafka message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// LogPublisher 未启用 Kafka 时只记录日志，outbox 依然会被标记为已发送
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic, key, value string) error {
	logger.Info("outbox event",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.String("payload", value),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
