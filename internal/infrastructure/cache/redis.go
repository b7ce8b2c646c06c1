package cache

import (
	"context"
	"fmt"
	"time"

	"eggbot/internal/config"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// InitRedis 连接 Redis，5 秒内 ping 不通返回错误
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	RedisClient = client
	return client, nil
}
