package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【用在哪里？】
//
// 场景：用户连续发送两次 "купить 5"（网络抖动或者手快）
//
// 如果没有锁：
//   goroutine1: 查询未支付账单=无 -> 创建账单A
//   goroutine2: 查询未支付账单=无 -> 创建账单B   用户收到两张账单！
//
// 加了锁：
//   goroutine1: 获取锁 -> 查询=无 -> 创建账单A -> 释放锁
//   goroutine2: 等待... -> 获取锁 -> 查询=账单A -> 直接复用
//
// 注意：锁只用于"体验层"的去重。扣减额度、支付入账的正确性由数据库的
// 条件更新和唯一索引保证，不依赖这把锁。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// Mutex 是 Redis 锁和进程内锁的公共行为
type Mutex interface {
	TryLock(ctx context.Context) (bool, error)
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// Provider 按 key 创建锁
type Provider interface {
	NewMutex(key, value string, expiration time.Duration) Mutex
}

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return lockWithRetry(ctx, l, retryInterval, maxRetries)
}

// Unlock 释放锁
//
// 为什么要检查 value？
//
//	A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	res, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLockExpired
	}
	return nil
}

func lockWithRetry(ctx context.Context, m Mutex, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// RedisProvider 基于 Redis 的锁工厂
type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) NewMutex(key, value string, expiration time.Duration) Mutex {
	return NewDistributedLock(p.client, key, value, expiration)
}

// ============================================================================
// 便捷函数：按用户维度的账单锁
// ============================================================================

// InvoiceLockKey 账单锁的 key（按用户维度，不同用户互不影响）
func InvoiceLockKey(userID int64) string {
	return fmt.Sprintf("eggbot:lock:invoice:user:%d", userID)
}

// NewInvoiceLock 创建账单锁，value 使用请求标识便于追踪持有者
func NewInvoiceLock(p Provider, userID int64, owner string) Mutex {
	return p.NewMutex(InvoiceLockKey(userID), owner, 10*time.Second)
}
