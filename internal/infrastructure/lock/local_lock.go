package lock

import (
	"context"
	"sync"
	"time"
)

// LocalProvider 进程内锁，未启用 Redis 时的降级实现（单实例部署可用）
type LocalProvider struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	value     string
	expiresAt time.Time
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (p *LocalProvider) NewMutex(key, value string, expiration time.Duration) Mutex {
	return &localMutex{p: p, key: key, value: value, expiration: expiration}
}

type localMutex struct {
	p          *LocalProvider
	key        string
	value      string
	expiration time.Duration
}

func (m *localMutex) TryLock(_ context.Context) (bool, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()

	now := m.p.now()
	if e, ok := m.p.held[m.key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	m.p.held[m.key] = localEntry{value: m.value, expiresAt: now.Add(m.expiration)}
	return true, nil
}

func (m *localMutex) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return lockWithRetry(ctx, m, retryInterval, maxRetries)
}

func (m *localMutex) Unlock(_ context.Context) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()

	e, ok := m.p.held[m.key]
	if !ok || e.value != m.value || !m.p.now().Before(e.expiresAt) {
		return ErrLockExpired
	}
	delete(m.p.held, m.key)
	return nil
}
