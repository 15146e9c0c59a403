//go:build !integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// memRedis is an in-memory RedisClient. Expirations are recorded, not enforced.
type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Duration
}

var _ RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, expires: map[string]time.Duration{}}
}

func (m *memRedis) Ping(context.Context) error { return nil }

func (m *memRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.expires[key] = expiration
	return nil
}

func (m *memRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memRedis) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	fmt.Sscan(m.data[key], &n)
	n++
	m.data[key] = fmt.Sprint(n)
	return n, nil
}

func (m *memRedis) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = expiration
	return nil
}

func (m *memRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memRedis) Close() error { return nil }
