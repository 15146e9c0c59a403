//go:build !integration

package postgres

import (
	"context"
	"time"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/repository"
	red "media-pipeline/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }

// mockInnerProjectRepo mocks the database repository that the project decorator wraps.
type mockInnerProjectRepo struct {
	SaveFunc      func(ctx context.Context, tx repository.Tx, p *model.Project) error
	FindByIDFunc  func(ctx context.Context, tx repository.Tx, id string) (*model.Project, error)
	ListFunc      func(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Project, error)
	FindStaleFunc func(ctx context.Context, tx repository.Tx, state model.ProjectState, before time.Time) ([]*model.Project, error)
	DeleteFunc    func(ctx context.Context, tx repository.Tx, id string) error
}

func (m *mockInnerProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerProjectRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Project, error) {
	return m.ListFunc(ctx, tx, limit, offset)
}
func (m *mockInnerProjectRepo) FindStale(ctx context.Context, tx repository.Tx, state model.ProjectState, before time.Time) ([]*model.Project, error) {
	return m.FindStaleFunc(ctx, tx, state, before)
}
func (m *mockInnerProjectRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
