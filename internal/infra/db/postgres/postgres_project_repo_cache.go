package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/repository"
	"media-pipeline/internal/infra/metrics"
	red "media-pipeline/internal/infra/redis"
)

var _ repository.ProjectRepository = (*projectRepoCacheDecorator)(nil)

// projectRepoCacheDecorator caches single-project reads. Lists and stale
// scans always go to the database.
type projectRepoCacheDecorator struct {
	inner repository.ProjectRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewProjectRepoCacheDecorator(inner repository.ProjectRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ProjectRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &projectRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func projectKey(id string) string { return fmt.Sprintf("project:%s", id) }

func (d *projectRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	// reads inside a transaction must see the transaction's view
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := projectKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Project
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheLookup(metrics.CacheProject, metrics.LookupHit)
			return &p, nil
		}
	} else if err != redis.Nil {
		metrics.IncCacheLookup(metrics.CacheProject, metrics.LookupError)
		d.log.Warn().Err(err).Str("key", key).Msg("project cache read failed")
	}

	metrics.IncCacheLookup(metrics.CacheProject, metrics.LookupMiss)
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("project cache write failed")
		}
	}
	return p, nil
}

// Save invalidates before writing so a concurrent reader cannot repopulate
// the cache with the old row after the write.
func (d *projectRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	d.invalidate(ctx, p.ID)
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	d.invalidate(ctx, p.ID)
	return nil
}

func (d *projectRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	d.invalidate(ctx, id)
	return d.inner.Delete(ctx, tx, id)
}

func (d *projectRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Project, error) {
	return d.inner.List(ctx, tx, limit, offset)
}

func (d *projectRepoCacheDecorator) FindStale(ctx context.Context, tx repository.Tx, state model.ProjectState, before time.Time) ([]*model.Project, error) {
	return d.inner.FindStale(ctx, tx, state, before)
}

func (d *projectRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, projectKey(id)); err != nil {
		d.log.Warn().Err(err).Str("project_id", id).Msg("project cache invalidation failed")
	}
}
