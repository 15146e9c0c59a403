package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/repository"
	"media-pipeline/internal/infra/metrics"
)

var _ repository.StatusCache = (*StatusCache)(nil)

// StatusCache mirrors the latest status snapshot per project so any instance
// behind the API can answer GetStatus.
type StatusCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewStatusCache(client RedisClient, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(projectID string) string {
	return fmt.Sprintf("status:%s", projectID)
}

func (c *StatusCache) Put(ctx context.Context, st *model.ProjectStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKey(st.ProjectID), data, c.ttl)
}

func (c *StatusCache) Get(ctx context.Context, projectID string) (*model.ProjectStatus, error) {
	val, err := c.client.Get(ctx, statusKey(projectID))
	if err == redis.Nil {
		metrics.IncCacheLookup(metrics.CacheStatus, metrics.LookupMiss)
		return nil, domain.ErrNotFound
	}
	if err != nil {
		metrics.IncCacheLookup(metrics.CacheStatus, metrics.LookupError)
		return nil, err
	}
	var st model.ProjectStatus
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	metrics.IncCacheLookup(metrics.CacheStatus, metrics.LookupHit)
	return &st, nil
}
