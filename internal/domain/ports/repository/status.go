package repository

import (
	"context"
	"time"

	"media-pipeline/internal/domain/model"
)

// StatusCache mirrors status snapshots so other processes can read them.
type StatusCache interface {
	Put(ctx context.Context, st *model.ProjectStatus) error
	Get(ctx context.Context, projectID string) (*model.ProjectStatus, error)
}

// RunLock guards a generation run across processes.
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
