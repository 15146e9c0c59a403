package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"media-pipeline/internal/infra/db/postgres"
	"media-pipeline/internal/infra/metrics"
)

// Reaper fails runs abandoned by a process that went away.
type Reaper interface {
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReapJob fails GENERATING or RENDERING projects with no update for staleAfter.
func ReapJob(r Reaper, staleAfter time.Duration) Job {
	return func(ctx context.Context) error {
		n, err := r.ReapStale(ctx, staleAfter)
		if n > 0 {
			metrics.AddStaleReaped(n)
		}
		return err
	}
}

// PoolStatsJob publishes database pool gauges.
func PoolStatsJob(pool *pgxpool.Pool) Job {
	return func(context.Context) error {
		postgres.ReportPoolStats(pool)
		return nil
	}
}
