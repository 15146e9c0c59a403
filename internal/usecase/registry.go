package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/metrics"
	"media-pipeline/internal/infra/worker"
)

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

// RunRegistry supervises generation runs keyed by project id. Each project
// has at most one run; runs of different projects share nothing but the
// bounded worker pool.
type RunRegistry struct {
	pool *worker.Pool
	runs sync.Map // project id -> *activeRun
	base context.Context
	stop context.CancelFunc
	log  *zerolog.Logger
}

func NewRunRegistry(pool *worker.Pool, logger *zerolog.Logger) *RunRegistry {
	base, stop := context.WithCancel(context.Background())
	return &RunRegistry{pool: pool, base: base, stop: stop, log: logging.Component(logger, "run_registry")}
}

// Start launches the worker pool. Background runs live until they finish,
// are canceled, or ctx is done.
func (r *RunRegistry) Start(ctx context.Context) {
	r.pool.Start(r.base)
	go func() {
		select {
		case <-ctx.Done():
			r.stop()
		case <-r.base.Done():
		}
	}()
}

// Reservation holds a project's run slot between the checks that precede a
// run and the run itself. Exactly one of Go, Run or Release must follow.
type Reservation struct {
	r         *RunRegistry
	projectID string
	run       *activeRun
	ctx       context.Context
}

// Reserve claims the project's run slot for a background run that hangs off
// the registry rather than a request.
func (r *RunRegistry) Reserve(projectID string) (*Reservation, error) {
	return r.reserve(r.base, projectID)
}

// ReserveInline claims the slot for a run scoped by the caller's ctx.
func (r *RunRegistry) ReserveInline(ctx context.Context, projectID string) (*Reservation, error) {
	return r.reserve(ctx, projectID)
}

func (r *RunRegistry) reserve(parent context.Context, projectID string) (*Reservation, error) {
	ctx, cancel := context.WithCancel(logging.WithProjectID(parent, projectID))
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	if _, loaded := r.runs.LoadOrStore(projectID, run); loaded {
		cancel()
		return nil, domain.ErrGenerationInProgress
	}
	metrics.RunStarted()
	return &Reservation{r: r, projectID: projectID, run: run, ctx: ctx}, nil
}

// Release frees the slot, recording err as the run's outcome.
func (res *Reservation) Release(err error) {
	res.run.once.Do(func() {
		res.run.err = err
		res.r.runs.CompareAndDelete(res.projectID, res.run)
		res.run.cancel()
		close(res.run.done)
		metrics.RunFinished()
	})
}

// Go queues fn on the pool. On worker.ErrQueueFull the slot is released.
func (res *Reservation) Go(fn func(ctx context.Context) error) error {
	err := res.r.pool.Submit(func(context.Context) error {
		err := fn(res.ctx)
		res.Release(err)
		return err
	})
	if err != nil {
		res.Release(err)
		return err
	}
	return nil
}

// Run executes fn on the caller's goroutine.
func (res *Reservation) Run(fn func(ctx context.Context) error) error {
	err := fn(res.ctx)
	res.Release(err)
	return err
}

// Cancel signals the project's run. It reports false when nothing is running.
func (r *RunRegistry) Cancel(projectID string) bool {
	v, ok := r.runs.Load(projectID)
	if !ok {
		return false
	}
	v.(*activeRun).cancel()
	r.log.Info().Str("project_id", projectID).Msg("run cancel requested")
	return true
}

func (r *RunRegistry) Active(projectID string) bool {
	_, ok := r.runs.Load(projectID)
	return ok
}

// Wait blocks until the project's current run ends or ctx is done. It returns
// nil immediately when nothing is running.
func (r *RunRegistry) Wait(ctx context.Context, projectID string) error {
	v, ok := r.runs.Load(projectID)
	if !ok {
		return nil
	}
	run := v.(*activeRun)
	select {
	case <-run.done:
		return run.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every run and stops the pool. Runs still queued are
// handed a canceled ctx by the pool, so each one releases its slot and
// Wait returns for every project.
func (r *RunRegistry) Shutdown() {
	r.stop()
	r.runs.Range(func(_, v any) bool {
		v.(*activeRun).cancel()
		return true
	})
	r.pool.Stop()
}
