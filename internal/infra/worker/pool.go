// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

// Task is one unit of work. The ctx it receives is the pool's, not the
// submitter's.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Submit never
// blocks: a saturated queue is reported to the caller.
type Pool struct {
	wg     sync.WaitGroup
	jobs   chan Task
	quit   chan struct{}
	n      int
	log    *zerolog.Logger
	mu     sync.RWMutex // guards closed against in-flight Submits
	closed bool
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pool{jobs: make(chan Task, queue), quit: make(chan struct{}), n: workers, log: logger}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Warn().Err(err).Int("worker", id).Msg("task error")
					}
				}
			}
		}(i)
	}
}

// Stop waits for running tasks, then hands every task still queued a
// canceled ctx so it can give back whatever it holds. No task is dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.quit)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.drain()
}

func (p *Pool) drain() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		select {
		case task := <-p.jobs:
			if task == nil {
				continue
			}
			if err := task(ctx); err != nil {
				p.log.Debug().Err(err).Msg("drained task")
			}
		default:
			return
		}
	}
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}
