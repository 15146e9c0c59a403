// Package poller turns a submit-then-poll external operation into one
// blocking call with an attempt budget, a timeout and cancellation.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCanceled  State = "CANCELED"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

// Status is one poll answer. Detail carries the provider's message.
type Status struct {
	State  State
	Detail string
}

// Job is one external operation. H is the opaque handle returned by Submit,
// R the payload reference returned once the job succeeded. Result only
// extracts the reference; fetching the payload is the caller's job.
type Job[H any, R any] interface {
	Submit(ctx context.Context) (H, error)
	Poll(ctx context.Context, handle H) (Status, error)
	Result(ctx context.Context, handle H) (R, error)
}

// Funcs adapts three closures to Job.
type Funcs[H any, R any] struct {
	SubmitFn func(ctx context.Context) (H, error)
	PollFn   func(ctx context.Context, handle H) (Status, error)
	ResultFn func(ctx context.Context, handle H) (R, error)
}

func (f Funcs[H, R]) Submit(ctx context.Context) (H, error) { return f.SubmitFn(ctx) }
func (f Funcs[H, R]) Poll(ctx context.Context, h H) (Status, error) {
	return f.PollFn(ctx, h)
}
func (f Funcs[H, R]) Result(ctx context.Context, h H) (R, error) { return f.ResultFn(ctx, h) }

type Config struct {
	Producer    string
	Strategy    Strategy
	Interval    time.Duration
	MaxInterval time.Duration
	Factor      float64
	MaxAttempts int
	Timeout     time.Duration
	Logger      *zerolog.Logger
}

// FromConfig builds a poller config for one producer. An unknown strategy is
// a construction error.
func FromConfig(producer string, pc config.PollConfig, logger *zerolog.Logger) (Config, error) {
	st, err := ParseStrategy(pc.Backoff)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Producer:    producer,
		Strategy:    st,
		Interval:    pc.Interval,
		MaxInterval: pc.MaxInterval,
		Factor:      pc.Factor,
		MaxAttempts: pc.MaxAttempts,
		Timeout:     pc.Timeout,
		Logger:      logger,
	}, nil
}

// AwaitCompletion submits once, then sleeps and polls until the job is
// terminal or the budget is spent. Poll transport errors count as an attempt
// and are retried; only the provider's own FAILED/CANCELED ends the job.
func AwaitCompletion[H any, R any](ctx context.Context, job Job[H, R], cfg Config) (R, error) {
	var zero R
	log := cfg.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	started := time.Now()

	handle, err := job.Submit(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, interrupted(ctx, cfg, "", 0, started)
		}
		metrics.ObservePollOutcome(cfg.Producer, "failed", time.Since(started))
		return zero, &domain.ProducerFailureError{Producer: cfg.Producer, State: "SUBMIT", Detail: err.Error()}
	}
	jobID := fmt.Sprint(handle)

	var deadline <-chan time.Time
	if cfg.Timeout > 0 {
		t := time.NewTimer(cfg.Timeout)
		defer t.Stop()
		deadline = t.C
	}
	timedOut := func(attempts int) (R, error) {
		metrics.ObservePollOutcome(cfg.Producer, "timeout", time.Since(started))
		return zero, &domain.ProducerTimeoutError{Producer: cfg.Producer, JobID: jobID, Attempts: attempts, Elapsed: time.Since(started)}
	}

	attempts := 0
	for cfg.MaxAttempts <= 0 || attempts < cfg.MaxAttempts {
		sleep := time.NewTimer(cfg.Delay(attempts + 1))
		select {
		case <-ctx.Done():
			sleep.Stop()
			return zero, interrupted(ctx, cfg, jobID, attempts, started)
		case <-deadline:
			sleep.Stop()
			return timedOut(attempts)
		case <-sleep.C:
		}

		attempts++
		metrics.IncPollAttempt(cfg.Producer)
		st, err := job.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Str("producer", cfg.Producer).Str("job_id", jobID).Int("attempt", attempts).Msg("poll failed")
			continue
		}
		log.Debug().Str("producer", cfg.Producer).Str("job_id", jobID).Str("state", string(st.State)).Int("attempt", attempts).Msg("polled")

		switch st.State {
		case StateSucceeded:
			res, err := job.Result(ctx, handle)
			if err != nil {
				metrics.ObservePollOutcome(cfg.Producer, "failed", time.Since(started))
				return zero, &domain.ProducerFailureError{Producer: cfg.Producer, JobID: jobID, State: string(st.State), Detail: "result: " + err.Error()}
			}
			metrics.ObservePollOutcome(cfg.Producer, "succeeded", time.Since(started))
			return res, nil
		case StateFailed, StateCanceled:
			metrics.ObservePollOutcome(cfg.Producer, string(st.State), time.Since(started))
			return zero, &domain.ProducerFailureError{Producer: cfg.Producer, JobID: jobID, State: string(st.State), Detail: st.Detail}
		}
	}
	return timedOut(attempts)
}

// interrupted reports a done context: a caller deadline is a timeout, anything
// else is a cancellation.
func interrupted(ctx context.Context, cfg Config, jobID string, attempts int, started time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.ObservePollOutcome(cfg.Producer, "timeout", time.Since(started))
		return &domain.ProducerTimeoutError{Producer: cfg.Producer, JobID: jobID, Attempts: attempts, Elapsed: time.Since(started)}
	}
	metrics.ObservePollOutcome(cfg.Producer, "aborted", time.Since(started))
	return fmt.Errorf("%s job %s: %w", cfg.Producer, jobID, domain.ErrCanceled)
}
