// Package sched runs periodic maintenance jobs on a cron schedule.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"media-pipeline/internal/infra/logging"
)

// Job is one maintenance pass. It gets a context bounded by the job timeout.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. A job still running when its next tick comes
// is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	base context.Context
	stop context.CancelFunc
	log  *zerolog.Logger
}

func New(logger *zerolog.Logger) *Scheduler {
	log := logging.Component(logger, "scheduler")
	cl := cronLogger{log: log}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		base: base,
		stop: stop,
		log:  log,
	}
}

// Add registers job under spec, e.g. "@every 5m" or "*/10 * * * *".
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := s.jobContext(timeout)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("elapsed", time.Since(started)).Msg("job done")
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) jobContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(s.base)
	}
	return context.WithTimeout(s.base, timeout)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

// cronLogger satisfies cron.Logger.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
