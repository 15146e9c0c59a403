//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"media-pipeline/internal/infra/logging"
)

type fakeReaper struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	n         int
	err       error
}

func (f *fakeReaper) ReapStale(_ context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.olderThan.Store(int64(olderThan))
	return f.n, f.err
}

func TestReapJob(t *testing.T) {
	t.Parallel()

	t.Run("should pass the stale cutoff through", func(t *testing.T) {
		r := &fakeReaper{n: 2}
		if err := ReapJob(r, time.Hour)(context.Background()); err != nil {
			t.Fatal(err)
		}
		if time.Duration(r.olderThan.Load()) != time.Hour {
			t.Fatalf("olderThan = %v", time.Duration(r.olderThan.Load()))
		}
	})

	t.Run("should surface reaper errors", func(t *testing.T) {
		boom := errors.New("db down")
		if err := ReapJob(&fakeReaper{err: boom}, time.Minute)(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestScheduler(t *testing.T) {
	t.Parallel()

	t.Run("should reject a bad schedule", func(t *testing.T) {
		s := New(logging.Nop())
		if err := s.Add("reap", "every now and then", 0, func(context.Context) error { return nil }); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("should run jobs on schedule", func(t *testing.T) {
		s := New(logging.Nop())
		r := &fakeReaper{}
		if err := s.Add("reap", "@every 1s", time.Second, ReapJob(r, time.Minute)); err != nil {
			t.Fatal(err)
		}
		s.Start()
		deadline := time.Now().Add(3 * time.Second)
		for r.calls.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
		if r.calls.Load() == 0 {
			t.Fatal("job never ran")
		}
	})
}
