//go:build !integration

package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPool(t *testing.T) {
	t.Parallel()

	t.Run("should report a full queue", func(t *testing.T) {
		p := NewPool(1, 1, nil)
		block := make(chan struct{})
		p.Start(context.Background())
		defer p.Stop()
		defer close(block)

		started := make(chan struct{})
		if err := p.Submit(func(context.Context) error { close(started); <-block; return nil }); err != nil {
			t.Fatal(err)
		}
		<-started
		if err := p.Submit(func(context.Context) error { return nil }); err != nil {
			t.Fatalf("queued submit: %v", err)
		}
		if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("overflow submit: %v", err)
		}
	})

	t.Run("should hand queued tasks a canceled context on stop", func(t *testing.T) {
		p := NewPool(1, 4, nil)
		ctx, cancel := context.WithCancel(context.Background())
		p.Start(ctx)

		started := make(chan struct{})
		_ = p.Submit(func(ctx context.Context) error { close(started); <-ctx.Done(); return ctx.Err() })
		<-started

		seen := make(chan error, 2)
		for i := 0; i < 2; i++ {
			if err := p.Submit(func(ctx context.Context) error { seen <- ctx.Err(); return nil }); err != nil {
				t.Fatal(err)
			}
		}
		cancel()
		p.Stop()

		for i := 0; i < 2; i++ {
			select {
			case err := <-seen:
				if !errors.Is(err, context.Canceled) {
					t.Fatalf("drained task saw %v", err)
				}
			case <-time.After(time.Second):
				t.Fatal("queued task dropped")
			}
		}
		if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
			t.Fatalf("submit after stop: %v", err)
		}
	})
}
