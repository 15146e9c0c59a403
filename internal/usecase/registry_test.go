//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/worker"
)

func newTestRegistry(t *testing.T) *RunRegistry {
	t.Helper()
	r := NewRunRegistry(worker.NewPool(2, 4, logging.Nop()), logging.Nop())
	r.Start(context.Background())
	t.Cleanup(r.Shutdown)
	return r
}

func TestRunRegistry_OneRunPerProject(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	res, err := r.Reserve("p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Reserve("p1"); !errors.Is(err, domain.ErrGenerationInProgress) {
		t.Fatalf("second reserve: %v", err)
	}
	other, err := r.Reserve("p2")
	if err != nil {
		t.Fatalf("other project blocked: %v", err)
	}
	other.Release(nil)

	res.Release(nil)
	if r.Active("p1") {
		t.Fatal("slot not freed")
	}
	if _, err := r.Reserve("p1"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestRunRegistry_GoAndWait(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	res, err := r.Reserve("p1")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	release := make(chan struct{})
	if err := res.Go(func(ctx context.Context) error {
		<-release
		return boom
	}); err != nil {
		t.Fatal(err)
	}
	if !r.Active("p1") {
		t.Fatal("run not active")
	}
	time.AfterFunc(20*time.Millisecond, func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Wait(ctx, "p1"); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v", err)
	}
}

func TestRunRegistry_Cancel(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	if r.Cancel("nobody") {
		t.Fatal("cancel of idle project reported true")
	}

	res, _ := r.Reserve("p1")
	result := make(chan error, 1)
	started := make(chan struct{})
	res.Go(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		result <- ctx.Err()
		return domain.ErrCanceled
	})
	<-started
	if !r.Cancel("p1") {
		t.Fatal("cancel reported false")
	}

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run saw %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not observe cancel")
	}
}

func TestRunRegistry_InlineUsesCallerContext(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := r.ReserveInline(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	err = res.Run(func(runCtx context.Context) error { return runCtx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if r.Active("p1") {
		t.Fatal("slot not freed after Run")
	}
}

func TestRunRegistry_ShutdownReleasesQueuedRuns(t *testing.T) {
	t.Parallel()
	r := NewRunRegistry(worker.NewPool(1, 4, logging.Nop()), logging.Nop())
	r.Start(context.Background())

	busy, _ := r.Reserve("p1")
	started := make(chan struct{})
	if err := busy.Go(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	queued, err := r.Reserve("p2")
	if err != nil {
		t.Fatal(err)
	}
	seen := make(chan error, 1)
	if err := queued.Go(func(ctx context.Context) error {
		seen <- ctx.Err()
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		r.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown hung")
	}

	for _, id := range []string{"p1", "p2"} {
		if r.Active(id) {
			t.Fatalf("%s still active after Shutdown", id)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if err := r.Wait(ctx, id); err != nil {
			t.Fatalf("Wait(%s) = %v", id, err)
		}
		cancel()
	}
	select {
	case err := <-seen:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("queued run saw %v", err)
		}
	default:
		t.Fatal("queued run never ran")
	}
}
