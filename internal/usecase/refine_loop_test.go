//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
)

func TestRefineLoop_AlwaysFail(t *testing.T) {
	t.Parallel()
	critic := &MockCritic{}
	rewriter := &MockRewriter{}
	summ := &MockSummarizer{}
	loop := NewCritiqueRefineLoop(critic, rewriter, summ, RefineConfig{MaxIterations: 3}, logging.Nop())

	res, err := loop.Refine(context.Background(), "draft")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if rewriter.Calls() != 3 {
		t.Fatalf("rewrites = %d, want 3", rewriter.Calls())
	}
	if critic.Calls() != 4 {
		t.Fatalf("critic calls = %d, want 4", critic.Calls())
	}
	if res.Accepted {
		t.Fatalf("expected not accepted")
	}
	if !res.Summarized || summ.Called != 1 {
		t.Fatalf("expected summarizer pass, summarized=%v calls=%d", res.Summarized, summ.Called)
	}
	if res.Artifact != "summary(draft+r1+r2+r3)" {
		t.Fatalf("artifact = %q", res.Artifact)
	}
	if res.LastReason != "too vague" || res.Iterations != 3 {
		t.Fatalf("result %+v", res)
	}
}

func TestRefineLoop_PassFirstTime(t *testing.T) {
	t.Parallel()
	critic := &MockCritic{Verdict: func(int, string) adapter.Critique {
		return adapter.Critique{Verdict: adapter.VerdictPass}
	}}
	rewriter := &MockRewriter{}
	summ := &MockSummarizer{}
	loop := NewCritiqueRefineLoop(critic, rewriter, summ, RefineConfig{}, logging.Nop())

	res, err := loop.Refine(context.Background(), "draft")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accepted || res.Artifact != "draft" || res.Iterations != 0 {
		t.Fatalf("result %+v", res)
	}
	if rewriter.Calls() != 0 || summ.Called != 0 {
		t.Fatalf("rewriter=%d summarizer=%d", rewriter.Calls(), summ.Called)
	}
}

func TestRefineLoop_PassAfterRewrite(t *testing.T) {
	t.Parallel()
	critic := &MockCritic{Verdict: func(call int, _ string) adapter.Critique {
		if call < 3 {
			return adapter.Critique{Verdict: adapter.VerdictFail, Reason: "pacing"}
		}
		return adapter.Critique{Verdict: adapter.VerdictPass}
	}}
	rewriter := &MockRewriter{}
	summ := &MockSummarizer{}
	loop := NewCritiqueRefineLoop(critic, rewriter, summ, RefineConfig{MaxIterations: 5, SummarizeAfter: 2}, logging.Nop())

	res, err := loop.Refine(context.Background(), "d")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accepted || res.Iterations != 2 {
		t.Fatalf("result %+v", res)
	}
	// two rewrites is not more than the threshold
	if res.Summarized {
		t.Fatalf("unexpected summarize")
	}
	if rewriter.Reasons[0] != "pacing" {
		t.Fatalf("rewriter did not get the critic's reason: %v", rewriter.Reasons)
	}
}

func TestRefineLoop_Bounds(t *testing.T) {
	t.Parallel()

	for _, iters := range []int{1, 2, 7} {
		critic := &MockCritic{}
		rewriter := &MockRewriter{}
		loop := NewCritiqueRefineLoop(critic, rewriter, nil, RefineConfig{MaxIterations: iters}, logging.Nop())
		res, err := loop.Refine(context.Background(), "x")
		if err != nil {
			t.Fatal(err)
		}
		if critic.Calls() != iters+1 || rewriter.Calls() != iters {
			t.Fatalf("max=%d: critic=%d rewriter=%d", iters, critic.Calls(), rewriter.Calls())
		}
		if res.Summarized {
			t.Fatalf("summarized without a summarizer")
		}
	}
}

func TestRefineLoop_Errors(t *testing.T) {
	t.Parallel()

	t.Run("should surface rewriter failure with the last good artifact", func(t *testing.T) {
		rewriter := &MockRewriter{Err: errors.New("quota")}
		loop := NewCritiqueRefineLoop(&MockCritic{}, rewriter, nil, RefineConfig{}, logging.Nop())
		res, err := loop.Refine(context.Background(), "x")
		if err == nil {
			t.Fatal("expected error")
		}
		if res.Artifact != "x" || res.Accepted {
			t.Fatalf("result %+v", res)
		}
	})

	t.Run("should bound each call", func(t *testing.T) {
		slow := &slowCritic{}
		loop := NewCritiqueRefineLoop(slow, &MockRewriter{}, nil, RefineConfig{CallTimeout: 10 * time.Millisecond}, logging.Nop())
		_, err := loop.Refine(context.Background(), "x")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("got %v", err)
		}
	})
}

type slowCritic struct{}

func (slowCritic) Critique(ctx context.Context, _ string) (adapter.Critique, error) {
	<-ctx.Done()
	return adapter.Critique{}, ctx.Err()
}
