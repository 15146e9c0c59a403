package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/metrics"
)

type RefineConfig struct {
	MaxIterations  int
	SummarizeAfter int
	CallTimeout    time.Duration
}

type RefineResult struct {
	Artifact   string
	Iterations int
	Accepted   bool
	LastReason string
	Summarized bool
}

// CritiqueRefineLoop runs critic -> rewriter rounds over one text artifact.
// The critic is called at most MaxIterations+1 times whatever it answers.
type CritiqueRefineLoop struct {
	critic     adapter.Critic
	rewriter   adapter.Rewriter
	summarizer adapter.Summarizer
	cfg        RefineConfig
	log        *zerolog.Logger
}

// NewCritiqueRefineLoop builds a loop; summarizer may be nil to skip the
// condense step. Non-positive settings fall back to 3 iterations and a
// summarize threshold of 2.
func NewCritiqueRefineLoop(critic adapter.Critic, rewriter adapter.Rewriter, summarizer adapter.Summarizer, cfg RefineConfig, logger *zerolog.Logger) *CritiqueRefineLoop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.SummarizeAfter <= 0 {
		cfg.SummarizeAfter = 2
	}
	return &CritiqueRefineLoop{
		critic:     critic,
		rewriter:   rewriter,
		summarizer: summarizer,
		cfg:        cfg,
		log:        logging.Component(logger, "refine_loop"),
	}
}

type refineState struct {
	artifact   string
	iterations int
	lastReason string
}

func (l *CritiqueRefineLoop) Refine(ctx context.Context, artifact string) (RefineResult, error) {
	st := refineState{artifact: artifact}
	accepted := false

	for {
		var verdict adapter.Critique
		err := l.bounded(ctx, func(cctx context.Context) error {
			var err error
			verdict, err = l.critic.Critique(cctx, st.artifact)
			return err
		})
		if err != nil {
			return l.result(st, false, false), fmt.Errorf("critique round %d: %w", st.iterations, err)
		}
		st.lastReason = verdict.Reason

		if verdict.Verdict == adapter.VerdictPass {
			accepted = true
			break
		}
		if st.iterations >= l.cfg.MaxIterations {
			break
		}

		var rewritten string
		err = l.bounded(ctx, func(cctx context.Context) error {
			var err error
			rewritten, err = l.rewriter.Rewrite(cctx, st.artifact, st.lastReason)
			return err
		})
		if err != nil {
			return l.result(st, false, false), fmt.Errorf("rewrite round %d: %w", st.iterations, err)
		}
		st.artifact = rewritten
		st.iterations++
		l.log.Debug().Int("iteration", st.iterations).Str("reason", st.lastReason).Msg("artifact rewritten")
	}

	summarized := false
	if st.iterations > l.cfg.SummarizeAfter && l.summarizer != nil {
		var condensed string
		err := l.bounded(ctx, func(cctx context.Context) error {
			var err error
			condensed, err = l.summarizer.Summarize(cctx, st.artifact)
			return err
		})
		if err != nil {
			return l.result(st, accepted, false), fmt.Errorf("summarize: %w", err)
		}
		st.artifact = condensed
		summarized = true
	}

	metrics.ObserveRefine(st.iterations, accepted)
	return l.result(st, accepted, summarized), nil
}

func (l *CritiqueRefineLoop) result(st refineState, accepted, summarized bool) RefineResult {
	return RefineResult{
		Artifact:   st.artifact,
		Iterations: st.iterations,
		Accepted:   accepted,
		LastReason: st.lastReason,
		Summarized: summarized,
	}
}

func (l *CritiqueRefineLoop) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, l.cfg.CallTimeout)
	defer cancel()
	return fn(cctx)
}
