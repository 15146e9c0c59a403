// File: internal/usecase/coordinator.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/metrics"
)

// ProgressFunc is called after each produced asset. final is false for the
// intermediate still of an image-then-animate scene.
type ProgressFunc func(asset model.GeneratedAsset, final bool)

// Producers binds one producer per dispatch branch.
type Producers struct {
	Image    adapter.SceneProducer
	Video    adapter.SceneProducer
	Animator adapter.Animator
}

type CoordinatorConfig struct {
	SceneTimeout time.Duration
	LLMTimeout   time.Duration
}

// GenerationCoordinator runs the dispatch policy over a batch of scenes,
// strictly one scene at a time in scene-number order.
type GenerationCoordinator struct {
	policy    *DispatchPolicy
	producers Producers
	refiner   adapter.PromptRefiner
	cfg       CoordinatorConfig
	log       *zerolog.Logger
}

// NewGenerationCoordinator builds a coordinator. refiner may be nil, in which
// case draft prompts go to the producers as written.
func NewGenerationCoordinator(policy *DispatchPolicy, producers Producers, refiner adapter.PromptRefiner, cfg CoordinatorConfig, logger *zerolog.Logger) *GenerationCoordinator {
	return &GenerationCoordinator{
		policy:    policy,
		producers: producers,
		refiner:   refiner,
		cfg:       cfg,
		log:       logging.Component(logger, "coordinator"),
	}
}

func (c *GenerationCoordinator) Policy() *DispatchPolicy { return c.policy }

// CheckReady verifies that every branch the scenes need has a producer bound
// and that scene numbers are unique. It makes no calls and changes nothing.
func (c *GenerationCoordinator) CheckReady(scenes []model.SceneStep) error {
	seen := make(map[int]struct{}, len(scenes))
	for _, s := range scenes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scene %d: %w", s.Number, err)
		}
		if _, dup := seen[s.Number]; dup {
			return fmt.Errorf("duplicate scene number %d: %w", s.Number, domain.ErrInvalidArgument)
		}
		seen[s.Number] = struct{}{}

		switch c.policy.Decide(s) {
		case BranchDirectImage:
			if c.producers.Image == nil {
				return &domain.ConfigurationMissingError{Key: "media.image"}
			}
		case BranchDirectVideo:
			if c.producers.Video == nil {
				return &domain.ConfigurationMissingError{Key: "media.video"}
			}
		case BranchImageThenAnimate:
			if c.producers.Image == nil {
				return &domain.ConfigurationMissingError{Key: "media.image"}
			}
			if c.producers.Animator == nil {
				return &domain.ConfigurationMissingError{Key: "media.animate"}
			}
		}
	}
	return nil
}

// GenerateAll produces one asset per scene, fail-fast. On success the result
// is sorted by scene number. On failure the returned error is a
// *domain.SceneBatchAbortedError; assets finished before it are only visible
// through onProgress.
func (c *GenerationCoordinator) GenerateAll(ctx context.Context, scenes []model.SceneStep, onProgress ProgressFunc) ([]model.GeneratedAsset, error) {
	return c.GenerateStyled(ctx, scenes, "", onProgress)
}

// GenerateStyled is GenerateAll with a project style directive applied to
// every prompt sent to a producer.
func (c *GenerationCoordinator) GenerateStyled(ctx context.Context, scenes []model.SceneStep, style string, onProgress ProgressFunc) ([]model.GeneratedAsset, error) {
	if err := c.CheckReady(scenes); err != nil {
		return nil, err
	}
	if onProgress == nil {
		onProgress = func(model.GeneratedAsset, bool) {}
	}

	ordered := append([]model.SceneStep(nil), scenes...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	out := make([]model.GeneratedAsset, 0, len(ordered))
	for _, s := range ordered {
		// cancellation is only honored between scenes
		if ctx.Err() != nil {
			c.log.Info().Int("scene", s.Number).Msg("batch canceled before scene")
			return nil, &domain.SceneBatchAbortedError{Scene: s.Number, Cause: domain.ErrCanceled}
		}

		branch := c.policy.Decide(s)
		asset, err := c.generateScene(ctx, s, branch, style, onProgress)
		if err != nil {
			result := "failed"
			if ctx.Err() != nil && !errors.Is(err, domain.ErrCanceled) {
				err = errors.Join(domain.ErrCanceled, err)
			}
			if errors.Is(err, domain.ErrCanceled) {
				result = "canceled"
			}
			metrics.IncScene(string(branch), result)
			c.log.Warn().Err(err).Int("scene", s.Number).Str("branch", string(branch)).Msg("scene failed; aborting batch")
			return nil, &domain.SceneBatchAbortedError{Scene: s.Number, Cause: err}
		}
		metrics.IncScene(string(branch), "ok")
		out = append(out, *asset)
	}

	model.SortAssets(out)
	return out, nil
}

func (c *GenerationCoordinator) generateScene(ctx context.Context, s model.SceneStep, branch Branch, style string, onProgress ProgressFunc) (*model.GeneratedAsset, error) {
	ctx = logging.WithScene(ctx, s.Number)
	if c.cfg.SceneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SceneTimeout)
		defer cancel()
	}
	log := logging.With(ctx, c.log)
	log.Debug().Str("branch", string(branch)).Msg("dispatching scene")

	switch branch {
	case BranchDirectImage:
		input := c.refinePrompt(ctx, s, model.MediaImage, style)
		a, err := c.produce(ctx, c.producers.Image, input, s)
		if err != nil {
			return nil, err
		}
		onProgress(*a, true)
		return a, nil

	case BranchDirectVideo:
		input := c.refinePrompt(ctx, s, model.MediaVideo, style)
		a, err := c.produce(ctx, c.producers.Video, input, s)
		if err != nil {
			return nil, err
		}
		onProgress(*a, true)
		return a, nil

	default:
		input := c.refinePrompt(ctx, s, model.MediaImage, style)
		img, err := c.produce(ctx, c.producers.Image, input, s)
		if err != nil {
			return nil, err
		}
		onProgress(*img, false)

		vid, err := c.producers.Animator.Animate(ctx, input, img)
		if err != nil {
			return nil, c.asTimeout(c.producers.Animator.Name(), err)
		}
		if vid == nil {
			return nil, &domain.ProducerFailureError{Producer: c.producers.Animator.Name(), State: "EMPTY", Detail: "animator returned no asset"}
		}
		vid.Scene = s.Number
		onProgress(*vid, true)
		return vid, nil
	}
}

func (c *GenerationCoordinator) produce(ctx context.Context, p adapter.SceneProducer, input, original model.SceneStep) (*model.GeneratedAsset, error) {
	a, err := p.Produce(ctx, input)
	if err != nil {
		return nil, c.asTimeout(p.Name(), err)
	}
	if a == nil {
		return nil, &domain.ProducerFailureError{Producer: p.Name(), State: "EMPTY", Detail: "producer returned no asset"}
	}
	a.Scene = original.Number
	if a.Provenance.OriginalPrompt == "" && input.DraftPrompt != original.DraftPrompt {
		a.Provenance.OriginalPrompt = original.DraftPrompt
	}
	return a, nil
}

// asTimeout turns a bare scene deadline into a producer timeout so callers
// can tell it apart from a provider-reported failure.
func (c *GenerationCoordinator) asTimeout(producer string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProducerTimeout) {
		return &domain.ProducerTimeoutError{Producer: producer, Elapsed: c.cfg.SceneTimeout}
	}
	return err
}

// refinePrompt returns a copy of s with the refined prompt, or the draft when
// no refiner is bound or refinement fails. The style directive is applied
// either way.
func (c *GenerationCoordinator) refinePrompt(ctx context.Context, s model.SceneStep, kind model.MediaKind, style string) model.SceneStep {
	if c.refiner == nil {
		return s.Styled(style)
	}
	rctx := ctx
	if c.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.cfg.LLMTimeout)
		defer cancel()
	}
	refined, err := c.refiner.RefinePrompt(rctx, s, kind, style)
	if err != nil || refined == "" {
		logging.With(ctx, c.log).Warn().Err(err).Msg("prompt refinement failed; using draft prompt")
		return s.Styled(style)
	}
	s.DraftPrompt = refined
	return s.Styled(style)
}
