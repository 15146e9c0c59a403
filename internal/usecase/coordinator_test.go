//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/infra/logging"
)

type progressRecorder struct {
	mu     sync.Mutex
	assets []model.GeneratedAsset
	finals []bool
}

func (r *progressRecorder) record(a model.GeneratedAsset, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, a)
	r.finals = append(r.finals, final)
}

func newTestCoordinator(img, vid *MockProducer, anim *MockAnimator, cfg CoordinatorConfig) *GenerationCoordinator {
	p := Producers{}
	if img != nil {
		p.Image = img
	}
	if vid != nil {
		p.Video = vid
	}
	if anim != nil {
		p.Animator = anim
	}
	return NewGenerationCoordinator(NewDispatchPolicy([]string{"epic"}), p, nil, cfg, logging.Nop())
}

func TestGenerateAll_OrdersByScene(t *testing.T) {
	t.Parallel()
	img := newMockProducer("img", model.MediaImage)
	vid := newMockProducer("vid", model.MediaVideo)
	c := newTestCoordinator(img, vid, &MockAnimator{}, CoordinatorConfig{})

	plan := threeScenePlan()
	unsorted := []model.SceneStep{plan.Scenes[2], plan.Scenes[0], plan.Scenes[1]}

	rec := &progressRecorder{}
	assets, err := c.GenerateAll(context.Background(), unsorted, rec.record)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	for i, a := range assets {
		if a.Scene != i+1 {
			t.Fatalf("asset %d has scene %d", i, a.Scene)
		}
	}
	// scenes are dispatched in number order too
	if got := rec.assets[0].Scene; got != 1 {
		t.Fatalf("first callback for scene %d", got)
	}
}

func TestGenerateAll_Branches(t *testing.T) {
	t.Parallel()
	img := newMockProducer("img", model.MediaImage)
	vid := newMockProducer("vid", model.MediaVideo)
	anim := &MockAnimator{}
	c := newTestCoordinator(img, vid, anim, CoordinatorConfig{})

	rec := &progressRecorder{}
	assets, err := c.GenerateAll(context.Background(), threeScenePlan().Scenes, rec.record)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}

	t.Run("should call image producer for the still scene and the animated one", func(t *testing.T) {
		if n := len(img.calls()); n != 2 {
			t.Fatalf("image calls = %d, want 2", n)
		}
		if n := len(vid.calls()); n != 1 {
			t.Fatalf("video calls = %d, want 1", n)
		}
		if len(anim.Inputs) != 1 || anim.Inputs[0].Scene != 3 {
			t.Fatalf("animator inputs %+v", anim.Inputs)
		}
	})

	t.Run("should report the intermediate still before the final clip", func(t *testing.T) {
		if len(rec.assets) != 4 {
			t.Fatalf("expected 4 callbacks, got %d", len(rec.assets))
		}
		last, prev := rec.assets[3], rec.assets[2]
		if prev.Kind != model.MediaImage || rec.finals[2] {
			t.Fatalf("expected intermediate image, got %s final=%v", prev.Kind, rec.finals[2])
		}
		if last.Kind != model.MediaVideo || !rec.finals[3] {
			t.Fatalf("expected final video, got %s final=%v", last.Kind, rec.finals[3])
		}
	})

	t.Run("should return the animated clip as the scene asset", func(t *testing.T) {
		if assets[2].Kind != model.MediaVideo || assets[2].Provenance.InputImage == "" {
			t.Fatalf("scene 3 asset %+v", assets[2])
		}
	})
}

func TestGenerateAll_FailFast(t *testing.T) {
	t.Parallel()
	img := newMockProducer("img", model.MediaImage)
	vid := newMockProducer("vid", model.MediaVideo)
	boom := &domain.ProducerFailureError{Producer: "vid", JobID: "j1", State: "FAILED", Detail: "nsfw"}
	vid.ProduceFunc = func(ctx context.Context, s model.SceneStep) (*model.GeneratedAsset, error) {
		return nil, boom
	}
	c := newTestCoordinator(img, vid, &MockAnimator{}, CoordinatorConfig{})

	rec := &progressRecorder{}
	assets, err := c.GenerateAll(context.Background(), threeScenePlan().Scenes, rec.record)
	if assets != nil {
		t.Fatalf("expected no assets on failure")
	}
	var aborted *domain.SceneBatchAbortedError
	if !errors.As(err, &aborted) || aborted.Scene != 2 {
		t.Fatalf("expected abort at scene 2, got %v", err)
	}
	if !errors.Is(err, domain.ErrProducerFailure) {
		t.Fatalf("cause lost: %v", err)
	}
	if len(rec.assets) != 1 {
		t.Fatalf("scene 1 should still be reported, got %d callbacks", len(rec.assets))
	}
	if n := len(img.calls()); n != 1 {
		t.Fatalf("scene 3 must not start, image calls = %d", n)
	}
}

func TestGenerateAll_CancelBetweenScenes(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	img := newMockProducer("img", model.MediaImage)
	img.ProduceFunc = func(_ context.Context, s model.SceneStep) (*model.GeneratedAsset, error) {
		// the scene in flight completes; the next one never starts
		cancel()
		return model.NewGeneratedAsset(s, model.MediaImage, "/tmp/x.png", model.Provenance{Producer: "img"}), nil
	}
	c := newTestCoordinator(img, newMockProducer("vid", model.MediaVideo), &MockAnimator{}, CoordinatorConfig{})

	rec := &progressRecorder{}
	_, err := c.GenerateAll(ctx, threeScenePlan().Scenes, rec.record)
	if !errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	var aborted *domain.SceneBatchAbortedError
	if !errors.As(err, &aborted) || aborted.Scene != 2 {
		t.Fatalf("expected abort before scene 2, got %v", err)
	}
	if len(rec.assets) != 1 || !rec.finals[0] {
		t.Fatalf("scene 1 should be reported complete")
	}
	if got := domain.ErrorKind(err); got != "canceled" {
		t.Fatalf("ErrorKind = %s", got)
	}
}

func TestGenerateAll_SceneTimeout(t *testing.T) {
	t.Parallel()
	img := newMockProducer("img", model.MediaImage)
	img.ProduceFunc = func(ctx context.Context, s model.SceneStep) (*model.GeneratedAsset, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := newTestCoordinator(img, newMockProducer("vid", model.MediaVideo), &MockAnimator{}, CoordinatorConfig{SceneTimeout: 20 * time.Millisecond})

	_, err := c.GenerateAll(context.Background(), threeScenePlan().Scenes[:1], nil)
	if !errors.Is(err, domain.ErrProducerTimeout) {
		t.Fatalf("expected producer timeout, got %v", err)
	}
	if errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("a scene deadline is not a cancellation: %v", err)
	}
}

func TestGenerateAll_PromptRefinement(t *testing.T) {
	t.Parallel()

	t.Run("should send refined prompt and keep the draft in provenance", func(t *testing.T) {
		img := newMockProducer("img", model.MediaImage)
		c := NewGenerationCoordinator(NewDispatchPolicy(nil), Producers{Image: img}, &MockRefiner{}, CoordinatorConfig{}, logging.Nop())
		assets, err := c.GenerateAll(context.Background(), threeScenePlan().Scenes[:1], nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := img.calls()[0].DraftPrompt; got != "refined prompt 1" {
			t.Fatalf("producer got %q", got)
		}
		if assets[0].Provenance.OriginalPrompt != "prompt 1" {
			t.Fatalf("original prompt = %q", assets[0].Provenance.OriginalPrompt)
		}
	})

	t.Run("should fall back to draft when refinement fails", func(t *testing.T) {
		img := newMockProducer("img", model.MediaImage)
		refiner := &MockRefiner{RefineFunc: func(context.Context, model.SceneStep, model.MediaKind, string) (string, error) {
			return "", errors.New("llm down")
		}}
		c := NewGenerationCoordinator(NewDispatchPolicy(nil), Producers{Image: img}, refiner, CoordinatorConfig{}, logging.Nop())
		if _, err := c.GenerateAll(context.Background(), threeScenePlan().Scenes[:1], nil); err != nil {
			t.Fatal(err)
		}
		if got := img.calls()[0].DraftPrompt; got != "prompt 1" {
			t.Fatalf("producer got %q", got)
		}
	})

	t.Run("should pass the style to the refiner and append it to every prompt", func(t *testing.T) {
		img := newMockProducer("img", model.MediaImage)
		vid := newMockProducer("vid", model.MediaVideo)
		var mu sync.Mutex
		var styles []string
		refiner := &MockRefiner{RefineFunc: func(_ context.Context, s model.SceneStep, _ model.MediaKind, style string) (string, error) {
			mu.Lock()
			styles = append(styles, style)
			mu.Unlock()
			return "refined " + s.DraftPrompt, nil
		}}
		c := NewGenerationCoordinator(NewDispatchPolicy([]string{"epic"}), Producers{Image: img, Video: vid, Animator: &MockAnimator{}}, refiner, CoordinatorConfig{}, logging.Nop())
		const style = "Soft watercolor textures."
		if _, err := c.GenerateStyled(context.Background(), threeScenePlan().Scenes, style, nil); err != nil {
			t.Fatal(err)
		}
		for _, s := range append(img.calls(), vid.calls()...) {
			if !strings.HasSuffix(s.DraftPrompt, style) || !strings.HasPrefix(s.DraftPrompt, "refined ") {
				t.Fatalf("scene %d prompt %q", s.Number, s.DraftPrompt)
			}
		}
		mu.Lock()
		defer mu.Unlock()
		if len(styles) != 3 {
			t.Fatalf("refiner called %d times", len(styles))
		}
		for _, got := range styles {
			if got != style {
				t.Fatalf("refiner saw style %q", got)
			}
		}
	})

	t.Run("should append the style without a refiner", func(t *testing.T) {
		img := newMockProducer("img", model.MediaImage)
		c := NewGenerationCoordinator(NewDispatchPolicy(nil), Producers{Image: img}, nil, CoordinatorConfig{}, logging.Nop())
		assets, err := c.GenerateStyled(context.Background(), threeScenePlan().Scenes[:1], "noir", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got := img.calls()[0].DraftPrompt; got != "prompt 1. noir" {
			t.Fatalf("producer got %q", got)
		}
		if assets[0].Provenance.OriginalPrompt != "prompt 1" {
			t.Fatalf("original prompt = %q", assets[0].Provenance.OriginalPrompt)
		}
	})
}

func TestCheckReady(t *testing.T) {
	t.Parallel()
	scenes := threeScenePlan().Scenes

	t.Run("should name the missing video producer", func(t *testing.T) {
		c := newTestCoordinator(newMockProducer("img", model.MediaImage), nil, &MockAnimator{}, CoordinatorConfig{})
		err := c.CheckReady(scenes)
		var missing *domain.ConfigurationMissingError
		if !errors.As(err, &missing) || missing.Key != "media.video" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should name the missing animator", func(t *testing.T) {
		c := newTestCoordinator(newMockProducer("img", model.MediaImage), newMockProducer("vid", model.MediaVideo), nil, CoordinatorConfig{})
		err := c.CheckReady(scenes)
		var missing *domain.ConfigurationMissingError
		if !errors.As(err, &missing) || missing.Key != "media.animate" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should not call any producer when not ready", func(t *testing.T) {
		img := newMockProducer("img", model.MediaImage)
		c := newTestCoordinator(img, nil, nil, CoordinatorConfig{})
		if _, err := c.GenerateAll(context.Background(), scenes, nil); !errors.Is(err, domain.ErrConfigurationMissing) {
			t.Fatalf("got %v", err)
		}
		if len(img.calls()) != 0 {
			t.Fatalf("producer called before readiness check")
		}
	})

	t.Run("should reject duplicate scene numbers", func(t *testing.T) {
		c := newTestCoordinator(newMockProducer("img", model.MediaImage), newMockProducer("vid", model.MediaVideo), &MockAnimator{}, CoordinatorConfig{})
		dup := []model.SceneStep{scenes[0], scenes[0]}
		if err := c.CheckReady(dup); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should accept image-only plans without video producers", func(t *testing.T) {
		c := newTestCoordinator(newMockProducer("img", model.MediaImage), nil, nil, CoordinatorConfig{})
		if err := c.CheckReady(scenes[:1]); err != nil {
			t.Fatalf("got %v", err)
		}
	})
}
