package media

import (
	"context"
	"fmt"
	"time"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
)

var (
	_ adapter.SceneProducer = (*NoopProducer)(nil)
	_ adapter.Animator      = (*NoopAnimator)(nil)
)

// NoopProducer writes a small placeholder instead of calling a provider.
// It backs local runs and the demo.
type NoopProducer struct {
	kind  model.MediaKind
	store adapter.AssetStore
	delay time.Duration
}

func NewNoopProducer(kind model.MediaKind, store adapter.AssetStore, delay time.Duration) *NoopProducer {
	return &NoopProducer{kind: kind, store: store, delay: delay}
}

func (p *NoopProducer) Name() string { return "noop-" + string(p.kind) }

func (p *NoopProducer) Produce(ctx context.Context, scene model.SceneStep) (*model.GeneratedAsset, error) {
	if err := wait(ctx, p.delay); err != nil {
		return nil, err
	}
	prompt := scenePrompt(scene)
	path, url, err := p.placeholder(ctx, scene.Number, prompt)
	if err != nil {
		return nil, err
	}
	a := model.NewGeneratedAsset(scene, p.kind, path, model.Provenance{Producer: p.Name(), Model: "noop", Prompt: prompt})
	if p.kind == model.MediaVideo {
		a.Provenance.RequestedSecs = scene.ClipSeconds()
	}
	a.URL = url
	return a, nil
}

func (p *NoopProducer) placeholder(ctx context.Context, scene int, prompt string) (string, string, error) {
	if p.store == nil {
		return fmt.Sprintf("noop://%s/scene_%03d", p.kind, scene), "", nil
	}
	ct := "image/png"
	if p.kind == model.MediaVideo {
		ct = "video/mp4"
	}
	body := []byte(fmt.Sprintf("placeholder %s for scene %d: %s\n", p.kind, scene, prompt))
	return save(ctx, p.store, p.Name(), scene, body, ct)
}

// NoopAnimator turns a still into a placeholder clip.
type NoopAnimator struct {
	inner *NoopProducer
}

func NewNoopAnimator(store adapter.AssetStore, delay time.Duration) *NoopAnimator {
	return &NoopAnimator{inner: NewNoopProducer(model.MediaVideo, store, delay)}
}

func (a *NoopAnimator) Name() string { return "noop-animate" }

func (a *NoopAnimator) Animate(ctx context.Context, scene model.SceneStep, image *model.GeneratedAsset) (*model.GeneratedAsset, error) {
	scene.DraftPrompt = AnimationPrompt(scenePrompt(scene))
	out, err := a.inner.Produce(ctx, scene)
	if err != nil {
		return nil, err
	}
	out.Provenance.Producer = a.Name()
	if image != nil {
		out.Provenance.InputImage = image.Path
	}
	return out, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
