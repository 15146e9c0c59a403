package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/poller"
)

// ProviderKind selects the backend for one media role.
type ProviderKind string

const (
	KindNoop   ProviderKind = "noop"
	KindGemini ProviderKind = "gemini"
	KindVeo    ProviderKind = "veo"
	KindHTTP   ProviderKind = "http"
)

func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindNoop, KindGemini, KindVeo, KindHTTP:
		return k, nil
	case "":
		return KindNoop, nil
	default:
		return "", fmt.Errorf("unknown media provider %q", s)
	}
}

// Factory builds producers from the media config. Construction fails fast on
// unknown kinds; missing credentials come back as ConfigurationMissingError.
type Factory struct {
	cfg       config.MediaConfig
	geminiKey string
	store     adapter.AssetStore
	log       *zerolog.Logger
	noopDelay time.Duration

	clients map[string]*genai.Client
}

func NewFactory(cfg config.MediaConfig, geminiKey string, store adapter.AssetStore, logger *zerolog.Logger) *Factory {
	return &Factory{
		cfg:       cfg,
		geminiKey: geminiKey,
		store:     store,
		log:       logger,
		noopDelay: 50 * time.Millisecond,
		clients:   map[string]*genai.Client{},
	}
}

// WithNoopDelay sets how long noop producers pretend to work.
func (f *Factory) WithNoopDelay(d time.Duration) *Factory {
	f.noopDelay = d
	return f
}

func (f *Factory) Image(ctx context.Context) (adapter.SceneProducer, error) {
	pc := f.cfg.Image
	kind, err := ParseProviderKind(pc.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindNoop:
		return NewNoopProducer(model.MediaImage, f.store, f.noopDelay), nil
	case KindGemini:
		c, err := f.genai(ctx, pc, "media.image.api_key")
		if err != nil {
			return nil, err
		}
		return NewGeminiImageProducer(c, pc.Model, f.store, f.log), nil
	default:
		return nil, fmt.Errorf("media.image.kind %q cannot produce images", kind)
	}
}

func (f *Factory) Video(ctx context.Context) (adapter.SceneProducer, error) {
	return f.video(ctx, f.cfg.Video, "media.video", model.MediaVideo)
}

func (f *Factory) Animator(ctx context.Context) (adapter.Animator, error) {
	kind, err := ParseProviderKind(f.cfg.Animate.Kind)
	if err != nil {
		return nil, err
	}
	if kind == KindNoop {
		return NewNoopAnimator(f.store, f.noopDelay), nil
	}
	p, err := f.video(ctx, f.cfg.Animate, "media.animate", "")
	if err != nil {
		return nil, err
	}
	a, ok := p.(adapter.Animator)
	if !ok {
		return nil, fmt.Errorf("media.animate.kind %q cannot animate", kind)
	}
	return a, nil
}

func (f *Factory) video(ctx context.Context, pc config.ProviderConfig, section string, noopKind model.MediaKind) (adapter.SceneProducer, error) {
	kind, err := ParseProviderKind(pc.Kind)
	if err != nil {
		return nil, err
	}
	pollCfg, err := poller.FromConfig(string(kind), pc.Poll, f.log)
	if err != nil {
		return nil, fmt.Errorf("%s.poll: %w", section, err)
	}
	switch kind {
	case KindNoop:
		return NewNoopProducer(noopKind, f.store, f.noopDelay), nil
	case KindVeo:
		c, err := f.genai(ctx, pc, section+".api_key")
		if err != nil {
			return nil, err
		}
		return NewVeoProducer(c, pc.Model, f.store, pollCfg, f.log), nil
	case KindHTTP:
		if pc.BaseURL == "" {
			return nil, &domain.ConfigurationMissingError{Key: section + ".base_url"}
		}
		if pc.APIKey == "" {
			return nil, &domain.ConfigurationMissingError{Key: section + ".api_key"}
		}
		return NewHTTPVideoProducer(pc.BaseURL, pc.APIKey, pc.Model, f.store, pollCfg, f.log)
	default:
		return nil, fmt.Errorf("%s.kind %q cannot produce video", section, kind)
	}
}

// genai returns one client per key/base URL pair.
func (f *Factory) genai(ctx context.Context, pc config.ProviderConfig, key string) (*genai.Client, error) {
	apiKey := pc.APIKey
	if apiKey == "" {
		apiKey = f.geminiKey
	}
	if apiKey == "" {
		return nil, &domain.ConfigurationMissingError{Key: key}
	}
	id := apiKey + "|" + pc.BaseURL
	if c, ok := f.clients[id]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: pc.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	f.clients[id] = c
	return c, nil
}
