package media

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
)

var _ adapter.SceneProducer = (*GeminiImageProducer)(nil)

const defaultImageModel = "gemini-2.5-flash-image"

// GeminiImageProducer asks a Gemini image model for one still per scene and
// stores the first inline image it returns.
type GeminiImageProducer struct {
	client *genai.Client
	model  string
	store  adapter.AssetStore
	log    *zerolog.Logger
}

func NewGeminiImageProducer(client *genai.Client, modelName string, store adapter.AssetStore, logger *zerolog.Logger) *GeminiImageProducer {
	if modelName == "" {
		modelName = defaultImageModel
	}
	return &GeminiImageProducer{client: client, model: modelName, store: store, log: logging.Component(logger, "gemini_image")}
}

func (p *GeminiImageProducer) Name() string { return "gemini-image" }

func (p *GeminiImageProducer) Produce(ctx context.Context, scene model.SceneStep) (*model.GeneratedAsset, error) {
	prompt := scenePrompt(scene)
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return nil, requestError(ctx, p.Name(), err)
	}

	data, mime := firstInlineImage(resp)
	if len(data) == 0 {
		return nil, &domain.ProducerFailureError{Producer: p.Name(), State: "EMPTY", Detail: "no image data in response"}
	}
	path, url, err := save(ctx, p.store, p.Name(), scene.Number, data, mime)
	if err != nil {
		return nil, err
	}
	logging.With(ctx, p.log).Debug().Str("path", path).Int("bytes", len(data)).Msg("image stored")

	a := model.NewGeneratedAsset(scene, model.MediaImage, path, model.Provenance{Producer: p.Name(), Model: p.model, Prompt: prompt})
	a.URL = url
	return a, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil {
		return nil, ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return part.InlineData.Data, mime
			}
		}
	}
	return nil, ""
}
