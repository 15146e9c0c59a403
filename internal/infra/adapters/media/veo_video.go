package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/poller"
)

var (
	_ adapter.SceneProducer = (*VeoProducer)(nil)
	_ adapter.Animator      = (*VeoProducer)(nil)
)

const defaultVideoModel = "veo-3.1-generate-preview"

// VeoProducer runs Veo long-running operations through the poller. The same
// producer serves text-to-video scenes and image-to-video animation.
type VeoProducer struct {
	client      *genai.Client
	model       string
	store       adapter.AssetStore
	poll        poller.Config
	aspectRatio string
	log         *zerolog.Logger
}

func NewVeoProducer(client *genai.Client, modelName string, store adapter.AssetStore, poll poller.Config, logger *zerolog.Logger) *VeoProducer {
	if modelName == "" {
		modelName = defaultVideoModel
	}
	if poll.Producer == "" {
		poll.Producer = "veo"
	}
	return &VeoProducer{
		client:      client,
		model:       modelName,
		store:       store,
		poll:        poll,
		aspectRatio: "16:9",
		log:         logging.Component(logger, "veo"),
	}
}

func (p *VeoProducer) Name() string { return p.poll.Producer }

func (p *VeoProducer) Produce(ctx context.Context, scene model.SceneStep) (*model.GeneratedAsset, error) {
	prompt := scenePrompt(scene)
	path, url, err := p.generate(ctx, scene, prompt, nil)
	if err != nil {
		return nil, err
	}
	a := model.NewGeneratedAsset(scene, model.MediaVideo, path, model.Provenance{
		Producer: p.Name(), Model: p.model, Prompt: prompt, RequestedSecs: scene.ClipSeconds(),
	})
	a.URL = url
	return a, nil
}

func (p *VeoProducer) Animate(ctx context.Context, scene model.SceneStep, image *model.GeneratedAsset) (*model.GeneratedAsset, error) {
	data, mime, err := readImage(image)
	if err != nil {
		return nil, requestError(ctx, p.Name(), err)
	}
	base := image.Provenance.Prompt
	if base == "" {
		base = scenePrompt(scene)
	}
	prompt := AnimationPrompt(base)

	path, url, err := p.generate(ctx, scene, prompt, &genai.Image{ImageBytes: data, MIMEType: mime})
	if err != nil {
		return nil, err
	}
	a := model.NewGeneratedAsset(scene, model.MediaVideo, path, model.Provenance{
		Producer: p.Name(), Model: p.model, Prompt: prompt, InputImage: image.Path, RequestedSecs: scene.ClipSeconds(),
	})
	a.URL = url
	return a, nil
}

func (p *VeoProducer) generate(ctx context.Context, scene model.SceneStep, prompt string, image *genai.Image) (string, string, error) {
	cfg := &genai.GenerateVideosConfig{
		AspectRatio:     p.aspectRatio,
		DurationSeconds: genai.Ptr(int32(scene.ClipSeconds())),
		NumberOfVideos:  1,
	}

	// the SDK hands back a fresh operation on every poll; keep the latest
	var op *genai.GenerateVideosOperation
	job := poller.Funcs[string, *genai.GeneratedVideo]{
		SubmitFn: func(ctx context.Context) (string, error) {
			o, err := p.client.Models.GenerateVideos(ctx, p.model, prompt, image, cfg)
			if err != nil {
				return "", err
			}
			op = o
			return o.Name, nil
		},
		PollFn: func(ctx context.Context, _ string) (poller.Status, error) {
			o, err := p.client.Operations.GetVideosOperation(ctx, op, nil)
			if err != nil {
				return poller.Status{}, err
			}
			op = o
			return veoStatus(o), nil
		},
		ResultFn: func(_ context.Context, _ string) (*genai.GeneratedVideo, error) {
			if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
				return nil, errors.New("operation finished without a video")
			}
			return op.Response.GeneratedVideos[0], nil
		},
	}

	gv, err := poller.AwaitCompletion(ctx, job, p.poll)
	if err != nil {
		return "", "", err
	}
	data, err := p.fetch(ctx, gv)
	if err != nil {
		return "", "", downloadError(ctx, p.Name(), op.Name, gv.Video.URI, err)
	}
	path, url, err := save(ctx, p.store, p.Name(), scene.Number, data, "video/mp4")
	if err != nil {
		return "", "", err
	}
	logging.With(ctx, p.log).Debug().Str("path", path).Int("bytes", len(data)).Msg("video stored")
	return path, url, nil
}

// fetch returns inline bytes when the operation carried them and downloads
// the file otherwise.
func (p *VeoProducer) fetch(ctx context.Context, gv *genai.GeneratedVideo) ([]byte, error) {
	if len(gv.Video.VideoBytes) > 0 {
		return gv.Video.VideoBytes, nil
	}
	return p.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(gv), nil)
}

func veoStatus(o *genai.GenerateVideosOperation) poller.Status {
	switch {
	case o == nil || !o.Done:
		return poller.Status{State: poller.StateRunning}
	case o.Error != nil:
		return poller.Status{State: poller.StateFailed, Detail: fmt.Sprint(o.Error["message"])}
	default:
		return poller.Status{State: poller.StateSucceeded}
	}
}
