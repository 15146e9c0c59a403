package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/poller"
)

var (
	_ adapter.SceneProducer = (*HTTPVideoProducer)(nil)
	_ adapter.Animator      = (*HTTPVideoProducer)(nil)
)

// HTTPVideoProducer talks to a task-style video API:
//
//	POST {base}/v1/tasks      -> {"id": "..."}
//	GET  {base}/v1/tasks/{id} -> {"status": "...", "output": ["<url>"], "failure": "..."}
//
// Once the task succeeds the first output URL is downloaded and stored.
type HTTPVideoProducer struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	ratio   string
	client  *http.Client
	store   adapter.AssetStore
	poll    poller.Config
	log     *zerolog.Logger
}

func NewHTTPVideoProducer(baseURL, apiKey, modelName string, store adapter.AssetStore, poll poller.Config, logger *zerolog.Logger) (*HTTPVideoProducer, error) {
	if baseURL == "" {
		return nil, &domain.ConfigurationMissingError{Key: "media.video.base_url"}
	}
	if apiKey == "" {
		return nil, &domain.ConfigurationMissingError{Key: "media.video.api_key"}
	}
	if poll.Producer == "" {
		poll.Producer = "http-video"
	}
	return &HTTPVideoProducer{
		name:    poll.Producer,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		ratio:   "1280:720",
		client:  &http.Client{Timeout: 60 * time.Second},
		store:   store,
		poll:    poll,
		log:     logging.Component(logger, "http_video"),
	}, nil
}

func (p *HTTPVideoProducer) Name() string { return p.name }

type taskRequest struct {
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"promptText"`
	Image    string `json:"promptImage,omitempty"`
	Duration int    `json:"duration"`
	Ratio    string `json:"ratio"`
}

type taskResponse struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

func (p *HTTPVideoProducer) Produce(ctx context.Context, scene model.SceneStep) (*model.GeneratedAsset, error) {
	prompt := scenePrompt(scene)
	path, url, err := p.run(ctx, scene, taskRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	a := model.NewGeneratedAsset(scene, model.MediaVideo, path, model.Provenance{
		Producer: p.Name(), Model: p.model, Prompt: prompt, RequestedSecs: scene.ClipSeconds(),
	})
	a.URL = url
	return a, nil
}

func (p *HTTPVideoProducer) Animate(ctx context.Context, scene model.SceneStep, image *model.GeneratedAsset) (*model.GeneratedAsset, error) {
	ref, err := imageRef(image)
	if err != nil {
		return nil, requestError(ctx, p.Name(), err)
	}
	base := image.Provenance.Prompt
	if base == "" {
		base = scenePrompt(scene)
	}
	prompt := AnimationPrompt(base)

	path, url, err := p.run(ctx, scene, taskRequest{Prompt: prompt, Image: ref})
	if err != nil {
		return nil, err
	}
	a := model.NewGeneratedAsset(scene, model.MediaVideo, path, model.Provenance{
		Producer: p.Name(), Model: p.model, Prompt: prompt, InputImage: image.Path, RequestedSecs: scene.ClipSeconds(),
	})
	a.URL = url
	return a, nil
}

// imageRef prefers a remote URL the provider can fetch; local files are
// inlined as a data URI.
func imageRef(image *model.GeneratedAsset) (string, error) {
	if image != nil && (strings.HasPrefix(image.URL, "https://") || strings.HasPrefix(image.URL, "http://")) {
		return image.URL, nil
	}
	data, mime, err := readImage(image)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (p *HTTPVideoProducer) run(ctx context.Context, scene model.SceneStep, req taskRequest) (string, string, error) {
	req.Model = p.model
	req.Duration = scene.ClipSeconds()
	req.Ratio = p.ratio

	var taskID string
	var last taskResponse
	job := poller.Funcs[string, string]{
		SubmitFn: func(ctx context.Context) (string, error) {
			var out taskResponse
			if err := p.do(ctx, http.MethodPost, "/v1/tasks", req, &out); err != nil {
				return "", err
			}
			if out.ID == "" {
				return "", errors.New("submit returned no task id")
			}
			taskID = out.ID
			return out.ID, nil
		},
		PollFn: func(ctx context.Context, id string) (poller.Status, error) {
			var out taskResponse
			if err := p.do(ctx, http.MethodGet, "/v1/tasks/"+id, nil, &out); err != nil {
				return poller.Status{}, err
			}
			last = out
			return poller.Status{State: taskState(out.Status), Detail: out.Failure}, nil
		},
		ResultFn: func(_ context.Context, _ string) (string, error) {
			if len(last.Output) == 0 {
				return "", errors.New("task succeeded without output")
			}
			return last.Output[0], nil
		},
	}

	ref, err := poller.AwaitCompletion(ctx, job, p.poll)
	if err != nil {
		return "", "", err
	}
	data, err := p.download(ctx, ref)
	if err != nil {
		return "", "", downloadError(ctx, p.Name(), taskID, ref, err)
	}
	return save(ctx, p.store, p.Name(), scene.Number, data, "video/mp4")
}

func taskState(s string) poller.State {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCEEDED", "SUCCESS", "COMPLETED":
		return poller.StateSucceeded
	case "FAILED", "ERROR":
		return poller.StateFailed
	case "CANCELLED", "CANCELED":
		return poller.StateCanceled
	case "RUNNING", "PROCESSING":
		return poller.StateRunning
	default:
		return poller.StatePending
	}
}

func (p *HTTPVideoProducer) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}

func (p *HTTPVideoProducer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
