// Package media holds the scene producers and animators behind the
// coordinator, plus the factory that picks them from config.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/storage"
)

// MotionSuffix is appended to an image prompt when the image is animated.
const MotionSuffix = ", subtle cinematic motion, parallax effect, professional camera movement"

// AnimationPrompt turns the prompt a still was made from into a motion prompt.
func AnimationPrompt(imagePrompt string) string {
	p := strings.TrimSpace(imagePrompt)
	if strings.HasSuffix(p, MotionSuffix) {
		return p
	}
	return p + MotionSuffix
}

func scenePrompt(s model.SceneStep) string {
	if p := strings.TrimSpace(s.DraftPrompt); p != "" {
		return p
	}
	return s.Description
}

// assetKey groups objects by project: <project>/scene_007_<producer>_<ulid>.png
func assetKey(ctx context.Context, producer string, scene int, ext string) string {
	project := logging.ProjectID(ctx)
	if project == "" {
		project = "adhoc"
	}
	return fmt.Sprintf("%s/scene_%03d_%s_%s%s", project, scene, producer, strings.ToLower(ulid.Make().String()), ext)
}

// save stores produced bytes and returns the asset path and URL.
func save(ctx context.Context, store adapter.AssetStore, producer string, scene int, data []byte, contentType string) (string, string, error) {
	key := assetKey(ctx, producer, scene, storage.Extension(contentType))
	obj, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return "", "", fmt.Errorf("store %s: %w", key, err)
	}
	path := obj.Path
	if path == "" {
		path = obj.Key
	}
	return path, obj.URL, nil
}

// readImage loads the still an animator starts from.
func readImage(image *model.GeneratedAsset) ([]byte, string, error) {
	if image == nil || image.Path == "" {
		return nil, "", errors.New("animation input has no local path")
	}
	b, err := os.ReadFile(image.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read animation input: %w", err)
	}
	return b, storage.ContentType(image.Path), nil
}

// requestError classifies a failed provider call. A done context passes
// through untouched so the caller sees cancellation or its own deadline.
func requestError(ctx context.Context, producer string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", producer, ctx.Err())
	}
	if errors.Is(err, domain.ErrConfigurationMissing) {
		return err
	}
	return &domain.ProducerFailureError{Producer: producer, State: "REQUEST", Detail: err.Error()}
}

// downloadError classifies a failed payload fetch after a successful job.
// A done context passes through like in requestError.
func downloadError(ctx context.Context, producer, jobID, ref string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", producer, ctx.Err())
	}
	return &domain.DownloadError{Producer: producer, JobID: jobID, Ref: ref, Cause: err}
}
