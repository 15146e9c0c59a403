package usecase

import (
	"strings"

	"media-pipeline/internal/domain/model"
)

// Branch is the production path chosen for one scene.
type Branch string

const (
	BranchDirectImage      Branch = "DIRECT_IMAGE"
	BranchDirectVideo      Branch = "DIRECT_VIDEO"
	BranchImageThenAnimate Branch = "IMAGE_THEN_ANIMATE"
)

// DispatchPolicy picks a Branch from the scene's media kind and mood. It holds
// no mutable state after construction, so Decide is safe for concurrent use.
type DispatchPolicy struct {
	keywords []string
}

// NewDispatchPolicy normalizes the cinematic keyword list. The image-then-animate
// path costs an extra image call, so which moods trigger it is configuration.
func NewDispatchPolicy(keywords []string) *DispatchPolicy {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &DispatchPolicy{keywords: kw}
}

func (p *DispatchPolicy) Decide(scene model.SceneStep) Branch {
	if scene.Kind != model.MediaVideo {
		return BranchDirectImage
	}
	mood := strings.ToLower(scene.Mood)
	for _, k := range p.keywords {
		if strings.Contains(mood, k) {
			return BranchImageThenAnimate
		}
	}
	return BranchDirectVideo
}

func (p *DispatchPolicy) Keywords() []string {
	return append([]string(nil), p.keywords...)
}
