package model

import (
	"strings"

	"media-pipeline/internal/domain"
)

// MediaKind is the kind of media a scene asks for or an asset holds.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind accepts the planner's loose spelling ("IMAGE", "Video", ...).
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaImage:
		return MediaImage, nil
	case MediaVideo:
		return MediaVideo, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

type Transition string

const (
	TransitionFade      Transition = "fade"
	TransitionCrossfade Transition = "crossfade"
	TransitionCut       Transition = "cut"
	TransitionZoom      Transition = "zoom"
	TransitionSlide     Transition = "slide"
)

// ParseTransition never fails; unknown names fall back to a crossfade.
func ParseTransition(s string) Transition {
	switch t := Transition(strings.ToLower(strings.TrimSpace(s))); t {
	case TransitionFade, TransitionCrossfade, TransitionCut, TransitionZoom, TransitionSlide:
		return t
	default:
		return TransitionCrossfade
	}
}

// SceneStep is one timed unit of the plan. It is never patched in place;
// re-planning replaces the whole TimelinePlan.
type SceneStep struct {
	Number       int        `json:"scene_number"`
	Description  string     `json:"description"`
	TimeStart    float64    `json:"time_start"`
	TimeEnd      float64    `json:"time_end"`
	Kind         MediaKind  `json:"suggested_media_type"`
	Mood         string     `json:"mood"`
	DraftPrompt  string     `json:"visual_prompt_draft"`
	AudioContext string     `json:"audio_context"`
	Transition   Transition `json:"suggested_transition"`
}

func (s SceneStep) Duration() float64 { return s.TimeEnd - s.TimeStart }

// Validate checks the fields a scene needs on its own, independent of the plan.
func (s SceneStep) Validate() error {
	if s.Number < 1 || s.TimeEnd <= s.TimeStart {
		return domain.ErrInvalidArgument
	}
	if s.Kind != MediaImage && s.Kind != MediaVideo {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Styled returns a copy whose prompt ends with the project's style directive.
// An empty style or one already present leaves the scene unchanged.
func (s SceneStep) Styled(style string) SceneStep {
	style = strings.TrimSpace(style)
	prompt := strings.TrimSpace(s.DraftPrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(s.Description)
	}
	if style == "" || strings.Contains(prompt, style) {
		return s
	}
	if prompt == "" {
		s.DraftPrompt = style
		return s
	}
	s.DraftPrompt = strings.TrimRight(prompt, ". ") + ". " + style
	return s
}

// ClipSeconds picks the nearest clip length video producers accept (4, 6 or 8s).
func (s SceneStep) ClipSeconds() int {
	d := s.Duration()
	switch {
	case d <= 5:
		return 4
	case d <= 7:
		return 6
	default:
		return 8
	}
}
