package model

import (
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// Provenance records who produced an asset and from what prompt.
type Provenance struct {
	Producer       string `json:"producer"`
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	OriginalPrompt string `json:"original_prompt,omitempty"`
	InputImage     string `json:"input_image,omitempty"`
	RequestedSecs  int    `json:"requested_duration,omitempty"`
}

// StitchingCard carries what the assembly stage needs to place the asset.
type StitchingCard struct {
	TimeStart  float64    `json:"time_start"`
	TimeEnd    float64    `json:"time_end"`
	Mood       string     `json:"mood"`
	AudioCue   string     `json:"audio_cue"`
	Transition Transition `json:"transition"`
	KenBurns   KenBurns   `json:"ken_burns,omitempty"`
	ColorGrade ColorGrade `json:"color_grade"`
}

func (c StitchingCard) Duration() float64 { return c.TimeEnd - c.TimeStart }

// GeneratedAsset is one produced artifact for one scene.
type GeneratedAsset struct {
	ID         string        `json:"id"`
	Scene      int           `json:"scene_number"`
	Kind       MediaKind     `json:"media_type"`
	Path       string        `json:"asset_path"`
	URL        string        `json:"url,omitempty"`
	Provenance Provenance    `json:"provenance"`
	Card       StitchingCard `json:"stitching_card"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewGeneratedAsset stamps a new asset for the given scene with a sortable id
// and the scene's stitching metadata.
func NewGeneratedAsset(scene SceneStep, kind MediaKind, path string, prov Provenance) *GeneratedAsset {
	card := StitchingCard{
		TimeStart:  scene.TimeStart,
		TimeEnd:    scene.TimeEnd,
		Mood:       scene.Mood,
		AudioCue:   scene.AudioContext,
		Transition: ParseTransition(string(scene.Transition)),
		ColorGrade: ColorGradeForMood(scene.Mood),
	}
	if kind == MediaImage {
		card.KenBurns = KenBurnsForMood(scene.Mood)
	}
	return &GeneratedAsset{
		ID:         ulid.Make().String(),
		Scene:      scene.Number,
		Kind:       kind,
		Path:       path,
		Provenance: prov,
		Card:       card,
		CreatedAt:  time.Now(),
	}
}

// SortAssets orders assets by scene number in place.
func SortAssets(assets []GeneratedAsset) {
	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Scene < assets[j].Scene })
}
