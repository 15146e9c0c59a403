package media

import (
	"context"
	"fmt"
	"strings"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/adapters/llm"
)

var _ adapter.PromptRefiner = (*PromptRefiner)(nil)

const refinerSystem = `You are an expert prompt engineer for AI image and video generation.
Your job is to transform draft prompts into production-quality prompts that will generate stunning visuals.
You understand cinematography, lighting, composition, and artistic styles deeply.`

const refinerTemplate = `Refine this draft prompt into a production-quality prompt optimized for %s generation.

Draft prompt:
%s

Scene context:
- Description: %s
- Mood: %s
- Audio context: %s
- Duration: %.1f seconds

%s
%s
Requirements:
- be specific and evocative, not generic
- include technical cinematography terms
- match the mood precisely
- evoke a single, clear visual
- keep the visual style directive when one is given

Return only the refined prompt text. No explanation, no quotes.`

const imageGuidelines = `For images focus on composition, lighting, color palette, camera angle,
artistic style and atmosphere.`

const videoGuidelines = `For videos describe motion: camera movement (dolly, orbit, tracking,
crane), temporal flow (slow motion, time-lapse), subject motion and
environmental motion.`

// PromptRefiner rewrites a scene's draft prompt for the media kind it feeds.
type PromptRefiner struct {
	c *llm.Client
}

func NewPromptRefiner(c *llm.Client) *PromptRefiner { return &PromptRefiner{c: c} }

func (r *PromptRefiner) RefinePrompt(ctx context.Context, scene model.SceneStep, kind model.MediaKind, style string) (string, error) {
	guide := imageGuidelines
	if kind == model.MediaVideo {
		guide = videoGuidelines
	}
	var styleLine string
	if style = strings.TrimSpace(style); style != "" {
		styleLine = fmt.Sprintf("\nVisual style directive:\n%s\n", style)
	}
	user := fmt.Sprintf(refinerTemplate,
		strings.ToUpper(string(kind)), scenePrompt(scene), scene.Description, scene.Mood, scene.AudioContext, scene.Duration(), guide, styleLine)

	out, err := r.c.Complete(ctx, refinerSystem, user, adapter.ChatOptions{Temperature: 0.85})
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"'`), nil
}
