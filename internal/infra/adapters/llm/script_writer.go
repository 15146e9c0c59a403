package llm

import (
	"context"
	"fmt"
	"strings"

	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ScriptWriter = (*ScriptWriter)(nil)

const directorSystem = `You are a music video director and Python programmer specialised in MoviePy.
You write clean, runnable assembly scripts that sync visuals to the audio track.`

const directorTemplate = `Write a complete, runnable Python script using MoviePy that assembles a music video.

Project: %s
Audio track: %s
Total duration: %.2f seconds
Output file: %s

Assets in scene order:
%s
Guidelines:
- resize everything to 1920x1080
- apply the Ken Burns direction to still images over their whole duration
- apply the color grade hint as a simple color transform
- honor each scene's transition; cut means no transition
- the video must match the audio duration exactly
- skip missing files with a warning instead of crashing

Return only the Python code.`

// ScriptWriter drafts an assembly script from the stitching cards.
type ScriptWriter struct {
	c *Client
}

func NewScriptWriter(c *Client) *ScriptWriter { return &ScriptWriter{c: c} }

func (w *ScriptWriter) WriteScript(ctx context.Context, req adapter.ScriptRequest) (string, error) {
	user := fmt.Sprintf(directorTemplate, req.ProjectName, req.AudioPath, req.Duration, req.OutputPath, describeAssets(req.Assets))
	return w.c.Complete(ctx, directorSystem, user, adapter.ChatOptions{Temperature: 0.25})
}

func describeAssets(assets []model.GeneratedAsset) string {
	var b strings.Builder
	for _, a := range assets {
		c := a.Card
		fmt.Fprintf(&b, "Scene %d:\n", a.Scene)
		fmt.Fprintf(&b, "  - type: %s\n  - path: %s\n", a.Kind, a.Path)
		fmt.Fprintf(&b, "  - time: %.2fs to %.2fs (%.2fs)\n", c.TimeStart, c.TimeEnd, c.Duration())
		fmt.Fprintf(&b, "  - transition: %s\n  - mood: %s\n  - color grade: %s\n", c.Transition, c.Mood, c.ColorGrade)
		if a.Kind == model.MediaImage {
			fmt.Fprintf(&b, "  - ken burns: %s\n", c.KenBurns)
		}
		if cue := truncate(c.AudioCue, 150); cue != "" {
			fmt.Fprintf(&b, "  - audio: %s\n", cue)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
