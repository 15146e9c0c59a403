// File: internal/usecase/script_uc.go
package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/logging"
)

type ScriptConfig struct {
	Dir               string
	OutputDir         string
	TransitionSeconds float64
	LLMTimeout        time.Duration
}

// ScriptBuilder writes the assembly script for a project's assets. The static
// form is deterministic; the LLM form is drafted by a ScriptWriter and then
// put through the critique loop.
type ScriptBuilder struct {
	writer adapter.ScriptWriter
	loop   *CritiqueRefineLoop
	cfg    ScriptConfig
	log    *zerolog.Logger
}

func NewScriptBuilder(writer adapter.ScriptWriter, loop *CritiqueRefineLoop, cfg ScriptConfig, logger *zerolog.Logger) *ScriptBuilder {
	if cfg.TransitionSeconds <= 0 {
		cfg.TransitionSeconds = 0.5
	}
	return &ScriptBuilder{writer: writer, loop: loop, cfg: cfg, log: logging.Component(logger, "script_builder")}
}

// OutputPath is where the rendered file for a project is expected.
func (b *ScriptBuilder) OutputPath(projectID string) string {
	return filepath.Join(b.cfg.OutputDir, "final_"+projectID+".mp4")
}

func (b *ScriptBuilder) Build(ctx context.Context, p *model.Project, assets []model.GeneratedAsset, useLLM bool) (*model.AssemblyScript, error) {
	if len(assets) == 0 {
		return nil, domain.ErrNoAssets
	}
	ordered := append([]model.GeneratedAsset(nil), assets...)
	model.SortAssets(ordered)

	script := &model.AssemblyScript{ProjectID: p.ID, Source: model.ScriptStatic, Accepted: true}
	var err error
	if useLLM {
		if b.writer == nil {
			return nil, &domain.ConfigurationMissingError{Key: "ai.provider"}
		}
		err = b.authored(ctx, p, ordered, script)
	} else {
		script.Body, err = b.static(p, ordered)
	}
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("script dir: %w", err)
	}
	script.Path = filepath.Join(b.cfg.Dir, "assemble_"+p.ID+".py")
	if err := os.WriteFile(script.Path, []byte(script.Body), 0o644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}
	b.log.Info().Str("project_id", p.ID).Str("source", string(script.Source)).Str("path", script.Path).Msg("assembly script written")
	return script, nil
}

func (b *ScriptBuilder) authored(ctx context.Context, p *model.Project, assets []model.GeneratedAsset, out *model.AssemblyScript) error {
	req := adapter.ScriptRequest{
		ProjectName: p.Name,
		AudioPath:   p.AudioPath,
		OutputPath:  b.OutputPath(p.ID),
		Duration:    assets[len(assets)-1].Card.TimeEnd,
		Assets:      assets,
	}
	wctx := ctx
	if b.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.cfg.LLMTimeout)
		defer cancel()
	}
	draft, err := b.writer.WriteScript(wctx, req)
	if err != nil {
		return fmt.Errorf("draft script: %w", err)
	}
	body := StripCodeFence(draft)
	out.Source = model.ScriptLLM

	if b.loop != nil {
		res, err := b.loop.Refine(ctx, body)
		if err != nil {
			return fmt.Errorf("refine script: %w", err)
		}
		body = StripCodeFence(res.Artifact)
		out.Iterations = res.Iterations
		out.Accepted = res.Accepted
		if !res.Accepted {
			b.log.Warn().Str("project_id", p.ID).Str("reason", res.LastReason).Int("iterations", res.Iterations).Msg("script not accepted by critic; keeping last rewrite")
		}
	}
	out.Body = body
	return nil
}

// StripCodeFence removes a surrounding markdown code fence, with or without a
// language tag.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(strings.TrimSpace(s[:nl]), " \t") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type clipSpec struct {
	Scene      int     `json:"scene"`
	Kind       string  `json:"kind"`
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	Mood       string  `json:"mood"`
	Transition string  `json:"transition"`
	FadeSecs   float64 `json:"transition_seconds"`
	KenBurns   string  `json:"ken_burns,omitempty"`
	Intensity  float64 `json:"ken_burns_intensity,omitempty"`
	Grade      string  `json:"color_grade"`
}

var staticScript = template.Must(template.New("assemble").Parse(`#!/usr/bin/env python3
# Assembly script for project {{.Name}} ({{.ID}}), {{.Count}} clips.
import json
import os
import sys

from moviepy.editor import AudioFileClip, ImageClip, VideoFileClip, concatenate_videoclips

OUTPUT_PATH = {{.Output}}
AUDIO_PATH = {{.Audio}}
FPS = 30
CLIPS = json.loads({{.Manifest}})


def load(spec):
    if spec["kind"] == "image":
        clip = ImageClip(spec["path"]).set_duration(spec["duration"])
    else:
        clip = VideoFileClip(spec["path"])
        if clip.duration > spec["duration"]:
            clip = clip.subclip(0, spec["duration"])
    if spec["transition"] in ("fade", "crossfade"):
        clip = clip.crossfadein(spec["transition_seconds"])
    return clip


def main():
    clips = [load(c) for c in CLIPS]
    video = concatenate_videoclips(clips, method="compose")
    if os.path.exists(AUDIO_PATH):
        audio = AudioFileClip(AUDIO_PATH)
        if audio.duration > video.duration:
            audio = audio.subclip(0, video.duration)
        video = video.set_audio(audio)
    video.write_videofile(OUTPUT_PATH, fps=FPS, codec="libx264", audio_codec="aac")
    return 0


if __name__ == "__main__":
    sys.exit(main())
`))

func (b *ScriptBuilder) static(p *model.Project, assets []model.GeneratedAsset) (string, error) {
	specs := make([]clipSpec, 0, len(assets))
	for _, a := range assets {
		spec := clipSpec{
			Scene:      a.Scene,
			Kind:       string(a.Kind),
			Path:       a.Path,
			Duration:   a.Card.Duration(),
			Mood:       a.Card.Mood,
			Transition: string(a.Card.Transition),
			FadeSecs:   model.TransitionSecondsForMood(a.Card.Mood, b.cfg.TransitionSeconds),
			Grade:      string(a.Card.ColorGrade),
		}
		if a.Kind == model.MediaImage {
			spec.KenBurns = string(a.Card.KenBurns)
			spec.Intensity = model.KenBurnsIntensityForMood(a.Card.Mood)
		}
		specs = append(specs, spec)
	}
	manifest, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = staticScript.Execute(&buf, map[string]any{
		"ID":       p.ID,
		"Name":     strings.Join(strings.Fields(p.Name), " "),
		"Count":    len(specs),
		"Output":   pyString(b.OutputPath(p.ID)),
		"Audio":    pyString(p.AudioPath),
		"Manifest": pyString(string(manifest)),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pyString quotes s as a Python string literal. JSON string escaping is a
// subset Python accepts.
func pyString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
