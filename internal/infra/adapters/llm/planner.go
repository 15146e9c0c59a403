package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.PlanProducer = (*Planner)(nil)

const plannerSystem = `You are a music video director planning a shot list.
You split a song into consecutive scenes that together cover the whole track.
You answer with a single JSON object and nothing else.`

const planFormat = `Return JSON shaped exactly like:
{
  "project_name": string,
  "total_duration": number,
  "scenes": [{
    "scene_number": integer starting at 1,
    "description": string,
    "time_start": seconds,
    "time_end": seconds,
    "suggested_media_type": "image" | "video",
    "mood": string,
    "visual_prompt_draft": string,
    "audio_context": string,
    "suggested_transition": "fade" | "crossfade" | "cut" | "zoom" | "slide"
  }]
}
Rules:
- the first scene starts at 0
- each scene starts where the previous one ends
- the last scene ends at total_duration
- scenes are 3 to 10 seconds long`

// Planner turns a brief into a TimelinePlan with one JSON-mode LLM call.
// Coverage is not checked here.
type Planner struct {
	c *Client
}

func NewPlanner(c *Client) *Planner { return &Planner{c: c} }

func (p *Planner) CreatePlan(ctx context.Context, req adapter.PlanRequest) (*model.TimelinePlan, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", req.ProjectName)
	fmt.Fprintf(&b, "Total duration: %.2f seconds\n", req.Duration)
	if req.AudioContext != "" {
		fmt.Fprintf(&b, "Audio: %s\n", req.AudioContext)
	}
	fmt.Fprintf(&b, "\nCreative brief:\n%s\n\n%s", req.Brief, planFormat)

	out, err := p.c.Complete(ctx, plannerSystem, b.String(), adapter.ChatOptions{Temperature: 0.4, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodePlan(out, req.ProjectName, req.Duration)
}

func (p *Planner) RefinePlan(ctx context.Context, plan *model.TimelinePlan, feedback string) (*model.TimelinePlan, error) {
	current, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("Current plan:\n%s\n\nRevise it according to this feedback:\n%s\n\nKeep the total duration. %s",
		current, feedback, planFormat)

	out, err := p.c.Complete(ctx, plannerSystem, user, adapter.ChatOptions{Temperature: 0.4, JSON: true})
	if err != nil {
		return nil, err
	}
	return decodePlan(out, plan.ProjectName, plan.TotalDuration)
}

type wireScene struct {
	Number       int     `json:"scene_number"`
	Description  string  `json:"description"`
	TimeStart    float64 `json:"time_start"`
	TimeEnd      float64 `json:"time_end"`
	Kind         string  `json:"suggested_media_type"`
	Mood         string  `json:"mood"`
	DraftPrompt  string  `json:"visual_prompt_draft"`
	AudioContext string  `json:"audio_context"`
	Transition   string  `json:"suggested_transition"`
}

type wirePlan struct {
	ProjectName   string      `json:"project_name"`
	TotalDuration float64     `json:"total_duration"`
	Scenes        []wireScene `json:"scenes"`
}

// decodePlan maps model output onto a TimelinePlan. Media kinds and
// transitions are normalized; a kind that is neither image nor video fails
// the whole plan.
func decodePlan(raw, name string, duration float64) (*model.TimelinePlan, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, &domain.PlanInvalidError{Reason: "unparseable"}
	}
	var w wirePlan
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, &domain.PlanInvalidError{Reason: "unparseable"}
	}

	plan := &model.TimelinePlan{ProjectName: w.ProjectName, TotalDuration: w.TotalDuration}
	if plan.ProjectName == "" {
		plan.ProjectName = name
	}
	// the requested duration wins over whatever the model echoed
	if duration > 0 {
		plan.TotalDuration = duration
	}
	for _, s := range w.Scenes {
		kind, err := model.ParseMediaKind(s.Kind)
		if err != nil {
			return nil, &domain.PlanInvalidError{Reason: "bad_scene"}
		}
		plan.Scenes = append(plan.Scenes, model.SceneStep{
			Number:       s.Number,
			Description:  s.Description,
			TimeStart:    s.TimeStart,
			TimeEnd:      s.TimeEnd,
			Kind:         kind,
			Mood:         s.Mood,
			DraftPrompt:  s.DraftPrompt,
			AudioContext: s.AudioContext,
			Transition:   model.ParseTransition(s.Transition),
		})
	}
	sort.SliceStable(plan.Scenes, func(i, j int) bool { return plan.Scenes[i].Number < plan.Scenes[j].Number })
	return plan, nil
}
