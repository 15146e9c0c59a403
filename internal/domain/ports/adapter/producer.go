package adapter

import (
	"context"

	"media-pipeline/internal/domain/model"
)

// PlanRequest is everything a planner gets to turn a brief into scenes.
type PlanRequest struct {
	ProjectName  string
	Brief        string
	AudioContext string
	Duration     float64
}

type PlanProducer interface {
	CreatePlan(ctx context.Context, req PlanRequest) (*model.TimelinePlan, error)
	RefinePlan(ctx context.Context, plan *model.TimelinePlan, feedback string) (*model.TimelinePlan, error)
}

// SceneProducer makes one asset for one scene. Implementations may submit
// and poll an external job internally.
type SceneProducer interface {
	Name() string
	Produce(ctx context.Context, scene model.SceneStep) (*model.GeneratedAsset, error)
}

// Animator turns a still image into a clip for the same scene.
type Animator interface {
	Name() string
	Animate(ctx context.Context, scene model.SceneStep, image *model.GeneratedAsset) (*model.GeneratedAsset, error)
}

// PromptRefiner rewrites a draft prompt for the media kind it will feed.
// style is the project's visual directive and may be empty.
type PromptRefiner interface {
	RefinePrompt(ctx context.Context, scene model.SceneStep, kind model.MediaKind, style string) (string, error)
}

type RenderRequest struct {
	ProjectID  string
	ScriptPath string
	AudioPath  string
	OutputPath string
	Assets     []model.GeneratedAsset
}

// AssemblyRenderer turns the ordered assets into a single output file and
// returns its path.
type AssemblyRenderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

type Critique struct {
	Verdict Verdict
	Reason  string
}

type Critic interface {
	Critique(ctx context.Context, artifact string) (Critique, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, artifact, reason string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, artifact string) (string, error)
}

// ScriptRequest is the input for an LLM-authored assembly script.
type ScriptRequest struct {
	ProjectName string
	AudioPath   string
	OutputPath  string
	Duration    float64
	Assets      []model.GeneratedAsset
}

type ScriptWriter interface {
	WriteScript(ctx context.Context, req ScriptRequest) (string, error)
}
