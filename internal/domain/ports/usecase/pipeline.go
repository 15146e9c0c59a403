package usecase

import (
	"context"

	"media-pipeline/internal/domain/model"
)

type CreateProjectRequest struct {
	ID            string
	Name          string
	Brief         string
	AudioPath     string
	AudioDuration float64
	Style         string
}

// PipelineOrchestrator is the caller-facing surface used by the HTTP layer,
// the queue worker and the CLI.
type PipelineOrchestrator interface {
	CreateProject(ctx context.Context, req CreateProjectRequest) (*model.Project, error)
	// GeneratePlan plans the project; duration <= 0 falls back to the audio duration.
	GeneratePlan(ctx context.Context, projectID string, duration float64) (*model.TimelinePlan, error)
	RefinePlan(ctx context.Context, projectID, feedback string) (*model.TimelinePlan, error)
	// SetStyle replaces the visual style directive used by the next run.
	SetStyle(ctx context.Context, projectID, style string) (*model.Project, error)

	// GenerateMedia starts a supervised run and returns the first snapshot.
	GenerateMedia(ctx context.Context, projectID string) (*model.GenerationProgress, error)
	// GenerateMediaSync runs generation to the end on the caller's goroutine.
	GenerateMediaSync(ctx context.Context, projectID string) ([]model.GeneratedAsset, error)
	// CheckGeneration runs the side-effect-free checks GenerateMedia would run.
	CheckGeneration(ctx context.Context, projectID string) error
	CancelGeneration(ctx context.Context, projectID string) error

	GetStatus(ctx context.Context, projectID string) (*model.ProjectStatus, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]*model.Project, error)

	BuildScript(ctx context.Context, projectID string, useLLM bool) (*model.AssemblyScript, error)
	Render(ctx context.Context, projectID string) (string, error)
}
