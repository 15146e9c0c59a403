package usecase

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/infra/metrics"
)

// StatusListener is told about every published snapshot, in publish order.
type StatusListener func(st *model.ProjectStatus)

// ProjectStatusTracker is the only writer of a project's state. Each update
// builds a new immutable ProjectStatus and swaps it in atomically; Snapshot
// never takes a lock. Writers are serialized per project.
type ProjectStatusTracker struct {
	projectID string
	mu        sync.Mutex
	current   atomic.Pointer[model.ProjectStatus]
	listener  StatusListener
}

func NewProjectStatusTracker(projectID string, state model.ProjectState, progress *model.GenerationProgress, listener StatusListener) *ProjectStatusTracker {
	t := &ProjectStatusTracker{projectID: projectID, listener: listener}
	t.current.Store(&model.ProjectStatus{
		ProjectID: projectID,
		State:     state,
		Progress:  progress,
		UpdatedAt: time.Now(),
	})
	return t
}

func (t *ProjectStatusTracker) Snapshot() *model.ProjectStatus { return t.current.Load() }

func (t *ProjectStatusTracker) State() model.ProjectState { return t.current.Load().State }

// update applies fn to a copy of the current status under the writer lock.
// fn returns the target state; the edge is checked before anything is stored.
func (t *ProjectStatusTracker) update(fn func(next *model.ProjectStatus) (model.ProjectState, error)) (*model.ProjectStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.current.Load()
	next := *cur
	to, err := fn(&next)
	if err != nil {
		return cur, err
	}
	if to != cur.State && !cur.State.CanTransition(to) {
		return cur, fmt.Errorf("%s -> %s: %w", cur.State, to, domain.ErrInvalidTransition)
	}
	next.State = to
	next.UpdatedAt = time.Now()
	t.current.Store(&next)

	if to != cur.State {
		metrics.IncProjectTransition(string(to))
	}
	if t.listener != nil {
		t.listener(&next)
	}
	return &next, nil
}

// Planned records a new plan. It is also the way back from a finished or
// failed attempt.
func (t *ProjectStatusTracker) Planned() (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State == model.ProjectPlanned {
			return model.ProjectPlanned, nil
		}
		if !next.State.CanTransition(model.ProjectPlanned) {
			return "", fmt.Errorf("%s -> %s: %w", next.State, model.ProjectPlanned, domain.ErrInvalidTransition)
		}
		next.Progress = nil
		return model.ProjectPlanned, nil
	})
}

// StartGeneration opens a new attempt with a fresh progress record.
func (t *ProjectStatusTracker) StartGeneration(total int) (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State == model.ProjectGenerating {
			return "", domain.ErrGenerationInProgress
		}
		if !next.State.CanTransition(model.ProjectGenerating) {
			return "", fmt.Errorf("%s -> %s: %w", next.State, model.ProjectGenerating, domain.ErrInvalidTransition)
		}
		next.Attempt++
		next.Progress = model.NewGenerationProgress(total).WithStatus(model.ProgressInProgress, "", "")
		return model.ProjectGenerating, nil
	})
}

// AssetProduced appends an asset to the running attempt.
func (t *ProjectStatusTracker) AssetProduced(a model.GeneratedAsset, final bool) (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State != model.ProjectGenerating || next.Progress == nil {
			return "", fmt.Errorf("asset outside a run: %w", domain.ErrInvalidTransition)
		}
		next.Progress = next.Progress.WithAsset(a, final)
		return model.ProjectGenerating, nil
	})
}

// FinishGeneration closes the attempt: READY on success, FAILED otherwise.
// A canceled run keeps its completed count and is marked with the canceled kind.
func (t *ProjectStatusTracker) FinishGeneration(runErr error) (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State != model.ProjectGenerating {
			return "", fmt.Errorf("%s -> finish: %w", next.State, domain.ErrInvalidTransition)
		}
		p := next.Progress
		if p == nil {
			p = model.NewGenerationProgress(0)
		}
		switch {
		case runErr == nil:
			next.Progress = p.WithStatus(model.ProgressComplete, "", "")
			return model.ProjectReady, nil
		case errors.Is(runErr, domain.ErrCanceled):
			next.Progress = p.WithStatus(model.ProgressCanceled, runErr.Error(), domain.ErrorKind(runErr))
			return model.ProjectFailed, nil
		default:
			next.Progress = p.WithStatus(model.ProgressFailed, runErr.Error(), domain.ErrorKind(runErr))
			return model.ProjectFailed, nil
		}
	})
}

// StartRender claims the project for one render. Only READY may start one,
// so a second caller racing the first gets ErrInvalidTransition.
func (t *ProjectStatusTracker) StartRender() (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State != model.ProjectReady {
			return "", fmt.Errorf("%s -> %s: %w", next.State, model.ProjectRendering, domain.ErrInvalidTransition)
		}
		return model.ProjectRendering, nil
	})
}

// FinishRender closes rendering: COMPLETE on success, FAILED otherwise.
func (t *ProjectStatusTracker) FinishRender(renderErr error) (*model.ProjectStatus, error) {
	return t.update(func(next *model.ProjectStatus) (model.ProjectState, error) {
		if next.State != model.ProjectRendering {
			return "", fmt.Errorf("%s -> finish render: %w", next.State, domain.ErrInvalidTransition)
		}
		if renderErr != nil {
			if next.Progress != nil {
				next.Progress = next.Progress.WithStatus(next.Progress.Status, renderErr.Error(), "render")
			}
			return model.ProjectFailed, nil
		}
		return model.ProjectComplete, nil
	})
}
