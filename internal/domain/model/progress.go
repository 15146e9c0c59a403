package model

import "time"

type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressComplete   ProgressStatus = "complete"
	ProgressFailed     ProgressStatus = "failed"
	ProgressCanceled   ProgressStatus = "canceled"
)

func (s ProgressStatus) Terminal() bool {
	return s == ProgressComplete || s == ProgressFailed || s == ProgressCanceled
}

// GenerationProgress is an immutable snapshot of one generation run. The
// With* methods return modified copies; the receiver is never changed.
type GenerationProgress struct {
	Total        int              `json:"total_scenes"`
	Completed    int              `json:"completed_scenes"`
	CurrentScene int              `json:"current_scene"`
	Status       ProgressStatus   `json:"status"`
	Error        string           `json:"error,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	Assets       []GeneratedAsset `json:"assets"`
	StartedAt    time.Time        `json:"started_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func NewGenerationProgress(total int) *GenerationProgress {
	now := time.Now()
	return &GenerationProgress{Total: total, Status: ProgressPending, StartedAt: now, UpdatedAt: now}
}

// Percent is the completed share in [0, 100].
func (p *GenerationProgress) Percent() float64 {
	if p == nil || p.Total <= 0 {
		return 0
	}
	v := float64(p.Completed) / float64(p.Total) * 100
	if v > 100 {
		return 100
	}
	return v
}

func (p *GenerationProgress) clone() *GenerationProgress {
	cp := *p
	cp.Assets = append([]GeneratedAsset(nil), p.Assets...)
	cp.UpdatedAt = time.Now()
	return &cp
}

// WithScene marks scene as the one being worked on.
func (p *GenerationProgress) WithScene(scene int) *GenerationProgress {
	cp := p.clone()
	cp.CurrentScene = scene
	cp.Status = ProgressInProgress
	return cp
}

// WithAsset appends an asset in completion order. Intermediate assets do not
// count toward Completed.
func (p *GenerationProgress) WithAsset(a GeneratedAsset, final bool) *GenerationProgress {
	cp := p.clone()
	cp.Assets = append(cp.Assets, a)
	cp.CurrentScene = a.Scene
	if final {
		cp.Completed++
	}
	return cp
}

func (p *GenerationProgress) WithStatus(st ProgressStatus, msg, kind string) *GenerationProgress {
	cp := p.clone()
	cp.Status = st
	cp.Error = msg
	cp.ErrorKind = kind
	return cp
}

// ProjectStatus is what status readers get: state and progress taken from the
// same snapshot, so they always agree.
type ProjectStatus struct {
	ProjectID string              `json:"project_id"`
	State     ProjectState        `json:"state"`
	Attempt   int                 `json:"attempt"`
	Progress  *GenerationProgress `json:"progress,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *ProjectStatus) Percent() float64 {
	if s == nil {
		return 0
	}
	return s.Progress.Percent()
}
