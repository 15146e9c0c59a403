//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/usecase"
)

// mockOrchestrator serves canned results; any Err field short-circuits its call.
type mockOrchestrator struct {
	mu       sync.Mutex
	projects map[string]*model.Project

	PlanErr     error
	GenerateErr error
	CheckErr    error
	CancelErr   error
	RenderErr   error
	StyleErr    error

	planDuration float64
	generated    []string
	canceled     []string
}

var _ usecase.PipelineOrchestrator = (*mockOrchestrator)(nil)

func newMockOrchestrator() *mockOrchestrator {
	return &mockOrchestrator{projects: map[string]*model.Project{}}
}

func (m *mockOrchestrator) CreateProject(_ context.Context, req usecase.CreateProjectRequest) (*model.Project, error) {
	p, err := model.NewProject(req.ID, req.Name, req.Brief, req.AudioPath, req.AudioDuration)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	p.Style = req.Style
	m.projects[p.ID] = p
	return p, nil
}

func (m *mockOrchestrator) get(id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockOrchestrator) GeneratePlan(_ context.Context, id string, duration float64) (*model.TimelinePlan, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if m.PlanErr != nil {
		return nil, m.PlanErr
	}
	m.mu.Lock()
	m.planDuration = duration
	m.mu.Unlock()
	return &model.TimelinePlan{ProjectName: "demo", TotalDuration: duration}, nil
}

func (m *mockOrchestrator) RefinePlan(_ context.Context, id, feedback string) (*model.TimelinePlan, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if feedback == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &model.TimelinePlan{ProjectName: feedback}, nil
}

func (m *mockOrchestrator) SetStyle(_ context.Context, id, style string) (*model.Project, error) {
	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if m.StyleErr != nil {
		return nil, m.StyleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Style = style
	return p, nil
}

func (m *mockOrchestrator) GenerateMedia(_ context.Context, id string) (*model.GenerationProgress, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	m.mu.Lock()
	m.generated = append(m.generated, id)
	m.mu.Unlock()
	return model.NewGenerationProgress(3), nil
}

func (m *mockOrchestrator) GenerateMediaSync(ctx context.Context, id string) ([]model.GeneratedAsset, error) {
	_, err := m.GenerateMedia(ctx, id)
	return nil, err
}

func (m *mockOrchestrator) CheckGeneration(_ context.Context, id string) error {
	if _, err := m.get(id); err != nil {
		return err
	}
	return m.CheckErr
}

func (m *mockOrchestrator) CancelGeneration(_ context.Context, id string) error {
	if _, err := m.get(id); err != nil {
		return err
	}
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.mu.Lock()
	m.canceled = append(m.canceled, id)
	m.mu.Unlock()
	return nil
}

func (m *mockOrchestrator) GetStatus(_ context.Context, id string) (*model.ProjectStatus, error) {
	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return &model.ProjectStatus{ProjectID: p.ID, State: p.State, Progress: p.Progress, UpdatedAt: time.Now()}, nil
}

func (m *mockOrchestrator) GetProject(_ context.Context, id string) (*model.Project, error) {
	return m.get(id)
}

func (m *mockOrchestrator) ListProjects(_ context.Context, limit, offset int) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockOrchestrator) BuildScript(_ context.Context, id string, useLLM bool) (*model.AssemblyScript, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	src := model.ScriptStatic
	if useLLM {
		src = model.ScriptLLM
	}
	return &model.AssemblyScript{ProjectID: id, Path: "/s/" + id + ".py", Source: src, Accepted: true}, nil
}

func (m *mockOrchestrator) Render(_ context.Context, id string) (string, error) {
	if _, err := m.get(id); err != nil {
		return "", err
	}
	if m.RenderErr != nil {
		return "", m.RenderErr
	}
	return "/out/final_" + id + ".mp4", nil
}

type mockDispatcher struct {
	mu         sync.Mutex
	generate   []string
	render     []string
	canceled   []string
	EnqueueErr error
	CancelErr  error
}

func (d *mockDispatcher) EnqueueGeneration(_ context.Context, id string) error {
	if d.EnqueueErr != nil {
		return d.EnqueueErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generate = append(d.generate, id)
	return nil
}

func (d *mockDispatcher) EnqueueRender(_ context.Context, id string) error {
	if d.EnqueueErr != nil {
		return d.EnqueueErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.render = append(d.render, id)
	return nil
}

func (d *mockDispatcher) CancelGeneration(_ context.Context, id string) error {
	if d.CancelErr != nil {
		return d.CancelErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled = append(d.canceled, id)
	return nil
}

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	mu   sync.Mutex
	n    int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	return l.seen[key] <= l.n, nil
}
