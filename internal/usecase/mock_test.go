//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func scene(n int, start, end float64, kind model.MediaKind, mood string) model.SceneStep {
	return model.SceneStep{
		Number:      n,
		Description: fmt.Sprintf("scene %d", n),
		TimeStart:   start,
		TimeEnd:     end,
		Kind:        kind,
		Mood:        mood,
		DraftPrompt: fmt.Sprintf("prompt %d", n),
		Transition:  model.TransitionCrossfade,
	}
}

func threeScenePlan() *model.TimelinePlan {
	return &model.TimelinePlan{
		ProjectName:   "demo",
		TotalDuration: 30,
		Scenes: []model.SceneStep{
			scene(1, 0, 10, model.MediaImage, "calm morning"),
			scene(2, 10, 20, model.MediaVideo, "quiet dialogue"),
			scene(3, 20, 30, model.MediaVideo, "epic cathedral"),
		},
	}
}

// =============================
// Producers
// =============================

// ---- Mock SceneProducer ----

type MockProducer struct {
	name string
	kind model.MediaKind

	mu    sync.Mutex
	Calls []model.SceneStep

	ProduceFunc func(ctx context.Context, s model.SceneStep) (*model.GeneratedAsset, error)
}

var _ adapter.SceneProducer = (*MockProducer)(nil)

func newMockProducer(name string, kind model.MediaKind) *MockProducer {
	return &MockProducer{name: name, kind: kind}
}

func (m *MockProducer) Name() string { return m.name }

func (m *MockProducer) Produce(ctx context.Context, s model.SceneStep) (*model.GeneratedAsset, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, s)
	m.mu.Unlock()
	if m.ProduceFunc != nil {
		return m.ProduceFunc(ctx, s)
	}
	path := fmt.Sprintf("/tmp/%s_scene_%d", m.name, s.Number)
	return model.NewGeneratedAsset(s, m.kind, path, model.Provenance{Producer: m.name, Prompt: s.DraftPrompt}), nil
}

func (m *MockProducer) calls() []model.SceneStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SceneStep(nil), m.Calls...)
}

// ---- Mock Animator ----

type MockAnimator struct {
	mu     sync.Mutex
	Inputs []*model.GeneratedAsset

	AnimateFunc func(ctx context.Context, s model.SceneStep, img *model.GeneratedAsset) (*model.GeneratedAsset, error)
}

var _ adapter.Animator = (*MockAnimator)(nil)

func (m *MockAnimator) Name() string { return "mock-animator" }

func (m *MockAnimator) Animate(ctx context.Context, s model.SceneStep, img *model.GeneratedAsset) (*model.GeneratedAsset, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, img)
	m.mu.Unlock()
	if m.AnimateFunc != nil {
		return m.AnimateFunc(ctx, s, img)
	}
	return model.NewGeneratedAsset(s, model.MediaVideo, img.Path+".mp4", model.Provenance{Producer: "mock-animator", InputImage: img.Path}), nil
}

// ---- Mock PromptRefiner ----

type MockRefiner struct {
	RefineFunc func(ctx context.Context, s model.SceneStep, kind model.MediaKind, style string) (string, error)
}

var _ adapter.PromptRefiner = (*MockRefiner)(nil)

func (m *MockRefiner) RefinePrompt(ctx context.Context, s model.SceneStep, kind model.MediaKind, style string) (string, error) {
	if m.RefineFunc != nil {
		return m.RefineFunc(ctx, s, kind, style)
	}
	return "refined " + s.DraftPrompt, nil
}

// ---- Mock PlanProducer ----

type MockPlanner struct {
	CreateFunc func(ctx context.Context, req adapter.PlanRequest) (*model.TimelinePlan, error)
	RefineFunc func(ctx context.Context, plan *model.TimelinePlan, feedback string) (*model.TimelinePlan, error)
}

var _ adapter.PlanProducer = (*MockPlanner)(nil)

func (m *MockPlanner) CreatePlan(ctx context.Context, req adapter.PlanRequest) (*model.TimelinePlan, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return threeScenePlan(), nil
}

func (m *MockPlanner) RefinePlan(ctx context.Context, plan *model.TimelinePlan, feedback string) (*model.TimelinePlan, error) {
	if m.RefineFunc != nil {
		return m.RefineFunc(ctx, plan, feedback)
	}
	plan.Scenes[0].Description = feedback
	return plan, nil
}

// ---- Mock Critic / Rewriter / Summarizer ----

type MockCritic struct {
	mu      sync.Mutex
	calls   int
	Verdict func(call int, artifact string) adapter.Critique
}

var _ adapter.Critic = (*MockCritic)(nil)

func (m *MockCritic) Critique(ctx context.Context, artifact string) (adapter.Critique, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()
	if m.Verdict != nil {
		return m.Verdict(n, artifact), nil
	}
	return adapter.Critique{Verdict: adapter.VerdictFail, Reason: "too vague"}, nil
}

func (m *MockCritic) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockRewriter struct {
	mu      sync.Mutex
	Reasons []string
	Err     error
}

var _ adapter.Rewriter = (*MockRewriter)(nil)

func (m *MockRewriter) Rewrite(ctx context.Context, artifact, reason string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reasons = append(m.Reasons, reason)
	return fmt.Sprintf("%s+r%d", artifact, len(m.Reasons)), nil
}

func (m *MockRewriter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Reasons)
}

type MockSummarizer struct {
	Called int
}

var _ adapter.Summarizer = (*MockSummarizer)(nil)

func (m *MockSummarizer) Summarize(ctx context.Context, artifact string) (string, error) {
	m.Called++
	return "summary(" + artifact + ")", nil
}

// ---- Mock ScriptWriter ----

type MockScriptWriter struct {
	Body string
	Err  error
	Last adapter.ScriptRequest
}

var _ adapter.ScriptWriter = (*MockScriptWriter)(nil)

func (m *MockScriptWriter) WriteScript(ctx context.Context, req adapter.ScriptRequest) (string, error) {
	m.Last = req
	if m.Err != nil {
		return "", m.Err
	}
	return m.Body, nil
}

// ---- Mock AssemblyRenderer ----

type MockRenderer struct {
	mu   sync.Mutex
	Reqs []adapter.RenderRequest
	Err  error
	// Entered, when set, receives once per call; Gate holds the call open
	// until closed.
	Entered chan struct{}
	Gate    chan struct{}
}

var _ adapter.AssemblyRenderer = (*MockRenderer)(nil)

func (m *MockRenderer) Render(ctx context.Context, req adapter.RenderRequest) (string, error) {
	m.mu.Lock()
	m.Reqs = append(m.Reqs, req)
	err := m.Err
	m.mu.Unlock()
	if m.Entered != nil {
		m.Entered <- struct{}{}
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (m *MockRenderer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Reqs)
}

// =============================
// Repositories
// =============================

// ---- In-memory ProjectRepository ----

type memProjectRepo struct {
	mu    sync.Mutex
	items map[string]model.Project
	saves int
}

var _ repository.ProjectRepository = (*memProjectRepo)(nil)

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{items: make(map[string]model.Project)}
}

func (r *memProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	cp.Plan = p.Plan.Clone()
	cp.Assets = append([]model.GeneratedAsset(nil), p.Assets...)
	r.items[p.ID] = cp
	r.saves++
	return nil
}

func (r *memProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.Plan = p.Plan.Clone()
	p.Assets = append([]model.GeneratedAsset(nil), p.Assets...)
	return &p, nil
}

func (r *memProjectRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Project, 0, len(r.items))
	for _, p := range r.items {
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProjectRepo) FindStale(ctx context.Context, tx repository.Tx, state model.ProjectState, before time.Time) ([]*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Project
	for _, p := range r.items {
		if p.State == state && p.UpdatedAt.Before(before) {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memProjectRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memProjectRepo) get(id string) model.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

// ---- In-memory StatusCache ----

type memStatusCache struct {
	mu     sync.Mutex
	states []model.ProjectState
	last   map[string]*model.ProjectStatus
}

var _ repository.StatusCache = (*memStatusCache)(nil)

func newMemStatusCache() *memStatusCache {
	return &memStatusCache{last: make(map[string]*model.ProjectStatus)}
}

func (c *memStatusCache) Put(ctx context.Context, st *model.ProjectStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, st.State)
	c.last[st.ProjectID] = st
	return nil
}

func (c *memStatusCache) Get(ctx context.Context, id string) (*model.ProjectStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.last[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

// ---- In-memory RunLock ----

type memLock struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

var _ repository.RunLock = (*memLock)(nil)

func newMemLock() *memLock { return &memLock{held: make(map[string]string)} }

func (l *memLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", errors.New("lock held")
	}
	l.seq++
	token := fmt.Sprintf("t%d", l.seq)
	l.held[key] = token
	return token, nil
}

func (l *memLock) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *memLock) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
