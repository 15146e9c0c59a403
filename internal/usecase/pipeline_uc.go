// File: internal/usecase/pipeline_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/domain/ports/repository"
	"media-pipeline/internal/domain/ports/usecase"
	"media-pipeline/internal/infra/logging"
)

// Compile-time check
var _ usecase.PipelineOrchestrator = (*pipelineUC)(nil)

var errStaleRun = errors.New("run abandoned: no progress before the stale cutoff")

type PipelineOptions struct {
	LLMTimeout time.Duration
	RunLockTTL time.Duration
	// Status mirrors snapshots for other processes; optional.
	Status repository.StatusCache
	// Lock guards runs across processes; optional.
	Lock repository.RunLock
}

type pipelineUC struct {
	projects repository.ProjectRepository
	planner  adapter.PlanProducer
	coord    *GenerationCoordinator
	scripts  *ScriptBuilder
	renderer adapter.AssemblyRenderer
	registry *RunRegistry
	opts     PipelineOptions
	log      *zerolog.Logger

	trackers sync.Map // project id -> *ProjectStatusTracker
}

func NewPipelineUseCase(
	projects repository.ProjectRepository,
	planner adapter.PlanProducer,
	coord *GenerationCoordinator,
	scripts *ScriptBuilder,
	renderer adapter.AssemblyRenderer,
	registry *RunRegistry,
	opts PipelineOptions,
	logger *zerolog.Logger,
) *pipelineUC {
	if opts.RunLockTTL <= 0 {
		opts.RunLockTTL = 2 * time.Hour
	}
	return &pipelineUC{
		projects: projects,
		planner:  planner,
		coord:    coord,
		scripts:  scripts,
		renderer: renderer,
		registry: registry,
		opts:     opts,
		log:      logging.Component(logger, "pipeline"),
	}
}

// ---- projects ----

func (uc *pipelineUC) CreateProject(ctx context.Context, req usecase.CreateProjectRequest) (*model.Project, error) {
	p, err := model.NewProject(req.ID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Brief), req.AudioPath, req.AudioDuration)
	if err != nil {
		return nil, err
	}
	p.Style = strings.TrimSpace(req.Style)
	if req.ID != "" {
		if existing, err := uc.projects.FindByID(ctx, repository.NoTX, req.ID); err == nil && existing != nil {
			return nil, domain.ErrAlreadyExists
		}
	}
	if err := uc.projects.Save(ctx, repository.NoTX, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	uc.tracker(p)
	uc.log.Info().Str("project_id", p.ID).Str("name", p.Name).Msg("project created")
	return p, nil
}

func (uc *pipelineUC) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	p, err := uc.projects.FindByID(ctx, repository.NoTX, projectID)
	if err != nil {
		return nil, err
	}
	if v, ok := uc.trackers.Load(projectID); ok {
		st := v.(*ProjectStatusTracker).Snapshot()
		p.State, p.Progress = st.State, st.Progress
	}
	return p, nil
}

// SetStyle replaces the project's style directive. It applies from the next
// run on, so it is refused while a run or render is in flight.
func (uc *pipelineUC) SetStyle(ctx context.Context, projectID, style string) (*model.Project, error) {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	switch st := tr.State(); {
	case st == model.ProjectGenerating || uc.registry.Active(projectID):
		return nil, domain.ErrGenerationInProgress
	case st == model.ProjectRendering:
		return nil, fmt.Errorf("style change while rendering: %w", domain.ErrInvalidTransition)
	}
	p.Style = strings.TrimSpace(style)
	uc.persist(ctx, p, tr.Snapshot())
	uc.log.Info().Str("project_id", p.ID).Bool("styled", p.Style != "").Msg("project style set")
	return p, nil
}

func (uc *pipelineUC) ListProjects(ctx context.Context, limit, offset int) ([]*model.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.projects.List(ctx, repository.NoTX, limit, offset)
}

// GetStatus prefers the tracker of a run live in this process, then the
// shared mirror, then the local tracker, then the last persisted record.
// Runs executed by a queue worker only show up through the mirror.
func (uc *pipelineUC) GetStatus(ctx context.Context, projectID string) (*model.ProjectStatus, error) {
	v, tracked := uc.trackers.Load(projectID)
	if tracked && uc.registry.Active(projectID) {
		return v.(*ProjectStatusTracker).Snapshot(), nil
	}
	if uc.opts.Status != nil {
		if st, err := uc.opts.Status.Get(ctx, projectID); err == nil && st != nil {
			return st, nil
		}
	}
	if tracked {
		return v.(*ProjectStatusTracker).Snapshot(), nil
	}
	p, err := uc.projects.FindByID(ctx, repository.NoTX, projectID)
	if err != nil {
		return nil, err
	}
	return &model.ProjectStatus{ProjectID: p.ID, State: p.State, Progress: p.Progress, UpdatedAt: p.UpdatedAt}, nil
}

// ---- planning ----

func (uc *pipelineUC) GeneratePlan(ctx context.Context, projectID string, duration float64) (*model.TimelinePlan, error) {
	defer logging.TraceDuration(uc.log, "PipelineUC.GeneratePlan")()
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := uc.canPlan(tr); err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = p.AudioDuration
	}
	if duration <= 0 {
		return nil, fmt.Errorf("no duration given and no audio duration known: %w", domain.ErrInvalidArgument)
	}

	lctx, cancel := uc.llmContext(ctx)
	defer cancel()
	plan, err := uc.planner.CreatePlan(lctx, adapter.PlanRequest{
		ProjectName:  p.Name,
		Brief:        p.Brief,
		AudioContext: p.AudioPath,
		Duration:     duration,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return uc.acceptPlan(ctx, p, tr, plan, duration)
}

func (uc *pipelineUC) RefinePlan(ctx context.Context, projectID, feedback string) (*model.TimelinePlan, error) {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Plan == nil {
		return nil, fmt.Errorf("project has no plan to refine: %w", domain.ErrInvalidTransition)
	}
	if strings.TrimSpace(feedback) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := uc.canPlan(tr); err != nil {
		return nil, err
	}

	lctx, cancel := uc.llmContext(ctx)
	defer cancel()
	plan, err := uc.planner.RefinePlan(lctx, p.Plan.Clone(), feedback)
	if err != nil {
		return nil, fmt.Errorf("refine plan: %w", err)
	}
	return uc.acceptPlan(ctx, p, tr, plan, p.Plan.TotalDuration)
}

func (uc *pipelineUC) canPlan(tr *ProjectStatusTracker) error {
	st := tr.State()
	if st == model.ProjectGenerating {
		return domain.ErrGenerationInProgress
	}
	if !st.CanTransition(model.ProjectPlanned) {
		return fmt.Errorf("%s -> %s: %w", st, model.ProjectPlanned, domain.ErrInvalidTransition)
	}
	return nil
}

// acceptPlan validates a fresh plan and only then replaces the stored one.
// An invalid plan is reported as is and leaves the project untouched.
func (uc *pipelineUC) acceptPlan(ctx context.Context, p *model.Project, tr *ProjectStatusTracker, plan *model.TimelinePlan, duration float64) (*model.TimelinePlan, error) {
	if plan == nil {
		return nil, &domain.PlanInvalidError{Reason: string(model.CoverageEmpty)}
	}
	if plan.ProjectName == "" {
		plan.ProjectName = p.Name
	}
	if plan.TotalDuration <= 0 {
		plan.TotalDuration = duration
	}
	if err := plan.Check(); err != nil {
		uc.log.Warn().Err(err).Str("project_id", p.ID).Msg("plan rejected")
		return nil, err
	}

	st, err := tr.Planned()
	if err != nil {
		return nil, err
	}
	p.Plan = plan.Clone()
	p.Assets = nil
	p.ScriptPath, p.OutputPath = "", ""
	uc.persist(ctx, p, st)
	uc.log.Info().Str("project_id", p.ID).Int("scenes", len(plan.Scenes)).Float64("duration", plan.TotalDuration).Msg("plan accepted")
	return plan.Clone(), nil
}

// ---- generation ----

func (uc *pipelineUC) GenerateMedia(ctx context.Context, projectID string) (*model.GenerationProgress, error) {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	res, err := uc.registry.Reserve(projectID)
	if err != nil {
		return nil, err
	}
	st, unlock, err := uc.begin(ctx, p, tr)
	if err != nil {
		res.Release(err)
		return nil, err
	}

	plan := p.Plan.Clone()
	err = res.Go(func(runCtx context.Context) error {
		defer unlock()
		_, err := uc.execute(runCtx, p, tr, plan)
		return err
	})
	if err != nil {
		unlock()
		fst, _ := tr.FinishGeneration(err)
		uc.persist(ctx, p, fst)
		return nil, err
	}
	return st.Progress, nil
}

func (uc *pipelineUC) GenerateMediaSync(ctx context.Context, projectID string) ([]model.GeneratedAsset, error) {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	res, err := uc.registry.ReserveInline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	_, unlock, err := uc.begin(ctx, p, tr)
	if err != nil {
		res.Release(err)
		return nil, err
	}
	defer unlock()

	plan := p.Plan.Clone()
	var assets []model.GeneratedAsset
	err = res.Run(func(runCtx context.Context) error {
		var err error
		assets, err = uc.execute(runCtx, p, tr, plan)
		return err
	})
	return assets, err
}

// CheckGeneration reports whether a run could start now without starting one.
// Callers that hand the run to another process use it to fail fast.
func (uc *pipelineUC) CheckGeneration(ctx context.Context, projectID string) error {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return err
	}
	if uc.registry.Active(projectID) {
		return domain.ErrGenerationInProgress
	}
	return uc.precheck(p, tr)
}

func (uc *pipelineUC) precheck(p *model.Project, tr *ProjectStatusTracker) error {
	if p.Plan == nil {
		return fmt.Errorf("project has no plan: %w", domain.ErrInvalidTransition)
	}
	switch tr.State() {
	case model.ProjectGenerating:
		return domain.ErrGenerationInProgress
	case model.ProjectCreated, model.ProjectRendering:
		return fmt.Errorf("%s -> %s: %w", tr.State(), model.ProjectGenerating, domain.ErrInvalidTransition)
	}
	return uc.coord.CheckReady(p.Plan.Scenes)
}

// begin runs every check that can fail without side effects, then takes the
// cross-process lock and moves the project into GENERATING. A project whose
// last attempt ended goes back through PLANNED with the same plan: a new run
// always starts from scene one.
func (uc *pipelineUC) begin(ctx context.Context, p *model.Project, tr *ProjectStatusTracker) (*model.ProjectStatus, func(), error) {
	noop := func() {}
	if err := uc.precheck(p, tr); err != nil {
		return nil, noop, err
	}

	unlock, err := uc.lock(ctx, p.ID)
	if err != nil {
		return nil, noop, err
	}
	if tr.State() != model.ProjectPlanned {
		if _, err := tr.Planned(); err != nil {
			unlock()
			return nil, noop, err
		}
	}
	st, err := tr.StartGeneration(len(p.Plan.Scenes))
	if err != nil {
		unlock()
		return nil, noop, err
	}
	p.Assets = nil
	p.ScriptPath, p.OutputPath = "", ""
	uc.persist(ctx, p, st)
	return st, unlock, nil
}

func (uc *pipelineUC) execute(ctx context.Context, p *model.Project, tr *ProjectStatusTracker, plan *model.TimelinePlan) ([]model.GeneratedAsset, error) {
	log := logging.With(ctx, uc.log)
	started := time.Now()
	log.Info().Int("scenes", len(plan.Scenes)).Msg("generation started")

	assets, err := uc.coord.GenerateStyled(ctx, plan.Scenes, p.Style, func(a model.GeneratedAsset, final bool) {
		if _, err := tr.AssetProduced(a, final); err != nil {
			log.Error().Err(err).Int("scene", a.Scene).Msg("progress update rejected")
		}
	})

	st, ferr := tr.FinishGeneration(err)
	if ferr != nil {
		log.Error().Err(ferr).Msg("could not close generation attempt")
	}
	if err == nil {
		p.Assets = assets
	}
	// the run context may be canceled already; the outcome must still be stored
	uc.persist(context.WithoutCancel(ctx), p, st)

	if err != nil {
		log.Warn().Err(err).Str("kind", domain.ErrorKind(err)).Dur("elapsed", time.Since(started)).Msg("generation failed")
		return nil, err
	}
	log.Info().Int("assets", len(assets)).Dur("elapsed", time.Since(started)).Msg("generation finished")
	return assets, nil
}

func (uc *pipelineUC) CancelGeneration(ctx context.Context, projectID string) error {
	if uc.registry.Cancel(projectID) {
		return nil
	}
	if _, err := uc.projects.FindByID(ctx, repository.NoTX, projectID); err != nil {
		return err
	}
	return fmt.Errorf("no active run for project %s: %w", projectID, domain.ErrNotFound)
}

// ---- assembly ----

func (uc *pipelineUC) BuildScript(ctx context.Context, projectID string, useLLM bool) (*model.AssemblyScript, error) {
	p, _, err := uc.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(p.Assets) == 0 {
		return nil, domain.ErrNoAssets
	}
	script, err := uc.scripts.Build(ctx, p, p.Assets, useLLM)
	if err != nil {
		return nil, err
	}
	p.ScriptPath = script.Path
	p.UpdatedAt = time.Now()
	if err := uc.projects.Save(ctx, repository.NoTX, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return script, nil
}

// Render runs the assembly script. Without a script a static one is built
// first.
func (uc *pipelineUC) Render(ctx context.Context, projectID string) (string, error) {
	p, tr, err := uc.load(ctx, projectID)
	if err != nil {
		return "", err
	}
	// fast path; StartRender is the authoritative check
	if tr.State() != model.ProjectReady {
		return "", fmt.Errorf("%s -> %s: %w", tr.State(), model.ProjectRendering, domain.ErrInvalidTransition)
	}
	if len(p.Assets) == 0 {
		return "", domain.ErrNoAssets
	}
	if p.ScriptPath == "" {
		script, err := uc.scripts.Build(ctx, p, p.Assets, false)
		if err != nil {
			return "", err
		}
		p.ScriptPath = script.Path
	}

	st, err := tr.StartRender()
	if err != nil {
		return "", err
	}
	uc.persist(ctx, p, st)

	out, rerr := uc.renderer.Render(ctx, adapter.RenderRequest{
		ProjectID:  p.ID,
		ScriptPath: p.ScriptPath,
		AudioPath:  p.AudioPath,
		OutputPath: uc.scripts.OutputPath(p.ID),
		Assets:     p.Assets,
	})
	st, err = tr.FinishRender(rerr)
	if err != nil {
		return "", err
	}
	if rerr == nil {
		p.OutputPath = out
	}
	uc.persist(context.WithoutCancel(ctx), p, st)
	if rerr != nil {
		uc.log.Warn().Err(rerr).Str("project_id", p.ID).Msg("render failed")
		return "", rerr
	}
	uc.log.Info().Str("project_id", p.ID).Str("output", out).Msg("render complete")
	return out, nil
}

// ---- maintenance ----

// ReapStale fails runs that were left GENERATING or RENDERING by a process
// that is gone. Projects with a live run here, or whose run lock is held
// elsewhere, are skipped.
func (uc *pipelineUC) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	reaped := 0
	for _, state := range []model.ProjectState{model.ProjectGenerating, model.ProjectRendering} {
		stale, err := uc.projects.FindStale(ctx, repository.NoTX, state, cutoff)
		if err != nil {
			return reaped, err
		}
		for _, p := range stale {
			if uc.registry.Active(p.ID) {
				continue
			}
			unlock, err := uc.lock(ctx, p.ID)
			if err != nil {
				continue
			}
			tr := uc.tracker(p)
			var st *model.ProjectStatus
			if state == model.ProjectGenerating {
				st, err = tr.FinishGeneration(errStaleRun)
			} else {
				st, err = tr.FinishRender(errStaleRun)
			}
			unlock()
			if err != nil {
				continue
			}
			uc.persist(ctx, p, st)
			reaped++
		}
	}
	if reaped > 0 {
		uc.log.Info().Int("count", reaped).Msg("stale runs reaped")
	}
	return reaped, nil
}

// ---- helpers ----

func (uc *pipelineUC) load(ctx context.Context, projectID string) (*model.Project, *ProjectStatusTracker, error) {
	p, err := uc.projects.FindByID(ctx, repository.NoTX, projectID)
	if err != nil {
		return nil, nil, err
	}
	return p, uc.tracker(p), nil
}

// tracker returns the project's tracker, seeding it from the stored record
// the first time this process sees the project.
func (uc *pipelineUC) tracker(p *model.Project) *ProjectStatusTracker {
	if v, ok := uc.trackers.Load(p.ID); ok {
		tr := v.(*ProjectStatusTracker)
		// another process moved the project on; reseed unless a run is live here
		if tr.State() == p.State || uc.registry.Active(p.ID) {
			return tr
		}
		fresh := NewProjectStatusTracker(p.ID, p.State, p.Progress, uc.publish)
		if uc.trackers.CompareAndSwap(p.ID, tr, fresh) {
			return fresh
		}
		v, _ = uc.trackers.Load(p.ID)
		return v.(*ProjectStatusTracker)
	}
	tr := NewProjectStatusTracker(p.ID, p.State, p.Progress, uc.publish)
	v, _ := uc.trackers.LoadOrStore(p.ID, tr)
	return v.(*ProjectStatusTracker)
}

// publish runs under the tracker's writer lock, so mirrors see snapshots in order.
func (uc *pipelineUC) publish(st *model.ProjectStatus) {
	if uc.opts.Status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := uc.opts.Status.Put(ctx, st); err != nil {
		uc.log.Warn().Err(err).Str("project_id", st.ProjectID).Msg("status mirror failed")
	}
}

func (uc *pipelineUC) persist(ctx context.Context, p *model.Project, st *model.ProjectStatus) {
	if st != nil {
		p.State, p.Progress = st.State, st.Progress
	}
	p.UpdatedAt = time.Now()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := uc.projects.Save(ctx, repository.NoTX, p); err != nil {
		uc.log.Error().Err(err).Str("project_id", p.ID).Str("state", string(p.State)).Msg("persist project failed")
	}
}

func (uc *pipelineUC) lock(ctx context.Context, projectID string) (func(), error) {
	if uc.opts.Lock == nil {
		return func() {}, nil
	}
	key := "lock:generation:" + projectID
	token, err := uc.opts.Lock.TryLock(ctx, key, uc.opts.RunLockTTL)
	if err != nil {
		return nil, domain.ErrGenerationInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := uc.opts.Lock.Unlock(ctx, key, token); err != nil {
			uc.log.Warn().Err(err).Str("project_id", projectID).Msg("unlock failed")
		}
	}, nil
}

func (uc *pipelineUC) llmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.opts.LLMTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.opts.LLMTimeout)
}
