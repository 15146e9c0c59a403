package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/domain/ports/repository"
	ports "media-pipeline/internal/domain/ports/usecase"
	aiAdapters "media-pipeline/internal/infra/adapters/ai"
	"media-pipeline/internal/infra/adapters/llm"
	"media-pipeline/internal/infra/adapters/media"
	"media-pipeline/internal/infra/storage"
	"media-pipeline/internal/infra/worker"
	"media-pipeline/internal/usecase"
)

// buildAI picks the text provider. Every configured provider is registered so
// planner and critic models may live on different providers.
func buildAI(ctx context.Context, cfg config.AIConfig, log *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	if cfg.GeminiKey != "" {
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, "", cfg.PlannerModel, 0)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers["gemini"] = g
	}
	if cfg.OpenAIKey != "" {
		o, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.PlannerModel)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers["openai"] = o
	}
	if cfg.Provider == "noop" {
		providers["noop"] = aiAdapters.NewNoopAIAdapter()
	}
	if providers[cfg.Provider] == nil {
		return nil, &domain.ConfigurationMissingError{Key: "ai." + cfg.Provider + "_key"}
	}
	log.Info().Str("provider", cfg.Provider).Str("planner_model", cfg.PlannerModel).Str("critic_model", cfg.CriticModel).Msg("AI adapter ready")

	var ai adapter.AIServiceAdapter = aiAdapters.NewMultiAIAdapter(cfg.Provider, providers, nil)
	ai = aiAdapters.NewMeteredAI(ai)
	return aiAdapters.NewLimitedAI(ai, cfg.ConcurrentLimit), nil
}

func buildStore(cfg config.StorageConfig, log *zerolog.Logger) (adapter.AssetStore, error) {
	if cfg.Kind == "minio" {
		return storage.NewMinioStore(cfg.Minio, log)
	}
	return storage.NewLocalStore(cfg.LocalDir)
}

// buildProducers leaves a producer nil when its credentials are missing; the
// coordinator reports that as ConfigurationMissing before a run starts.
func buildProducers(ctx context.Context, f *media.Factory, log *zerolog.Logger) (usecase.Producers, error) {
	var p usecase.Producers
	var err error
	if p.Image, err = f.Image(ctx); err != nil && !missing(err, log, "image") {
		return p, err
	}
	if p.Video, err = f.Video(ctx); err != nil && !missing(err, log, "video") {
		return p, err
	}
	if p.Animator, err = f.Animator(ctx); err != nil && !missing(err, log, "animate") {
		return p, err
	}
	return p, nil
}

func missing(err error, log *zerolog.Logger, section string) bool {
	if !errors.Is(err, domain.ErrConfigurationMissing) {
		return false
	}
	log.Warn().Err(err).Str("producer", section).Msg("producer disabled")
	return true
}

// orchestrator is the use case plus the maintenance hook the reaper calls.
type orchestrator interface {
	ports.PipelineOrchestrator
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type pipelineDeps struct {
	projects repository.ProjectRepository
	status   repository.StatusCache
	lock     repository.RunLock
	renderer adapter.AssemblyRenderer
	pool     *worker.Pool
}

// pipeline holds everything both the API and the worker need.
type pipeline struct {
	uc       orchestrator
	registry *usecase.RunRegistry
}

func buildPipeline(ctx context.Context, cfg *config.Config, deps pipelineDeps, log *zerolog.Logger) (*pipeline, error) {
	ai, err := buildAI(ctx, cfg.AI, log)
	if err != nil {
		return nil, err
	}
	plannerLLM := llm.NewClient(ai, cfg.AI.PlannerModel, cfg.AI.MaxPromptTokens, log)
	criticLLM := llm.NewClient(ai, cfg.AI.CriticModel, cfg.AI.MaxPromptTokens, log)

	store, err := buildStore(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	producers, err := buildProducers(ctx, media.NewFactory(cfg.Media, cfg.AI.GeminiKey, store, log), log)
	if err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}
	var refiner adapter.PromptRefiner
	if cfg.Media.RefinePrompts {
		refiner = media.NewPromptRefiner(plannerLLM)
	}

	coord := usecase.NewGenerationCoordinator(
		usecase.NewDispatchPolicy(cfg.Pipeline.Dispatch.CinematicKeywords),
		producers, refiner,
		usecase.CoordinatorConfig{SceneTimeout: cfg.Pipeline.SceneTimeout, LLMTimeout: cfg.Pipeline.LLMTimeout},
		log,
	)
	critic := llm.NewCritic(criticLLM)
	loop := usecase.NewCritiqueRefineLoop(critic, critic, critic, usecase.RefineConfig{
		MaxIterations:  cfg.Pipeline.Refine.MaxIterations,
		SummarizeAfter: cfg.Pipeline.Refine.SummarizeAfter,
		CallTimeout:    cfg.Pipeline.LLMTimeout,
	}, log)
	scripts := usecase.NewScriptBuilder(llm.NewScriptWriter(plannerLLM), loop, usecase.ScriptConfig{
		Dir:               cfg.Render.ScriptDir,
		OutputDir:         cfg.Render.OutputDir,
		TransitionSeconds: cfg.Render.TransitionSeconds,
		LLMTimeout:        cfg.Pipeline.LLMTimeout,
	}, log)

	registry := usecase.NewRunRegistry(deps.pool, log)
	uc := usecase.NewPipelineUseCase(deps.projects, llm.NewPlanner(plannerLLM), coord, scripts, deps.renderer, registry,
		usecase.PipelineOptions{
			LLMTimeout: cfg.Pipeline.LLMTimeout,
			RunLockTTL: cfg.Pipeline.RunLockTTL,
			Status:     deps.status,
			Lock:       deps.lock,
		}, log)
	return &pipeline{uc: uc, registry: registry}, nil
}
