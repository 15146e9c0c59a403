// Command demo drives one project through plan, generation and script
// assembly against a real Postgres with noop producers. It needs no API keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"media-pipeline/internal/config"
	ports "media-pipeline/internal/domain/ports/usecase"
	aiAdapters "media-pipeline/internal/infra/adapters/ai"
	"media-pipeline/internal/infra/adapters/llm"
	"media-pipeline/internal/infra/adapters/media"
	pg "media-pipeline/internal/infra/db/postgres"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/render"
	"media-pipeline/internal/infra/storage"
	"media-pipeline/internal/infra/worker"
	"media-pipeline/internal/usecase"
)

const demoPlan = `{
  "project_name": "Night Drive",
  "total_duration": 24,
  "scenes": [
    {"scene_number": 1, "description": "empty highway under sodium lights", "time_start": 0, "time_end": 8, "suggested_media_type": "image", "mood": "calm", "visual_prompt_draft": "wide shot of an empty highway at night", "suggested_transition": "fade"},
    {"scene_number": 2, "description": "tracking shot through neon streets", "time_start": 8, "time_end": 16, "suggested_media_type": "video", "mood": "tense", "visual_prompt_draft": "cinematic tracking shot, neon city", "suggested_transition": "crossfade"},
    {"scene_number": 3, "description": "dawn over the skyline", "time_start": 16, "time_end": 24, "suggested_media_type": "image", "mood": "hopeful", "visual_prompt_draft": "sunrise over a skyline", "suggested_transition": "cut"}
  ]
}`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	doRender := flag.Bool("render", false, "run the assembly script after building it")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)
	log := logging.Component(logger, "demo")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 1. Postgres
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// 2. Noop text and media providers
	ai := aiAdapters.NewNoopAIAdapter()
	ai.Reply = demoPlan
	text := llm.NewClient(ai, "noop", 0, logger)

	store, err := storage.NewLocalStore(cfg.Storage.LocalDir)
	if err != nil {
		log.Fatal().Err(err).Msg("storage")
	}
	noop := config.ProviderConfig{Kind: string(media.KindNoop)}
	factory := media.NewFactory(config.MediaConfig{Image: noop, Video: noop, Animate: noop}, "", store, logger).
		WithNoopDelay(200 * time.Millisecond)
	var producers usecase.Producers
	if producers.Image, err = factory.Image(ctx); err != nil {
		log.Fatal().Err(err).Msg("image producer")
	}
	if producers.Video, err = factory.Video(ctx); err != nil {
		log.Fatal().Err(err).Msg("video producer")
	}
	if producers.Animator, err = factory.Animator(ctx); err != nil {
		log.Fatal().Err(err).Msg("animator")
	}

	// 3. Pipeline
	coord := usecase.NewGenerationCoordinator(usecase.NewDispatchPolicy(nil), producers, nil,
		usecase.CoordinatorConfig{SceneTimeout: time.Minute, LLMTimeout: 30 * time.Second}, logger)
	critic := llm.NewCritic(text)
	loop := usecase.NewCritiqueRefineLoop(critic, critic, critic, usecase.RefineConfig{MaxIterations: 1}, logger)
	scripts := usecase.NewScriptBuilder(llm.NewScriptWriter(text), loop, usecase.ScriptConfig{
		Dir:               cfg.Render.ScriptDir,
		OutputDir:         cfg.Render.OutputDir,
		TransitionSeconds: cfg.Render.TransitionSeconds,
	}, logger)
	registry := usecase.NewRunRegistry(worker.NewPool(1, 1, logger), logger)
	registry.Start(ctx)
	defer registry.Shutdown()

	uc := usecase.NewPipelineUseCase(pg.NewProjectRepo(pool), llm.NewPlanner(text), coord, scripts,
		render.NewExecRenderer(cfg.Render.Interpreter, cfg.Render.Timeout, cfg.Render.ScriptDir, logger),
		registry, usecase.PipelineOptions{LLMTimeout: 30 * time.Second}, logger)

	// 4. Walk one project through the stages
	p, err := uc.CreateProject(ctx, ports.CreateProjectRequest{
		ID:            uuid.NewString(),
		Name:          "Night Drive",
		Brief:         "a lonely drive through the city until sunrise",
		AudioPath:     "night_drive.mp3",
		AudioDuration: 24,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create project")
	}
	log.Info().Str("project_id", p.ID).Msg("project created")

	plan, err := uc.GeneratePlan(ctx, p.ID, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("plan")
	}
	log.Info().Int("scenes", len(plan.Scenes)).Float64("duration", plan.TotalDuration).Msg("plan ready")

	assets, err := uc.GenerateMediaSync(ctx, p.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("generate")
	}
	for _, a := range assets {
		log.Info().Int("scene", a.Scene).Str("kind", string(a.Kind)).Str("path", a.Path).Msg("asset")
	}

	script, err := uc.BuildScript(ctx, p.ID, false)
	if err != nil {
		log.Fatal().Err(err).Msg("script")
	}
	log.Info().Str("path", script.Path).Msg("assembly script written")

	if *doRender {
		out, err := uc.Render(ctx, p.ID)
		if err != nil {
			log.Fatal().Err(err).Msg("render")
		}
		log.Info().Str("output", out).Msg("render complete")
	}
}
