// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-pipeline/internal/config"
	pg "media-pipeline/internal/infra/db/postgres"
	"media-pipeline/internal/infra/logging"
	"media-pipeline/internal/infra/metrics"
	"media-pipeline/internal/infra/queue"
	red "media-pipeline/internal/infra/redis"
	"media-pipeline/internal/infra/render"
	"media-pipeline/internal/infra/sched"
	"media-pipeline/internal/infra/web"
	"media-pipeline/internal/infra/worker"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	mode := flag.String("mode", "all", "api | worker | all")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	log := logging.Component(logger, "main")
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	runAPI := *mode == "api" || *mode == "all"
	runWorker := *mode == "worker" || (*mode == "all" && cfg.Queue.Enabled)
	if !runAPI && *mode != "worker" {
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
	if *mode == "worker" && !cfg.Queue.Enabled {
		log.Fatal().Msg("worker mode needs queue.enabled")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Pipeline ----
	projects := pg.NewProjectRepoCacheDecorator(pg.NewProjectRepo(pool), redisClient, cfg.Redis.TTL, logger)
	workers := worker.NewPool(cfg.Pipeline.MaxParallelProjects, cfg.Pipeline.MaxParallelProjects*4, logger)
	p, err := buildPipeline(ctx, cfg, pipelineDeps{
		projects: projects,
		status:   red.NewStatusCache(redisClient, cfg.Redis.TTL),
		lock:     red.NewLocker(redisClient),
		renderer: render.NewExecRenderer(cfg.Render.Interpreter, cfg.Render.Timeout, cfg.Render.ScriptDir, logger),
		pool:     workers,
	}, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline")
	}
	p.registry.Start(ctx)
	defer p.registry.Shutdown()

	// ---- Maintenance ----
	cron := sched.New(logger)
	if err := cron.Add("reap_stale", cfg.Scheduler.ReaperCron, time.Minute, sched.ReapJob(p.uc, cfg.Scheduler.StaleAfter)); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	if err := cron.Add("project_store_pool", "@every 30s", 5*time.Second, sched.PoolStatsJob(pool)); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	cron.Start()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		cron.Stop(sctx)
	}()

	// ---- Queue ----
	var dispatcher web.Dispatcher
	if cfg.Queue.Enabled {
		qc := queue.NewClient(cfg.Redis, cfg.Queue, cfg.Pipeline.RunLockTTL, cfg.Render.Timeout+time.Minute, logger)
		defer qc.Close()
		dispatcher = qc
	}
	if runWorker {
		qs := queue.NewServer(cfg.Redis, cfg.Queue, queue.NewProcessor(p.uc, logger), logger)
		if err := qs.Start(); err != nil {
			log.Fatal().Err(err).Msg("queue")
		}
		defer qs.Shutdown()
	}

	// ---- HTTP ----
	if runAPI {
		if cfg.HTTP.APIKey == "" {
			log.Warn().Msg("http api key not set; auth disabled")
		} else {
			log.Info().Str("api_key", logging.Redact(cfg.HTTP.APIKey, cfg.Runtime.Dev)).Msg("http auth enabled")
		}
		srv := web.NewServer(p.uc, dispatcher, red.NewRateLimiter(redisClient), cfg.HTTP, logger)
		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      srv.Routes(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		go func() {
			log.Info().Str("addr", server.Addr).Msg("http listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
				cancel()
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer scancel()
			if err := server.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("http shutdown")
			}
		}()
	}

	log.Info().Str("mode", *mode).Bool("queue", cfg.Queue.Enabled).Str("version", version).Msg("started")
	<-ctx.Done()
	log.Info().Msg("shutdown requested")
}
