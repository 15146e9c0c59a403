// Package web is the HTTP surface of the pipeline.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain/ports/usecase"
	"media-pipeline/internal/infra/logging"
)

// Dispatcher hands runs to worker processes. Without one, generation runs on
// this process's worker pool and renders run inside the request.
type Dispatcher interface {
	EnqueueGeneration(ctx context.Context, projectID string) error
	EnqueueRender(ctx context.Context, projectID string) error
	CancelGeneration(ctx context.Context, projectID string) error
}

type Server struct {
	uc         usecase.PipelineOrchestrator
	dispatcher Dispatcher
	limiter    Limiter
	cfg        config.HTTPConfig
	log        *zerolog.Logger
}

// NewServer builds the API. dispatcher and limiter may be nil.
func NewServer(uc usecase.PipelineOrchestrator, dispatcher Dispatcher, limiter Limiter, cfg config.HTTPConfig, logger *zerolog.Logger) *Server {
	return &Server{
		uc:         uc,
		dispatcher: dispatcher,
		limiter:    limiter,
		cfg:        cfg,
		log:        logging.Component(logger, "http"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(traceID, recoverer(s.log), requestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.APIKey))

		r.Group(func(r chi.Router) {
			r.Use(timeout(s.requestTimeout()))
			r.Post("/", s.createProject)
			r.Get("/", s.listProjects)
			r.Get("/{id}", s.getProject)
			r.Get("/{id}/status", s.getStatus)
			r.Put("/{id}/style", s.setStyle)
			r.Post("/{id}/generate", s.generate)
			r.Delete("/{id}/generate", s.cancelGeneration)
			r.Post("/{id}/script", s.buildScript)

			r.With(rateLimit(s.limiter, "plan", s.cfg.PlanRateLimit, s.cfg.PlanRateWindow, s.log)).
				Post("/{id}/plan", s.generatePlan)
			r.With(rateLimit(s.limiter, "plan", s.cfg.PlanRateLimit, s.cfg.PlanRateWindow, s.log)).
				Post("/{id}/plan/refine", s.refinePlan)
		})

		// renders are bounded by the renderer's own timeout
		r.Post("/{id}/render", s.render)
	})
	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout <= 0 {
		return 90 * time.Second
	}
	return s.cfg.RequestTimeout
}
