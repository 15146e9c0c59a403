package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/infra/logging"
)

// Runner is the part of the orchestrator a worker process drives.
type Runner interface {
	GenerateMediaSync(ctx context.Context, projectID string) ([]model.GeneratedAsset, error)
	Render(ctx context.Context, projectID string) (string, error)
}

// Processor turns queue tasks into orchestrator calls. Run outcomes are
// stored on the project, so a failed run still completes the task.
type Processor struct {
	runner Runner
	log    *zerolog.Logger
}

func NewProcessor(runner Runner, logger *zerolog.Logger) *Processor {
	return &Processor{runner: runner, log: logging.Component(logger, "queue_processor")}
}

func (p *Processor) HandleGenerateMedia(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	ctx = logging.WithProjectID(ctx, payload.ProjectID)
	log := logging.With(ctx, p.log)

	assets, err := p.runner.GenerateMediaSync(ctx, payload.ProjectID)
	if err != nil {
		log.Warn().Err(err).Str("kind", domain.ErrorKind(err)).Msg("queued generation ended with error")
		return nil
	}
	log.Info().Int("assets", len(assets)).Msg("queued generation finished")
	return nil
}

func (p *Processor) HandleRender(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	ctx = logging.WithProjectID(ctx, payload.ProjectID)
	log := logging.With(ctx, p.log)

	out, err := p.runner.Render(ctx, payload.ProjectID)
	if err != nil {
		log.Warn().Err(err).Str("kind", domain.ErrorKind(err)).Msg("queued render ended with error")
		return nil
	}
	log.Info().Str("output", out).Msg("queued render finished")
	return nil
}

// Mux routes task types to the processor.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateMedia, p.HandleGenerateMedia)
	mux.HandleFunc(TypeRender, p.HandleRender)
	return mux
}

// Server is the worker side: an asynq server bound to one queue.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zerolog.Logger
}

func NewServer(redisCfg config.RedisConfig, qcfg config.QueueConfig, proc *Processor, logger *zerolog.Logger) *Server {
	log := logging.Component(logger, "queue_server")
	srv := asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
		Concurrency: qcfg.Concurrency,
		Queues:      map[string]int{qcfg.Name: 1},
		Logger:      zerologAdapter{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})
	return &Server{srv: srv, mux: proc.Mux(), log: log}
}

// Start begins processing in the background.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	s.log.Info().Msg("queue server started")
	return nil
}

// Shutdown waits for active tasks up to asynq's shutdown timeout.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info().Msg("queue server stopped")
}

// zerologAdapter satisfies asynq.Logger.
type zerologAdapter struct {
	log *zerolog.Logger
}

func (a zerologAdapter) Debug(args ...interface{}) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Info(args ...interface{})  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Warn(args ...interface{})  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Error(args ...interface{}) { a.log.Error().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Fatal(args ...interface{}) { a.log.Fatal().Msg(fmt.Sprint(args...)) }
