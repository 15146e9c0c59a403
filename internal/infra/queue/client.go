package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/infra/logging"
)

// Client enqueues project runs and cancels them wherever they are.
type Client struct {
	cli           *asynq.Client
	insp          *asynq.Inspector
	queue         string
	runTimeout    time.Duration
	renderTimeout time.Duration
	log           *zerolog.Logger
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.URL, Password: cfg.Password, DB: cfg.DB}
}

// NewClient connects lazily; asynq dials Redis on first use.
func NewClient(redisCfg config.RedisConfig, qcfg config.QueueConfig, runTimeout, renderTimeout time.Duration, logger *zerolog.Logger) *Client {
	opt := RedisOpt(redisCfg)
	return &Client{
		cli:           asynq.NewClient(opt),
		insp:          asynq.NewInspector(opt),
		queue:         qcfg.Name,
		runTimeout:    runTimeout,
		renderTimeout: renderTimeout,
		log:           logging.Component(logger, "queue_client"),
	}
}

func (c *Client) EnqueueGeneration(ctx context.Context, projectID string) error {
	return c.enqueue(ctx, TypeGenerateMedia, projectID, c.runTimeout)
}

func (c *Client) EnqueueRender(ctx context.Context, projectID string) error {
	return c.enqueue(ctx, TypeRender, projectID, c.renderTimeout)
}

func (c *Client) enqueue(ctx context.Context, kind, projectID string, timeout time.Duration) error {
	task, err := NewProjectTask(kind, projectID, c.queue, timeout)
	if err != nil {
		return err
	}
	info, err := c.cli.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return domain.ErrGenerationInProgress
	}
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	c.log.Info().Str("project_id", projectID).Str("task", info.ID).Str("type", kind).Msg("task enqueued")
	return nil
}

// CancelGeneration drops a pending task or signals the worker running it.
// It reports domain.ErrNotFound when the queue knows nothing about the project.
func (c *Client) CancelGeneration(ctx context.Context, projectID string) error {
	id := TaskID(TypeGenerateMedia, projectID)
	info, err := c.insp.GetTaskInfo(c.queue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("no queued run for project %s: %w", projectID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("inspect task: %w", err)
	}
	if info.State == asynq.TaskStateActive {
		if err := c.insp.CancelProcessing(id); err != nil {
			return fmt.Errorf("cancel task: %w", err)
		}
		c.log.Info().Str("project_id", projectID).Msg("active task cancel requested")
		return nil
	}
	if err := c.insp.DeleteTask(c.queue, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	c.log.Info().Str("project_id", projectID).Str("state", info.State.String()).Msg("queued task removed")
	return nil
}

func (c *Client) Close() error {
	ierr := c.insp.Close()
	if err := c.cli.Close(); err != nil {
		return err
	}
	return ierr
}
