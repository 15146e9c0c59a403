// Package queue hands generation and render runs to worker processes over
// asynq.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeGenerateMedia = "pipeline:generate_media"
	TypeRender        = "pipeline:render"
)

type ProjectPayload struct {
	ProjectID string `json:"project_id"`
}

// TaskID is stable per project and kind, so asynq itself rejects a second
// pending or active task for the same project.
func TaskID(kind, projectID string) string {
	return kind + ":" + projectID
}

// NewProjectTask builds a task for one project. Runs are never retried by the
// queue: a failed run is recorded on the project and restarted by the caller.
// No retention is set, so the id frees up as soon as the task completes.
func NewProjectTask(kind, projectID, queueName string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ProjectPayload{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.TaskID(TaskID(kind, projectID)),
		asynq.MaxRetry(0),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(kind, payload, opts...), nil
}

func decodePayload(t *asynq.Task) (ProjectPayload, error) {
	var p ProjectPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.ProjectID == "" {
		return p, fmt.Errorf("payload has no project_id: %w", asynq.SkipRetry)
	}
	return p, nil
}
