package repository

import (
	"context"
	"time"

	"media-pipeline/internal/domain/model"
)

// ProjectRepository persists projects together with their current plan and
// last progress snapshot.
type ProjectRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Project) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Project, error)
	List(ctx context.Context, tx Tx, limit, offset int) ([]*model.Project, error)
	// FindStale returns projects stuck in state since before the cutoff.
	FindStale(ctx context.Context, tx Tx, state model.ProjectState, before time.Time) ([]*model.Project, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
