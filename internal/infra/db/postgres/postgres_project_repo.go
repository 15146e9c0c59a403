package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/model"
	"media-pipeline/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.ProjectRepository = (*PostgresProjectRepo)(nil)

// PostgresProjectRepo stores a project as one row; plan, progress and assets
// are JSONB columns replaced wholesale on every save.
type PostgresProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *PostgresProjectRepo {
	return &PostgresProjectRepo{pool: pool}
}

const projectColumns = `id, name, brief, audio_path, audio_duration, style, state, plan, progress, assets, script_path, output_path, created_at, updated_at`

func (r *PostgresProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	plan, progress, assets, err := encodeProject(p)
	if err != nil {
		return fmt.Errorf("Save project: %w", err)
	}
	const sql = `
INSERT INTO projects (` + projectColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE
  SET name           = EXCLUDED.name,
      brief          = EXCLUDED.brief,
      audio_path     = EXCLUDED.audio_path,
      audio_duration = EXCLUDED.audio_duration,
      style          = EXCLUDED.style,
      state          = EXCLUDED.state,
      plan           = EXCLUDED.plan,
      progress       = EXCLUDED.progress,
      assets         = EXCLUDED.assets,
      script_path    = EXCLUDED.script_path,
      output_path    = EXCLUDED.output_path,
      updated_at     = EXCLUDED.updated_at;
`
	_, err = exec.Exec(ctx, sql,
		p.ID, p.Name, p.Brief, p.AudioPath, p.AudioDuration, p.Style, string(p.State),
		plan, progress, assets, p.ScriptPath, p.OutputPath, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Save project: %w", err)
	}
	return nil
}

func (r *PostgresProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const sql = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1;`
	p, err := scanProject(exec.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID project: %w", err)
	}
	return p, nil
}

func (r *PostgresProjectRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Project, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const sql = `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	rows, err := exec.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List projects: %w", err)
	}
	return collectProjects(rows)
}

func (r *PostgresProjectRepo) FindStale(ctx context.Context, tx repository.Tx, state model.ProjectState, before time.Time) ([]*model.Project, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const sql = `SELECT ` + projectColumns + ` FROM projects WHERE state = $1 AND updated_at < $2 ORDER BY updated_at;`
	rows, err := exec.Query(ctx, sql, string(state), before)
	if err != nil {
		return nil, fmt.Errorf("FindStale projects: %w", err)
	}
	return collectProjects(rows)
}

func (r *PostgresProjectRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	ct, err := exec.Exec(ctx, `DELETE FROM projects WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("Delete project: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeProject(p *model.Project) (plan, progress, assets []byte, err error) {
	if p.Plan != nil {
		if plan, err = json.Marshal(p.Plan); err != nil {
			return nil, nil, nil, err
		}
	}
	if p.Progress != nil {
		if progress, err = json.Marshal(p.Progress); err != nil {
			return nil, nil, nil, err
		}
	}
	list := p.Assets
	if list == nil {
		list = []model.GeneratedAsset{}
	}
	if assets, err = json.Marshal(list); err != nil {
		return nil, nil, nil, err
	}
	return plan, progress, assets, nil
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p                      model.Project
		state                  string
		plan, progress, assets []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Brief, &p.AudioPath, &p.AudioDuration, &p.Style, &state,
		&plan, &progress, &assets, &p.ScriptPath, &p.OutputPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.State = model.ProjectState(state)
	if len(plan) > 0 {
		p.Plan = &model.TimelinePlan{}
		if err := json.Unmarshal(plan, p.Plan); err != nil {
			return nil, fmt.Errorf("%w: plan: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(progress) > 0 {
		p.Progress = &model.GenerationProgress{}
		if err := json.Unmarshal(progress, p.Progress); err != nil {
			return nil, fmt.Errorf("%w: progress: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(assets) > 0 {
		if err := json.Unmarshal(assets, &p.Assets); err != nil {
			return nil, fmt.Errorf("%w: assets: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &p, nil
}

func collectProjects(rows pgx.Rows) ([]*model.Project, error) {
	defer rows.Close()
	var out []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
