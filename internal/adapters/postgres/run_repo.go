package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Guymer/gft/internal/core/domain"
)

// RunRepo implements ports.RunRepository.
type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO runs (id, config, state, step, steps, distance_metres, error, started_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, cfg, string(run.State), run.Step, run.Steps, run.DistanceMetres,
		run.Error, run.StartedAt, run.UpdatedAt, run.CompletedAt)
	return err
}

func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE runs
		SET state = $2, step = $3, steps = $4, distance_metres = $5,
		    error = $6, updated_at = $7, completed_at = $8
		WHERE id = $1
	`, run.ID, string(run.State), run.Step, run.Steps, run.DistanceMetres,
		run.Error, run.UpdatedAt, run.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, config, state, step, steps, distance_metres, error, started_at, updated_at, completed_at
		FROM runs
		WHERE id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *RunRepo) List(ctx context.Context, limit, offset int) ([]domain.Run, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, config, state, step, steps, distance_metres, error, started_at, updated_at, completed_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

func (r *RunRepo) Delete(ctx context.Context, id string) error {
	// frames go with it via ON DELETE CASCADE
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	return err
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var cfg []byte
	var state string
	if err := row.Scan(
		&run.ID, &cfg, &state, &run.Step, &run.Steps, &run.DistanceMetres,
		&run.Error, &run.StartedAt, &run.UpdatedAt, &run.CompletedAt,
	); err != nil {
		return nil, err
	}
	run.State = domain.RunState(state)
	if err := json.Unmarshal(cfg, &run.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &run, nil
}
