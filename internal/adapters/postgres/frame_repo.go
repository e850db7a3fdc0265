package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/pkg/geometry"
)

// FrameRepo implements ports.FrameRepository. The front geometry is kept
// as a PostGIS geography so the archive stays queryable with GIS tooling.
type FrameRepo struct {
	db *DB
}

func NewFrameRepo(db *DB) *FrameRepo {
	return &FrameRepo{db: db}
}

func (r *FrameRepo) Insert(ctx context.Context, frame *domain.Frame) error {
	wkb, err := geometry.MarshalWKB(frame.Region)
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	// ON CONFLICT DO NOTHING keeps retried emits idempotent per (run, step).
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO frames (run_id, step, elapsed_seconds, distance_metres, front, area_km2, vertices, clipped, simplified, degraded, emitted_at)
		VALUES ($1, $2, $3, $4, ST_GeomFromWKB($5, 4326)::geography, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, step) DO NOTHING
	`, frame.RunID, frame.Step, frame.Elapsed.Seconds(), frame.DistanceMetres,
		wkb, frame.AreaKm2, frame.Vertices, frame.Clipped, frame.Simplified,
		frame.Degraded, frame.EmittedAt)
	return err
}

func (r *FrameRepo) ListByRun(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM frames WHERE run_id = $1`, runID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT run_id, step, elapsed_seconds, distance_metres, area_km2, vertices, clipped, simplified, degraded, emitted_at
		FROM frames
		WHERE run_id = $1
		ORDER BY step
		LIMIT $2 OFFSET $3
	`, runID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var frames []domain.Frame
	for rows.Next() {
		var f domain.Frame
		var elapsedSec float64
		if err := rows.Scan(
			&f.RunID, &f.Step, &elapsedSec, &f.DistanceMetres, &f.AreaKm2,
			&f.Vertices, &f.Clipped, &f.Simplified, &f.Degraded, &f.EmittedAt,
		); err != nil {
			return nil, 0, err
		}
		f.Elapsed = time.Duration(elapsedSec * float64(time.Second))
		frames = append(frames, f)
	}
	return frames, total, rows.Err()
}

func (r *FrameRepo) GetByStep(ctx context.Context, runID string, step int) (*domain.Frame, error) {
	var f domain.Frame
	var elapsedSec float64
	var wkb []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT run_id, step, elapsed_seconds, distance_metres, ST_AsBinary(front::geometry), area_km2, vertices, clipped, simplified, degraded, emitted_at
		FROM frames
		WHERE run_id = $1 AND step = $2
	`, runID, step).Scan(
		&f.RunID, &f.Step, &elapsedSec, &f.DistanceMetres, &wkb, &f.AreaKm2,
		&f.Vertices, &f.Clipped, &f.Simplified, &f.Degraded, &f.EmittedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f.Elapsed = time.Duration(elapsedSec * float64(time.Second))
	f.Region, err = geometry.UnmarshalWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("decode region: %w", err)
	}
	return &f, nil
}

func (r *FrameRepo) DeleteByRun(ctx context.Context, runID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM frames WHERE run_id = $1`, runID)
	return err
}
