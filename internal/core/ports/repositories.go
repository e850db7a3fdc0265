package ports

import (
	"context"

	"github.com/Guymer/gft/internal/core/domain"
)

// RunRepository persists run records.
type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, limit, offset int) ([]domain.Run, int, error)
	Delete(ctx context.Context, id string) error
}

// FrameRepository persists emitted frames. Inserts are idempotent per
// (run, step) so a frame reaching the store twice is harmless.
type FrameRepository interface {
	Insert(ctx context.Context, frame *domain.Frame) error
	// ListByRun returns frame metadata without geometry, oldest first.
	ListByRun(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error)
	// GetByStep returns one frame with its geometry.
	GetByStep(ctx context.Context, runID string, step int) (*domain.Frame, error)
	DeleteByRun(ctx context.Context, runID string) error
}
