package ports

import (
	"context"

	"github.com/Guymer/gft/internal/core/domain"
)

// LandProvider loads or builds the barrier dataset a run clips against.
type LandProvider interface {
	Load(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error)
}

// FrameSink receives emitted frames. A sink error aborts the run, so
// best-effort consumers wrap themselves accordingly.
type FrameSink interface {
	EmitFrame(ctx context.Context, frame *domain.Frame) error
}
