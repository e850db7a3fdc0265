package ports

import (
	"context"

	"github.com/Guymer/gft/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishFrame(ctx context.Context, frame *domain.Frame) error
	PublishRunStatus(ctx context.Context, run *domain.Run) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
