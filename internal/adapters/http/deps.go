package http

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Guymer/gft/internal/adapters/postgres"
	"github.com/Guymer/gft/internal/adapters/valkey"
	"github.com/Guymer/gft/internal/core/usecases"
	"github.com/Guymer/gft/internal/workflows"
)

// Dependencies holds all services needed by HTTP handlers. NATS, DB,
// Cache and Durable may be nil; the handlers that need them degrade or
// report the capability as unavailable.
type Dependencies struct {
	Runs       *usecases.RunService
	Isochrones *usecases.IsochroneService
	Land       *usecases.LandService
	Complexity *usecases.ComplexityService
	Durable    *workflows.Starter
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache

	// IsochroneTimeout bounds the synchronous compute endpoint. Zero
	// means two minutes.
	IsochroneTimeout time.Duration
}

func (d *Dependencies) isochroneTimeout() time.Duration {
	if d.IsochroneTimeout <= 0 {
		return 2 * time.Minute
	}
	return d.IsochroneTimeout
}
