package usecases

import (
	"context"
	"encoding/json"
	"log/slog"

	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/pkg/geometry"
	"github.com/Guymer/gft/internal/pkg/metrics"
)

const landCacheTTL = 604800 // seconds; barriers are immutable per request key

// LandService exposes prepared land barriers as GeoJSON so clients can
// draw the obstacles a run was clipped against.
type LandService struct {
	land   ports.LandProvider
	cache  ports.CacheService
	logger *slog.Logger
}

// NewLandService wires the barrier lookup. cache may be nil.
func NewLandService(land ports.LandProvider, cache ports.CacheService, logger *slog.Logger) *LandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LandService{land: land, cache: cache, logger: logger}
}

// Get loads the barrier for the request and renders it as a single
// MultiPolygon feature.
func (s *LandService) Get(ctx context.Context, req domain.LandRequest) ([]byte, error) {
	key := "land:" + req.Key()
	if s.cache != nil {
		if body, err := s.cache.Get(ctx, key); err == nil && body != nil {
			metrics.CacheHits.WithLabelValues("land").Inc()
			return body, nil
		}
		metrics.CacheMisses.WithLabelValues("land").Inc()
	}

	ds, err := s.land.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	if !ds.Empty() {
		feat := geojson.NewFeature(geometry.ToGeoJSON(ds.Barrier))
		feat.SetProperty("kind", string(ds.Kind))
		feat.SetProperty("resolution", ds.Resolution)
		feat.SetProperty("buffer_metres", ds.BufferMetres)
		if len(ds.AvoidCountries) > 0 {
			feat.SetProperty("countries", ds.AvoidCountries)
		}
		fc.AddFeature(feat)
	}
	body, err := json.Marshal(fc)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, landCacheTTL); err != nil {
			s.logger.Warn("land cache store failed", "key", key, "error", err)
		}
	}
	return body, nil
}
