package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	geojson "github.com/paulmach/go.geojson"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/pkg/geometry"
	"github.com/Guymer/gft/internal/pkg/metrics"
)

const (
	// isochroneMaxSteps bounds synchronous requests; longer simulations
	// belong in a background run.
	isochroneMaxSteps = 2048

	isochroneCacheTTL = 86400 // seconds
)

// IsochroneService computes a reachability fan synchronously and returns
// it as a GeoJSON FeatureCollection, one feature per emitted frame.
// Results are cached by config fingerprint: the same request always
// produces the same geometry.
type IsochroneService struct {
	land   ports.LandProvider
	cache  ports.CacheService
	logger *slog.Logger

	// MaxSteps overrides the synchronous step bound when positive.
	MaxSteps int
}

// NewIsochroneService wires the synchronous compute path. cache may be nil.
func NewIsochroneService(land ports.LandProvider, cache ports.CacheService, logger *slog.Logger) *IsochroneService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IsochroneService{land: land, cache: cache, logger: logger}
}

// Compute runs the front to completion and renders every emitted frame
// into a FeatureCollection. The returned bytes are ready to serve.
func (s *IsochroneService) Compute(ctx context.Context, cfg domain.RunConfig) ([]byte, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxSteps := s.MaxSteps
	if maxSteps <= 0 {
		maxSteps = isochroneMaxSteps
	}
	if steps := cfg.Steps(); steps > maxSteps {
		return nil, domain.NewInvalidParameter("duration",
			"request needs %d steps, synchronous limit is %d", steps, maxSteps)
	}

	key, err := isochroneCacheKey(cfg)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if body, err := s.cache.Get(ctx, key); err == nil && body != nil {
			metrics.CacheHits.WithLabelValues("isochrone").Inc()
			return body, nil
		}
		metrics.CacheMisses.WithLabelValues("isochrone").Inc()
	}

	var frames []*domain.Frame
	collector := SinkFunc(func(_ context.Context, f *domain.Frame) error {
		frames = append(frames, f)
		return nil
	})
	seq := NewSequencer(cfg, SequencerDeps{
		Land:   s.land,
		Sink:   collector,
		Logger: s.logger,
	})
	summary, err := seq.Run(ctx)
	if err != nil {
		return nil, err
	}

	body, err := encodeIsochrone(cfg, frames, summary)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, isochroneCacheTTL); err != nil {
			s.logger.Warn("isochrone cache store failed", "key", key, "error", err)
		}
	}
	return body, nil
}

func encodeIsochrone(cfg domain.RunConfig, frames []*domain.Frame, summary *domain.RunSummary) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	origin := geojson.NewPointFeature([]float64{cfg.Lon, cfg.Lat})
	origin.SetProperty("kind", "origin")
	origin.SetProperty("speed_knots", cfg.SpeedKnots)
	fc.AddFeature(origin)

	for _, f := range frames {
		feat := geojson.NewFeature(geometry.ToGeoJSON(f.Region))
		feat.SetProperty("kind", "front")
		feat.SetProperty("step", f.Step)
		feat.SetProperty("elapsed_hours", f.ElapsedHours())
		feat.SetProperty("distance_km", f.DistanceMetres/1000)
		feat.SetProperty("area_km2", f.AreaKm2)
		feat.SetProperty("vertices", f.Vertices)
		feat.SetProperty("clipped", f.Clipped)
		feat.SetProperty("simplified", f.Simplified)
		feat.SetProperty("degraded", f.Degraded)
		fc.AddFeature(feat)
	}

	if summary != nil && summary.Final != nil {
		if len(frames) == 0 || frames[len(frames)-1].Step != summary.Steps {
			feat := geojson.NewFeature(geometry.ToGeoJSON(summary.Final))
			feat.SetProperty("kind", "front")
			feat.SetProperty("step", summary.Steps)
			feat.SetProperty("elapsed_hours", summary.Elapsed.Hours())
			feat.SetProperty("distance_km", summary.DistanceMetres/1000)
			fc.AddFeature(feat)
		}
	}

	return json.Marshal(fc)
}

// isochroneCacheKey fingerprints the effective config after defaulting,
// so equivalent requests share an entry.
func isochroneCacheKey(cfg domain.RunConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("fingerprint config: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "isochrone:" + hex.EncodeToString(sum[:16]), nil
}
