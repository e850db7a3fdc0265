package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/pkg/geodesic"
	"github.com/Guymer/gft/internal/pkg/geometry"
	"github.com/Guymer/gft/internal/pkg/metrics"
)

// perturbDeg is the nudge applied before retrying a failed polygon
// operation, far below any simplification tolerance.
const perturbDeg = 1e-9

// FrontSampler produces the ring of points at a distance from the start.
type FrontSampler interface {
	Sample(ctx context.Context, start domain.Coordinate, distanceMetres float64, nAng int) (domain.Ring, error)
}

// RegionClipper subtracts a barrier from a candidate front.
type RegionClipper interface {
	Clip(candidate domain.Region) (domain.Region, error)
}

// RegionSimplifier thins region boundaries.
type RegionSimplifier interface {
	Simplify(region domain.Region, toleranceDeg float64) (domain.Region, error)
}

// SequencerDeps carries the sequencer's collaborators. Sampler, NewClipper
// and Simplifier fall back to the real geodesic and geometry
// implementations when left nil; Land and Sink may stay nil to run without
// clipping or without emitting.
type SequencerDeps struct {
	RunID      string
	Sampler    FrontSampler
	Land       ports.LandProvider
	Sink       ports.FrameSink
	NewClipper func(*domain.LandDataset) RegionClipper
	Simplifier RegionSimplifier
	Logger     *slog.Logger
}

// Sequencer drives one reachability run: it fans a fresh front each step,
// clips and simplifies it on their cadences and hands frames to the sink
// on the plot cadence.
//
// Geometry failures are never fatal. A failed clip or simplify is retried
// once on perturbed input; if that fails too, the step keeps the previous
// retained region and the emitted frame is marked degraded. Sampler,
// provider and sink failures are fatal.
type Sequencer struct {
	cfg  domain.RunConfig
	deps SequencerDeps

	state   domain.RunState
	step    int
	region  domain.Region
	clipper RegionClipper
	summary domain.RunSummary
}

// NewSequencer builds a sequencer in the init state. The config is not
// defaulted here; callers decide when ApplyDefaults runs.
func NewSequencer(cfg domain.RunConfig, deps SequencerDeps) *Sequencer {
	if deps.Sampler == nil {
		deps.Sampler = geodesic.NewSampler(geodesic.NewRay(), cfg.Workers)
	}
	if deps.NewClipper == nil {
		deps.NewClipper = func(land *domain.LandDataset) RegionClipper {
			return geometry.NewClipper(land)
		}
	}
	if deps.Simplifier == nil {
		deps.Simplifier = geometry.Simplifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RunID != "" {
		deps.Logger = deps.Logger.With("run_id", deps.RunID)
	}
	return &Sequencer{cfg: cfg, deps: deps, state: domain.RunStateInit}
}

// State reports the lifecycle state.
func (s *Sequencer) State() domain.RunState { return s.state }

// Region returns the currently retained front.
func (s *Sequencer) Region() domain.Region { return s.region }

// Init validates the config and loads the barrier dataset. It moves the
// sequencer from init to stepping and may only be called once.
func (s *Sequencer) Init(ctx context.Context) error {
	if s.state != domain.RunStateInit {
		return fmt.Errorf("sequencer already %s", s.state)
	}
	if err := s.cfg.Validate(); err != nil {
		s.state = domain.RunStateFailed
		return err
	}

	var land *domain.LandDataset
	if s.deps.Land != nil {
		start := time.Now()
		var err error
		land, err = s.deps.Land.Load(ctx, s.cfg.LandRequest())
		if err != nil {
			s.state = domain.RunStateFailed
			return err
		}
		metrics.LandLoadDuration.Observe(time.Since(start).Seconds())
		s.deps.Logger.Info("barrier dataset ready",
			"polygons", len(land.Barrier),
			"vertices", land.Barrier.VertexCount(),
			"resolution", land.Resolution)
	} else {
		s.deps.Logger.Debug("no land provider, clipping disabled")
	}
	s.clipper = s.deps.NewClipper(land)
	s.state = domain.RunStateStepping
	return nil
}

// Run steps until the configured duration is covered, the front reaches
// the antipodal limit, the context is cancelled or a fatal error occurs.
func (s *Sequencer) Run(ctx context.Context) (*domain.RunSummary, error) {
	if s.state == domain.RunStateInit {
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
	}
	for s.state == domain.RunStateStepping {
		if err := ctx.Err(); err != nil {
			s.state = domain.RunStateFailed
			return nil, err
		}
		if err := s.Step(ctx); err != nil {
			return nil, err
		}
	}
	if s.state != domain.RunStateDone {
		return nil, fmt.Errorf("sequencer stopped %s", s.state)
	}
	return &s.summary, nil
}

// RunRange advances from step from through step to, inclusive. It lets a
// caller split one run into resumable chunks; each step only depends on
// its index, so a later chunk can pick up where an earlier one stopped.
// The run ends inside whichever chunk covers the configured duration.
func (s *Sequencer) RunRange(ctx context.Context, from, to int) (*domain.RunSummary, error) {
	if from < 1 || to < from {
		return nil, domain.NewInvalidParameter("range", "steps %d..%d are not a valid range", from, to)
	}
	if s.state == domain.RunStateInit {
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
	}
	if s.state == domain.RunStateStepping && s.step < from-1 {
		s.step = from - 1
	}
	for s.state == domain.RunStateStepping && s.step < to {
		if err := ctx.Err(); err != nil {
			s.state = domain.RunStateFailed
			return nil, err
		}
		if err := s.Step(ctx); err != nil {
			return nil, err
		}
	}
	if s.state == domain.RunStateFailed {
		return nil, fmt.Errorf("sequencer stopped %s", s.state)
	}
	return &s.summary, nil
}

// Step advances the front by one precision increment.
func (s *Sequencer) Step(ctx context.Context) error {
	if s.state != domain.RunStateStepping {
		return fmt.Errorf("sequencer is %s, not stepping", s.state)
	}

	step := s.step + 1
	distance := s.cfg.StepDistance(step)
	if distance > geodesic.MaxDistanceMetres {
		s.deps.Logger.Warn("front reached the antipodal limit, stopping early",
			"step", step, "distance_metres", distance)
		s.finish()
		return nil
	}

	start := s.cfg.Start()
	sampled := time.Now()
	ring, err := s.deps.Sampler.Sample(ctx, start, distance, s.cfg.NAng)
	if err != nil {
		return s.fail(err)
	}
	metrics.SampleDuration.Observe(time.Since(sampled).Seconds())

	region, err := geometry.NormalizeRing(ring, start)
	degraded := false
	if err != nil {
		region, degraded = s.recover("normalize", step, err, func() (domain.Region, error) {
			nudged := geometry.Perturb(domain.Region{{Outer: ring}}, perturbDeg)
			return geometry.NormalizeRing(nudged[0].Outer, start)
		})
	}

	clipped := false
	if !degraded && step%s.cfg.FreqLand == 0 {
		began := time.Now()
		out, err := s.clipper.Clip(region)
		if err != nil {
			out, degraded = s.recover("clip", step, err, func() (domain.Region, error) {
				return s.clipper.Clip(geometry.Perturb(region, perturbDeg))
			})
		}
		region = out
		clipped = !degraded
		metrics.ClipDuration.Observe(time.Since(began).Seconds())
	}

	simplified := false
	if !degraded && step%s.cfg.FreqSimp == 0 {
		began := time.Now()
		out, err := s.deps.Simplifier.Simplify(region, s.cfg.SimplifyDeg)
		if err != nil {
			out, degraded = s.recover("simplify", step, err, func() (domain.Region, error) {
				return s.deps.Simplifier.Simplify(geometry.Perturb(region, perturbDeg), s.cfg.SimplifyDeg)
			})
		}
		region = out
		simplified = !degraded
		metrics.SimplifyDuration.Observe(time.Since(began).Seconds())
	}

	if degraded {
		s.summary.DegradedSteps++
		metrics.DegradedSteps.Inc()
	}
	s.step = step
	s.region = region
	s.summary.Steps = step
	s.summary.DistanceMetres = distance
	s.summary.Elapsed = s.cfg.Elapsed(step)
	metrics.SimulationSteps.Inc()

	s.deps.Logger.Debug("front advanced",
		"step", step,
		"distance_metres", distance,
		"vertices", region.VertexCount(),
		"degraded", degraded)

	if step%s.cfg.FreqPlot == 0 {
		frame := &domain.Frame{
			RunID:          s.deps.RunID,
			Step:           step,
			Elapsed:        s.cfg.Elapsed(step),
			DistanceMetres: distance,
			Region:         region.Clone(),
			AreaKm2:        geometry.AreaKm2(region, start),
			Vertices:       region.VertexCount(),
			Clipped:        clipped,
			Simplified:     simplified,
			Degraded:       degraded,
			EmittedAt:      time.Now().UTC(),
		}
		if s.deps.Sink != nil {
			if err := s.deps.Sink.EmitFrame(ctx, frame); err != nil {
				return s.fail(fmt.Errorf("emit frame %d: %w", step, err))
			}
		}
		s.summary.Frames++
		metrics.FramesEmitted.Inc()
		s.deps.Logger.Info("frame emitted",
			"step", step,
			"distance_km", distance/1000,
			"elapsed_hours", frame.ElapsedHours(),
			"area_km2", frame.AreaKm2,
			"vertices", frame.Vertices,
			"degraded", degraded)
	}

	if s.cfg.Elapsed(step) >= s.cfg.Duration {
		s.finish()
	}
	return nil
}

// recover implements the degradation policy for a geometry phase: one
// retry on perturbed input, then continue with the previously retained
// region.
func (s *Sequencer) recover(phase string, step int, cause error, retry func() (domain.Region, error)) (domain.Region, bool) {
	s.deps.Logger.Warn("geometry phase failed, retrying perturbed",
		"phase", phase, "step", step, "error", cause)
	metrics.GeometryRetries.Inc()

	out, err := retry()
	if err == nil {
		return out, false
	}
	s.deps.Logger.Warn("retry failed, continuing with previous front",
		"phase", phase, "step", step, "error", err)
	return s.region.Clone(), true
}

// fail marks the run failed and passes the error through.
func (s *Sequencer) fail(err error) error {
	s.state = domain.RunStateFailed
	return err
}

func (s *Sequencer) finish() {
	s.state = domain.RunStateDone
	s.summary.Final = s.region
}
