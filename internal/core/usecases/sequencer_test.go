package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/usecases"
)

// --- Mock collaborators ---

type mockSampler struct {
	sampleFn func(ctx context.Context, start domain.Coordinate, distanceMetres float64, nAng int) (domain.Ring, error)
}

func (m *mockSampler) Sample(ctx context.Context, start domain.Coordinate, distanceMetres float64, nAng int) (domain.Ring, error) {
	if m.sampleFn != nil {
		return m.sampleFn(ctx, start, distanceMetres, nAng)
	}
	return diamondRing(start, distanceMetres), nil
}

type mockClipper struct {
	clipFn func(candidate domain.Region) (domain.Region, error)
}

func (m *mockClipper) Clip(candidate domain.Region) (domain.Region, error) {
	if m.clipFn != nil {
		return m.clipFn(candidate)
	}
	return candidate, nil
}

type mockSimplifier struct {
	simplifyFn func(region domain.Region, toleranceDeg float64) (domain.Region, error)
}

func (m *mockSimplifier) Simplify(region domain.Region, toleranceDeg float64) (domain.Region, error) {
	if m.simplifyFn != nil {
		return m.simplifyFn(region, toleranceDeg)
	}
	return region, nil
}

type mockLandProvider struct {
	loadFn func(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error)
}

func (m *mockLandProvider) Load(ctx context.Context, req domain.LandRequest) (*domain.LandDataset, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, req)
	}
	return &domain.LandDataset{}, nil
}

// diamondRing is a deterministic stand-in for the geodesic fan: four
// points at the planar-degree equivalent of the distance.
func diamondRing(start domain.Coordinate, distanceMetres float64) domain.Ring {
	r := distanceMetres / domain.MetresPerDegree
	return domain.Ring{
		{Lon: start.Lon, Lat: start.Lat + r},
		{Lon: start.Lon + r, Lat: start.Lat},
		{Lon: start.Lon, Lat: start.Lat - r},
		{Lon: start.Lon - r, Lat: start.Lat},
	}
}

// testConfig steps exactly one hour per step at 100 kn, so a five hour
// duration is five steps.
func testConfig() domain.RunConfig {
	return domain.RunConfig{
		Lon:             0,
		Lat:             0,
		SpeedKnots:      100,
		Duration:        5 * time.Hour,
		NAng:            4,
		PrecisionMetres: 100 * domain.MetresPerNauticalMile,
		FreqLand:        1,
		FreqPlot:        1,
		FreqSimp:        1,
		SimplifyDeg:     0.01,
		Tolerance:       1e-10,
		NEResolution:    "110m",
		Workers:         1,
	}
}

func passthroughDeps(sink usecases.SinkFunc) usecases.SequencerDeps {
	return usecases.SequencerDeps{
		Sampler:    &mockSampler{},
		Sink:       sink,
		NewClipper: func(*domain.LandDataset) usecases.RegionClipper { return &mockClipper{} },
		Simplifier: &mockSimplifier{},
	}
}

// --- Tests ---

func TestSequencerRun_EmitsEveryPlotStep(t *testing.T) {
	var frames []*domain.Frame
	seq := usecases.NewSequencer(testConfig(), passthroughDeps(func(_ context.Context, f *domain.Frame) error {
		frames = append(frames, f)
		return nil
	}))

	summary, err := seq.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.State() != domain.RunStateDone {
		t.Fatalf("expected done, got %s", seq.State())
	}
	if summary.Steps != 5 {
		t.Fatalf("expected 5 steps, got %d", summary.Steps)
	}
	if summary.Frames != 5 || len(frames) != 5 {
		t.Fatalf("expected 5 frames, got summary=%d emitted=%d", summary.Frames, len(frames))
	}
	if summary.DegradedSteps != 0 {
		t.Errorf("expected no degraded steps, got %d", summary.DegradedSteps)
	}
	if summary.Final.Empty() {
		t.Error("expected a final region")
	}

	prev := 0.0
	for i, f := range frames {
		if f.Step != i+1 {
			t.Errorf("frame %d has step %d", i, f.Step)
		}
		if f.DistanceMetres <= prev {
			t.Errorf("step %d distance %g did not grow past %g", f.Step, f.DistanceMetres, prev)
		}
		if f.Region.Empty() {
			t.Errorf("step %d emitted an empty region", f.Step)
		}
		if !f.Clipped || !f.Simplified {
			t.Errorf("step %d should be clipped and simplified with unit cadences", f.Step)
		}
		if f.AreaKm2 <= 0 {
			t.Errorf("step %d area %g should be positive", f.Step, f.AreaKm2)
		}
		prev = f.DistanceMetres
	}
}

func TestSequencerRun_CadenceGates(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 6 * time.Hour
	cfg.FreqLand = 2
	cfg.FreqSimp = 3
	cfg.FreqPlot = 2

	clipCalls, simpCalls := 0, 0
	var frames []*domain.Frame
	deps := usecases.SequencerDeps{
		Sampler: &mockSampler{},
		Sink: usecases.SinkFunc(func(_ context.Context, f *domain.Frame) error {
			frames = append(frames, f)
			return nil
		}),
		NewClipper: func(*domain.LandDataset) usecases.RegionClipper {
			return &mockClipper{clipFn: func(c domain.Region) (domain.Region, error) {
				clipCalls++
				return c, nil
			}}
		},
		Simplifier: &mockSimplifier{simplifyFn: func(r domain.Region, _ float64) (domain.Region, error) {
			simpCalls++
			return r, nil
		}},
	}

	summary, err := usecases.NewSequencer(cfg, deps).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Steps != 6 {
		t.Fatalf("expected 6 steps, got %d", summary.Steps)
	}
	if clipCalls != 3 {
		t.Errorf("expected clipping on steps 2,4,6, got %d calls", clipCalls)
	}
	if simpCalls != 2 {
		t.Errorf("expected simplification on steps 3,6, got %d calls", simpCalls)
	}
	if len(frames) != 3 {
		t.Fatalf("expected frames on steps 2,4,6, got %d", len(frames))
	}
	for _, f := range frames {
		if f.Step%2 != 0 {
			t.Errorf("frame on step %d violates the plot cadence", f.Step)
		}
		if !f.Clipped {
			t.Errorf("step %d coincides with the land cadence, should be clipped", f.Step)
		}
		wantSimplified := f.Step%3 == 0
		if f.Simplified != wantSimplified {
			t.Errorf("step %d simplified=%v, want %v", f.Step, f.Simplified, wantSimplified)
		}
	}
}

func TestSequencerStep_DegradedStepKeepsPreviousFront(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 3 * time.Hour

	boom := &domain.GeometryError{Op: "clip", Err: errors.New("self intersection")}
	failingStep := 2
	var frames []*domain.Frame
	deps := usecases.SequencerDeps{
		Sampler: &mockSampler{},
		Sink: usecases.SinkFunc(func(_ context.Context, f *domain.Frame) error {
			frames = append(frames, f)
			return nil
		}),
		NewClipper: func(*domain.LandDataset) usecases.RegionClipper {
			step := 0
			return &mockClipper{clipFn: func(c domain.Region) (domain.Region, error) {
				step++
				// The failing step is attempted twice: once raw, once
				// perturbed.
				if step == failingStep || step == failingStep+1 {
					return nil, boom
				}
				return c, nil
			}}
		},
		Simplifier: &mockSimplifier{},
	}

	summary, err := usecases.NewSequencer(cfg, deps).Run(context.Background())
	if err != nil {
		t.Fatalf("degraded step must not fail the run: %v", err)
	}
	if summary.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", summary.Steps)
	}
	if summary.DegradedSteps != 1 {
		t.Fatalf("expected 1 degraded step, got %d", summary.DegradedSteps)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}

	if !frames[1].Degraded || frames[1].Clipped {
		t.Errorf("step 2 should be degraded and unclipped, got degraded=%v clipped=%v",
			frames[1].Degraded, frames[1].Clipped)
	}
	if frames[0].Degraded || frames[2].Degraded {
		t.Error("only step 2 should be degraded")
	}
	// The degraded step carries the previous front forward.
	if frames[1].Region.VertexCount() != frames[0].Region.VertexCount() {
		t.Fatalf("degraded step should retain the previous region, got %d vs %d vertices",
			frames[1].Region.VertexCount(), frames[0].Region.VertexCount())
	}
	if frames[1].Region[0].Outer[0] != frames[0].Region[0].Outer[0] {
		t.Error("degraded region differs from the previous front")
	}
	if frames[2].Region[0].Outer[0] == frames[1].Region[0].Outer[0] {
		t.Error("step 3 should sample a fresh front, not keep the degraded one")
	}
}

func TestSequencerRun_CancelFailsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig()
	cfg.Duration = 1000 * time.Hour

	seq := usecases.NewSequencer(cfg, passthroughDeps(func(context.Context, *domain.Frame) error {
		cancel()
		return nil
	}))

	_, err := seq.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if seq.State() != domain.RunStateFailed {
		t.Errorf("expected failed, got %s", seq.State())
	}
}

func TestSequencerRunRange_ChunksMatchFullRun(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 6 * time.Hour

	full := usecases.NewSequencer(cfg, passthroughDeps(func(context.Context, *domain.Frame) error { return nil }))
	fullSummary, err := full.Run(context.Background())
	if err != nil {
		t.Fatalf("full run: %v", err)
	}

	first := usecases.NewSequencer(cfg, passthroughDeps(func(context.Context, *domain.Frame) error { return nil }))
	firstSummary, err := first.RunRange(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	if firstSummary.Steps != 3 {
		t.Fatalf("first chunk should stop at step 3, got %d", firstSummary.Steps)
	}
	if first.State() != domain.RunStateStepping {
		t.Fatalf("first chunk should leave the run stepping, got %s", first.State())
	}

	var chunkFrames []*domain.Frame
	second := usecases.NewSequencer(cfg, passthroughDeps(func(_ context.Context, f *domain.Frame) error {
		chunkFrames = append(chunkFrames, f)
		return nil
	}))
	secondSummary, err := second.RunRange(context.Background(), 4, 100)
	if err != nil {
		t.Fatalf("second chunk: %v", err)
	}
	if second.State() != domain.RunStateDone {
		t.Fatalf("second chunk should finish the run, got %s", second.State())
	}
	if secondSummary.Steps != fullSummary.Steps {
		t.Fatalf("chunked run ended at step %d, full run at %d", secondSummary.Steps, fullSummary.Steps)
	}
	if len(chunkFrames) != 3 {
		t.Fatalf("second chunk should emit steps 4,5,6, got %d frames", len(chunkFrames))
	}

	// Each step depends only on its index, so the chunked final front
	// matches the full run's.
	if secondSummary.Final.VertexCount() != fullSummary.Final.VertexCount() {
		t.Fatalf("chunked final region has %d vertices, full run %d",
			secondSummary.Final.VertexCount(), fullSummary.Final.VertexCount())
	}
	if secondSummary.Final[0].Outer[0] != fullSummary.Final[0].Outer[0] {
		t.Error("chunked final region differs from the full run")
	}
}

func TestSequencerRunRange_RejectsBadRange(t *testing.T) {
	seq := usecases.NewSequencer(testConfig(), passthroughDeps(func(context.Context, *domain.Frame) error { return nil }))
	if _, err := seq.RunRange(context.Background(), 0, 5); err == nil {
		t.Error("expected an error for from=0")
	}
	if _, err := seq.RunRange(context.Background(), 5, 4); err == nil {
		t.Error("expected an error for to<from")
	}
}

func TestSequencerInit_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NAng = 2

	seq := usecases.NewSequencer(cfg, passthroughDeps(func(context.Context, *domain.Frame) error { return nil }))
	err := seq.Init(context.Background())

	var iperr *domain.InvalidParameterError
	if !errors.As(err, &iperr) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
	if iperr.Param != "nAng" {
		t.Errorf("expected param nAng, got %s", iperr.Param)
	}
	if seq.State() != domain.RunStateFailed {
		t.Errorf("expected failed, got %s", seq.State())
	}
}

func TestSequencerInit_LandProviderFailure(t *testing.T) {
	boom := &domain.ProviderError{Source: "naturalearth", Err: errors.New("offline")}
	deps := passthroughDeps(func(context.Context, *domain.Frame) error { return nil })
	deps.Land = &mockLandProvider{loadFn: func(context.Context, domain.LandRequest) (*domain.LandDataset, error) {
		return nil, boom
	}}

	seq := usecases.NewSequencer(testConfig(), deps)
	if err := seq.Init(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the provider error, got %v", err)
	}
	if seq.State() != domain.RunStateFailed {
		t.Errorf("expected failed, got %s", seq.State())
	}
}

func TestSequencerRun_SamplerErrorIsFatal(t *testing.T) {
	boom := &domain.NumericDomainError{Op: "direct", Detail: "latitude out of range"}
	deps := passthroughDeps(func(context.Context, *domain.Frame) error { return nil })
	deps.Sampler = &mockSampler{sampleFn: func(context.Context, domain.Coordinate, float64, int) (domain.Ring, error) {
		return nil, boom
	}}

	seq := usecases.NewSequencer(testConfig(), deps)
	if _, err := seq.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the sampler error, got %v", err)
	}
	if seq.State() != domain.RunStateFailed {
		t.Errorf("expected failed, got %s", seq.State())
	}
}

func TestSequencerRun_SinkErrorIsFatal(t *testing.T) {
	boom := errors.New("archive down")
	seq := usecases.NewSequencer(testConfig(), passthroughDeps(func(context.Context, *domain.Frame) error {
		return boom
	}))

	if _, err := seq.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the sink error, got %v", err)
	}
	if seq.State() != domain.RunStateFailed {
		t.Errorf("expected failed, got %s", seq.State())
	}
}

func TestSequencerRun_StopsAtAntipodalLimit(t *testing.T) {
	cfg := testConfig()
	// 10,000 km steps pass the antipodal limit on the second step.
	cfg.PrecisionMetres = 1e7
	cfg.Duration = 1000 * time.Hour

	var frames []*domain.Frame
	summary, err := usecases.NewSequencer(cfg, passthroughDeps(func(_ context.Context, f *domain.Frame) error {
		frames = append(frames, f)
		return nil
	})).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Steps != 1 {
		t.Fatalf("expected the run to stop after step 1, got %d", summary.Steps)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
}
