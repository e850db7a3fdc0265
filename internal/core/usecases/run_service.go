package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/pkg/metrics"
)

var (
	// ErrRunFinished is returned when cancelling or deleting collides
	// with the run's lifecycle state.
	ErrRunFinished = errors.New("run already finished")
	// ErrRunActive is returned when deleting a run that is still stepping.
	ErrRunActive = errors.New("run is still active")
	// ErrRunNotFound is returned when no live or archived run matches.
	ErrRunNotFound = errors.New("run not found")
	// ErrNoArchive is returned when frame queries need a repository that
	// was not configured.
	ErrNoArchive = errors.New("frame archive is not configured")
)

// RunService starts reachability runs in the background and tracks them
// while they step. Archived state lives in the repositories when they are
// configured; without them the service still runs, it just forgets runs
// on restart.
type RunService struct {
	land   ports.LandProvider
	runs   ports.RunRepository
	frames ports.FrameRepository
	pub    ports.EventPublisher
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	run    *domain.Run
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunService wires the run manager. runs, frames and pub may be nil.
func NewRunService(land ports.LandProvider, runs ports.RunRepository, frames ports.FrameRepository, pub ports.EventPublisher, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		land:   land,
		runs:   runs,
		frames: frames,
		pub:    pub,
		logger: logger,
		active: make(map[string]*activeRun),
	}
}

// Start validates the config, registers a run and begins stepping it in
// the background. The returned record is a snapshot taken at creation.
func (s *RunService) Start(ctx context.Context, cfg domain.RunConfig) (*domain.Run, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:        uuid.NewString(),
		Config:    cfg,
		State:     domain.RunStateInit,
		Steps:     cfg.Steps(),
		StartedAt: now,
		UpdatedAt: now,
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ar := &activeRun{run: run, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.active[run.ID] = ar
	s.mu.Unlock()

	go s.execute(runCtx, ar)
	return s.snapshot(ar), nil
}

func (s *RunService) execute(ctx context.Context, ar *activeRun) {
	defer close(ar.done)
	defer ar.cancel()

	ctx, span := otel.Tracer("gft").Start(ctx, "simulation.run")
	span.SetAttributes(
		attribute.String("run.id", ar.run.ID),
		attribute.Int("run.steps", ar.run.Steps),
	)
	defer span.End()

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	var required, optional []ports.FrameSink
	required = append(required, SinkFunc(func(ctx context.Context, f *domain.Frame) error {
		s.progress(ctx, ar, f)
		return nil
	}))
	if s.frames != nil {
		required = append(required, SinkFunc(s.frames.Insert))
	}
	if s.pub != nil {
		optional = append(optional, SinkFunc(s.pub.PublishFrame))
	}

	cfg := ar.run.Config
	seq := NewSequencer(cfg, SequencerDeps{
		RunID:  ar.run.ID,
		Land:   s.land,
		Sink:   &FanoutSink{Required: required, Optional: optional, Logger: s.logger},
		Logger: s.logger,
	})

	if err := seq.Init(ctx); err != nil {
		s.finalize(ar, domain.RunStateFailed, nil, err)
		return
	}
	s.setState(ctx, ar, domain.RunStateStepping)

	summary, err := seq.Run(ctx)
	if err != nil {
		s.finalize(ar, domain.RunStateFailed, nil, err)
		return
	}
	s.finalize(ar, domain.RunStateDone, summary, nil)
}

// progress records per-frame advancement on the live run record.
func (s *RunService) progress(ctx context.Context, ar *activeRun, f *domain.Frame) {
	s.mu.Lock()
	ar.run.Step = f.Step
	ar.run.DistanceMetres = f.DistanceMetres
	ar.run.UpdatedAt = time.Now().UTC()
	snap := *ar.run
	s.mu.Unlock()

	if s.runs != nil {
		if err := s.runs.Update(ctx, &snap); err != nil {
			s.logger.Warn("run progress update failed", "run_id", snap.ID, "error", err)
		}
	}
}

func (s *RunService) setState(ctx context.Context, ar *activeRun, state domain.RunState) {
	s.mu.Lock()
	ar.run.State = state
	ar.run.UpdatedAt = time.Now().UTC()
	snap := *ar.run
	s.mu.Unlock()

	if s.runs != nil {
		if err := s.runs.Update(ctx, &snap); err != nil {
			s.logger.Warn("run state update failed", "run_id", snap.ID, "error", err)
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishRunStatus(ctx, &snap); err != nil {
			s.logger.Warn("run status publish failed", "run_id", snap.ID, "error", err)
		}
	}
}

func (s *RunService) finalize(ar *activeRun, state domain.RunState, summary *domain.RunSummary, cause error) {
	now := time.Now().UTC()
	s.mu.Lock()
	ar.run.State = state
	ar.run.UpdatedAt = now
	ar.run.CompletedAt = &now
	if summary != nil {
		ar.run.Step = summary.Steps
		ar.run.DistanceMetres = summary.DistanceMetres
	}
	if cause != nil {
		ar.run.Error = cause.Error()
	}
	snap := *ar.run
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.runs != nil {
		if err := s.runs.Update(ctx, &snap); err != nil {
			s.logger.Warn("run finalize update failed", "run_id", snap.ID, "error", err)
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishRunStatus(ctx, &snap); err != nil {
			s.logger.Warn("run status publish failed", "run_id", snap.ID, "error", err)
		}
	}

	if cause != nil {
		s.logger.Error("run failed", "run_id", snap.ID, "step", snap.Step, "error", cause)
		return
	}
	s.logger.Info("run finished",
		"run_id", snap.ID,
		"steps", snap.Step,
		"distance_km", snap.DistanceMetres/1000,
		"degraded_steps", summary.DegradedSteps)
}

// Get returns a live snapshot or the archived record, nil when unknown.
func (s *RunService) Get(ctx context.Context, id string) (*domain.Run, error) {
	s.mu.Lock()
	ar, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		return s.snapshot(ar), nil
	}
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.GetByID(ctx, id)
}

// List pages through runs, newest first, overlaying live state on
// archived records.
func (s *RunService) List(ctx context.Context, limit, offset int) ([]domain.Run, int, error) {
	if s.runs != nil {
		runs, total, err := s.runs.List(ctx, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		s.mu.Lock()
		for i := range runs {
			if ar, ok := s.active[runs[i].ID]; ok {
				runs[i] = *ar.run
			}
		}
		s.mu.Unlock()
		return runs, total, nil
	}

	s.mu.Lock()
	all := make([]domain.Run, 0, len(s.active))
	for _, ar := range s.active {
		all = append(all, *ar.run)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	total := len(all)
	if offset >= len(all) {
		return []domain.Run{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// Cancel stops a live run. The run finalizes as failed with the
// cancellation recorded; cancelling a finished run is a conflict.
func (s *RunService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	ar, ok := s.active[id]
	if ok && ar.run.State.Terminal() {
		s.mu.Unlock()
		return ErrRunFinished
	}
	s.mu.Unlock()

	if ok {
		ar.cancel()
		return nil
	}

	if s.runs != nil {
		run, err := s.runs.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if run != nil {
			return ErrRunFinished
		}
	}
	return ErrRunNotFound
}

// Delete removes a finished run and its frames.
func (s *RunService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	ar, ok := s.active[id]
	if ok && !ar.run.State.Terminal() {
		s.mu.Unlock()
		return ErrRunActive
	}
	delete(s.active, id)
	s.mu.Unlock()

	if s.runs == nil {
		if !ok {
			return ErrRunNotFound
		}
		return nil
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run == nil && !ok {
		return ErrRunNotFound
	}
	if s.frames != nil {
		if err := s.frames.DeleteByRun(ctx, id); err != nil {
			return err
		}
	}
	return s.runs.Delete(ctx, id)
}

// ListFrames pages through a run's archived frames, geometry omitted.
func (s *RunService) ListFrames(ctx context.Context, runID string, limit, offset int) ([]domain.Frame, int, error) {
	if s.frames == nil {
		return nil, 0, ErrNoArchive
	}
	run, err := s.Get(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	if run == nil {
		return nil, 0, ErrRunNotFound
	}
	return s.frames.ListByRun(ctx, runID, limit, offset)
}

// GetFrame returns one archived frame with its geometry, nil when the
// step was never emitted.
func (s *RunService) GetFrame(ctx context.Context, runID string, step int) (*domain.Frame, error) {
	if s.frames == nil {
		return nil, ErrNoArchive
	}
	return s.frames.GetByStep(ctx, runID, step)
}

// Shutdown cancels every live run and waits for them to wind down or the
// context to expire.
func (s *RunService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	waiting := make([]*activeRun, 0, len(s.active))
	for _, ar := range s.active {
		ar.cancel()
		waiting = append(waiting, ar)
	}
	s.mu.Unlock()

	for _, ar := range waiting {
		select {
		case <-ar.done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *RunService) snapshot(ar *activeRun) *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *ar.run
	return &snap
}
