package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/core/usecases"
)

// SimulationActivities holds the activity implementations for the
// simulation workflow. Runs must be configured; Frames and Pub may be nil.
type SimulationActivities struct {
	Land   ports.LandProvider
	Runs   ports.RunRepository
	Frames ports.FrameRepository
	Pub    ports.EventPublisher
}

// CreateRun registers the run record and returns its total step count.
// Re-running for an existing ID is a no-op, so activity retries after a
// half-applied attempt stay safe.
func (a *SimulationActivities) CreateRun(ctx context.Context, runID string, cfg domain.RunConfig) (int, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	existing, err := a.Runs.GetByID(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("look up run %s: %w", runID, err)
	}
	if existing != nil {
		return existing.Steps, nil
	}

	now := time.Now().UTC()
	run := &domain.Run{
		ID:        runID,
		Config:    cfg,
		State:     domain.RunStateStepping,
		Steps:     cfg.Steps(),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := a.Runs.Create(ctx, run); err != nil {
		return 0, fmt.Errorf("create run %s: %w", runID, err)
	}
	a.publishStatus(ctx, run)
	return run.Steps, nil
}

// RunChunk advances the run from step in.From through in.To, archiving and
// publishing frames along the way. Each chunk rebuilds the sequencer and
// fast-forwards to its range, so chunks can land on different workers.
func (a *SimulationActivities) RunChunk(ctx context.Context, in ChunkInput) (*ChunkResult, error) {
	run, err := a.Runs.GetByID(ctx, in.RunID)
	if err != nil {
		return nil, fmt.Errorf("look up run %s: %w", in.RunID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", in.RunID)
	}

	var required, optional []ports.FrameSink
	required = append(required, usecases.SinkFunc(func(ctx context.Context, f *domain.Frame) error {
		run.Step = f.Step
		run.DistanceMetres = f.DistanceMetres
		run.UpdatedAt = time.Now().UTC()
		if err := a.Runs.Update(ctx, run); err != nil {
			log.Printf("run %s progress update failed: %v", run.ID, err)
		}
		return nil
	}))
	if a.Frames != nil {
		required = append(required, usecases.SinkFunc(a.Frames.Insert))
	}
	if a.Pub != nil {
		optional = append(optional, usecases.SinkFunc(a.Pub.PublishFrame))
	}

	seq := usecases.NewSequencer(in.Config, usecases.SequencerDeps{
		RunID: in.RunID,
		Land:  a.Land,
		Sink:  &usecases.FanoutSink{Required: required, Optional: optional},
	})
	summary, err := seq.RunRange(ctx, in.From, in.To)
	if err != nil {
		return nil, fmt.Errorf("steps %d..%d: %w", in.From, in.To, err)
	}
	return &ChunkResult{
		Step:           summary.Steps,
		DistanceMetres: summary.DistanceMetres,
		Frames:         summary.Frames,
		DegradedSteps:  summary.DegradedSteps,
		Done:           seq.State() == domain.RunStateDone,
	}, nil
}

// CompleteRun finalizes the run record as done.
func (a *SimulationActivities) CompleteRun(ctx context.Context, runID string, res ChunkResult) error {
	return a.finishRun(ctx, runID, domain.RunStateDone, res.Step, res.DistanceMetres, "")
}

// FailRun finalizes the run record as failed.
func (a *SimulationActivities) FailRun(ctx context.Context, runID, cause string) error {
	return a.finishRun(ctx, runID, domain.RunStateFailed, 0, 0, cause)
}

// PurgeFrames drops the run's partial frame archive (saga compensation /
// rollback), so the archive only ever holds frames of runs that finished.
func (a *SimulationActivities) PurgeFrames(ctx context.Context, runID string) error {
	if a.Frames == nil {
		return nil
	}
	if err := a.Frames.DeleteByRun(ctx, runID); err != nil {
		return fmt.Errorf("purge frames of run %s: %w", runID, err)
	}
	log.Printf("Run %s frames purged (saga compensation)", runID)
	return nil
}

func (a *SimulationActivities) finishRun(ctx context.Context, runID string, state domain.RunState, step int, distance float64, cause string) error {
	run, err := a.Runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("look up run %s: %w", runID, err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	now := time.Now().UTC()
	run.State = state
	run.UpdatedAt = now
	run.CompletedAt = &now
	run.Error = cause
	if step > 0 {
		run.Step = step
		run.DistanceMetres = distance
	}
	if err := a.Runs.Update(ctx, run); err != nil {
		return fmt.Errorf("finalize run %s: %w", runID, err)
	}
	a.publishStatus(ctx, run)
	return nil
}

func (a *SimulationActivities) publishStatus(ctx context.Context, run *domain.Run) {
	if a.Pub == nil {
		return
	}
	if err := a.Pub.PublishRunStatus(ctx, run); err != nil {
		log.Printf("run %s status publish failed: %v", run.ID, err)
	}
}
