package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Guymer/gft/internal/core/domain"
)

// SimulationInput is the input for the simulation workflow.
type SimulationInput struct {
	RunID      string           `json:"run_id"`
	Config     domain.RunConfig `json:"config"`
	ChunkSteps int              `json:"chunk_steps"`
}

// ChunkInput names the step range one activity invocation advances.
type ChunkInput struct {
	RunID  string           `json:"run_id"`
	Config domain.RunConfig `json:"config"`
	From   int              `json:"from"`
	To     int              `json:"to"`
}

// ChunkResult reports where a chunk left the run.
type ChunkResult struct {
	Step           int     `json:"step"`
	DistanceMetres float64 `json:"distance_metres"`
	Frames         int     `json:"frames"`
	DegradedSteps  int     `json:"degraded_steps"`
	Done           bool    `json:"done"`
}

// SimulationWorkflow drives a reachability run as a sequence of bounded
// stepping chunks, so a worker crash costs at most one chunk of work. If a
// chunk fails after its retries, the partial frame archive is purged and
// the run record marked failed (saga compensation).
func SimulationWorkflow(ctx workflow.Context, input SimulationInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting simulation workflow", "runID", input.RunID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: register the run record
	var total int
	err := workflow.ExecuteActivity(ctx, "CreateRun", input.RunID, input.Config).Get(ctx, &total)
	if err != nil {
		return err
	}

	chunk := input.ChunkSteps
	if chunk <= 0 {
		chunk = 24
	}

	// Step 2: advance the front chunk by chunk
	var res ChunkResult
	for from := 1; from <= total && !res.Done; from += chunk {
		to := from + chunk - 1
		if to > total {
			to = total
		}
		err = workflow.ExecuteActivity(ctx, "RunChunk", ChunkInput{
			RunID:  input.RunID,
			Config: input.Config,
			From:   from,
			To:     to,
		}).Get(ctx, &res)
		if err != nil {
			logger.Warn("chunk failed, compensating", "from", from, "to", to, "error", err)
			// Compensate on a disconnected context so purge and fail
			// still run when the workflow itself was cancelled.
			dctx, cancel := workflow.NewDisconnectedContext(ctx)
			defer cancel()
			_ = workflow.ExecuteActivity(dctx, "PurgeFrames", input.RunID).Get(dctx, nil)
			_ = workflow.ExecuteActivity(dctx, "FailRun", input.RunID, err.Error()).Get(dctx, nil)
			return err
		}
		logger.Info("chunk complete",
			"step", res.Step, "distanceKm", res.DistanceMetres/1000, "done", res.Done)
	}

	// Step 3: finalize the run record
	err = workflow.ExecuteActivity(ctx, "CompleteRun", input.RunID, res).Get(ctx, nil)
	if err != nil {
		return err
	}

	logger.Info("Simulation finished", "runID", input.RunID, "steps", res.Step)
	return nil
}

// WorkflowID derives the deterministic workflow ID for a run, so starting
// the same run twice collapses onto one execution.
func WorkflowID(runID string) string {
	return "simulation-" + runID
}

// Starter launches simulation workflows on a Temporal task queue. The API
// server holds one; the actual stepping happens on workers.
type Starter struct {
	Client     client.Client
	TaskQueue  string
	ChunkSteps int
}

// StartSimulation validates the config and hands the run to Temporal. The
// returned workflow ID can be used to observe or cancel the execution.
func (s *Starter) StartSimulation(ctx context.Context, runID string, cfg domain.RunConfig) (string, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: s.TaskQueue,
	}
	we, err := s.Client.ExecuteWorkflow(ctx, opts, SimulationWorkflow, SimulationInput{
		RunID:      runID,
		Config:     cfg,
		ChunkSteps: s.ChunkSteps,
	})
	if err != nil {
		return "", fmt.Errorf("start simulation workflow: %w", err)
	}
	return we.GetID(), nil
}

// Cancel requests cancellation of a run's workflow. The empty second
// argument targets the latest Temporal execution of that workflow ID.
func (s *Starter) Cancel(ctx context.Context, runID string) error {
	return s.Client.CancelWorkflow(ctx, WorkflowID(runID), "")
}
