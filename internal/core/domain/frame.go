package domain

import "time"

// Frame is one emitted snapshot of the reachability front.
type Frame struct {
	RunID          string        `json:"run_id,omitempty"`
	Step           int           `json:"step"`
	Elapsed        time.Duration `json:"elapsed"`
	DistanceMetres float64       `json:"distance_metres"`
	Region         Region        `json:"region,omitempty"`
	AreaKm2        float64       `json:"area_km2"`
	Vertices       int           `json:"vertices"`
	Clipped        bool          `json:"clipped"`
	Simplified     bool          `json:"simplified"`
	Degraded       bool          `json:"degraded"`
	EmittedAt      time.Time     `json:"emitted_at"`
}

// ElapsedHours is the flight time in fractional hours, as shown on plots.
func (f Frame) ElapsedHours() float64 {
	return f.Elapsed.Hours()
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunStateInit     RunState = "init"
	RunStateStepping RunState = "stepping"
	RunStateDone     RunState = "done"
	RunStateFailed   RunState = "failed"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// Run is the persisted record of a reachability run.
type Run struct {
	ID             string     `json:"id"`
	Config         RunConfig  `json:"config"`
	State          RunState   `json:"state"`
	Step           int        `json:"step"`
	Steps          int        `json:"steps"`
	DistanceMetres float64    `json:"distance_metres"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunSummary reports what a completed sequencing loop actually did.
type RunSummary struct {
	Steps          int           `json:"steps"`
	Frames         int           `json:"frames"`
	DegradedSteps  int           `json:"degraded_steps"`
	DistanceMetres float64       `json:"distance_metres"`
	Elapsed        time.Duration `json:"elapsed"`
	Final          Region        `json:"-"`
}
