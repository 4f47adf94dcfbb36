package model

import "time"

// RunStatus simulation run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"   // accepted, waiting for a queue worker
	RunStatusRunning   RunStatus = "RUNNING"   // generation in progress
	RunStatusCompleted RunStatus = "COMPLETED" // dataset written
	RunStatusFailed    RunStatus = "FAILED"    // generation aborted, Error is set
)

// RunParams are the resolved generation parameters of one simulation run.
type RunParams struct {
	Machines    int       `json:"machines"`
	Days        int       `json:"days"`
	StepMinutes int       `json:"step_minutes"`
	Seed        int64     `json:"seed"`
	Start       time.Time `json:"start"`
}

// SimulationRun is one server-managed generation run.
type SimulationRun struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	Params        RunParams  `json:"params"`
	MachinesDone  int        `json:"machines_done"`
	Rows          int64      `json:"rows"`
	FailureEvents int64      `json:"failure_events"`
	OutputPath    string     `json:"output_path,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateRunRequest submits a new run. Every field is optional; omitted fields
// fall back to the configured simulator defaults. Seed is a pointer because
// zero is a legitimate seed, distinct from unset.
type CreateRunRequest struct {
	Machines    int    `json:"machines,omitempty"`
	Days        int    `json:"days,omitempty"`
	StepMinutes int    `json:"step_minutes,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	Start       string `json:"start,omitempty"` // YYYY-MM-DD
}

// CreateRunResponse acknowledges an accepted run.
type CreateRunResponse struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}

// FailureEvent is one persisted health-threshold crossing of a run.
type FailureEvent struct {
	MachineID   int       `json:"machine_id"`
	Timestamp   time.Time `json:"timestamp"`
	HealthScore float64   `json:"health_score"`
}

// RunStats aggregates the run table by status, plus the broker-side backlog.
// QueuedTasks can lag Pending: a run is PENDING from the moment it is accepted,
// queued only once the enqueue succeeded.
type RunStats struct {
	Pending     int64 `json:"pending"`
	Running     int64 `json:"running"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
	QueuedTasks int   `json:"queued_tasks"`
}

// RunProgress is one progress frame of the run stream.
type RunProgress struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	MachinesDone  int       `json:"machines_done"`
	MachinesTotal int       `json:"machines_total"`
	Error         string    `json:"error,omitempty"`
}
