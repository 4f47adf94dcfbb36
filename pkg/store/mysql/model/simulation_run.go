package model

import "time"

// SimulationRun MySQL model for the simulation_runs table. One row per
// server-managed generation run; run_id is the external uuid.
type SimulationRun struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string     `gorm:"column:run_id;type:varchar(64);not null;uniqueIndex:idx_run_id_unique" json:"run_id"`
	Status        string     `gorm:"column:status;type:varchar(50);not null;index:idx_status" json:"status"`
	Machines      int        `gorm:"column:machines;not null" json:"machines"`
	Days          int        `gorm:"column:days;not null" json:"days"`
	StepMinutes   int        `gorm:"column:step_minutes;not null" json:"step_minutes"`
	Seed          int64      `gorm:"column:seed;not null" json:"seed"`
	StartTime     time.Time  `gorm:"column:start_time;type:datetime(3);not null" json:"start_time"`
	MachinesDone  int        `gorm:"column:machines_done;not null;default:0" json:"machines_done"`
	RowsWritten   int64      `gorm:"column:rows_written;not null;default:0" json:"rows_written"`
	FailureEvents int64      `gorm:"column:failure_events;not null;default:0" json:"failure_events"`
	OutputPath    string     `gorm:"column:output_path;type:varchar(1000)" json:"output_path"`
	Error         string     `gorm:"column:error;type:text" json:"error"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
	StartedAt     *time.Time `gorm:"column:started_at;type:datetime(3)" json:"started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at;type:datetime(3)" json:"completed_at"`
}

// TableName specifies the table name for SimulationRun
func (SimulationRun) TableName() string {
	return "simulation_runs"
}
