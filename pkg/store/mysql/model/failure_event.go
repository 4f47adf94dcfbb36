package model

import "time"

// FailureEvent MySQL model for the failure_events table. One row per
// health-threshold crossing of a completed run. event_time carries the grid
// instant, not the insert time.
type FailureEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID       string    `gorm:"column:run_id;type:varchar(64);not null;index:idx_run_machine,priority:1" json:"run_id"`
	MachineID   int       `gorm:"column:machine_id;not null;index:idx_run_machine,priority:2" json:"machine_id"`
	EventTime   time.Time `gorm:"column:event_time;type:datetime(3);not null" json:"event_time"`
	HealthScore float64   `gorm:"column:health_score;not null" json:"health_score"`
	CreatedAt   time.Time `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
}

// TableName specifies the table name for FailureEvent
func (FailureEvent) TableName() string {
	return "failure_events"
}
