package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RunRepository handles simulation run persistence in MySQL
type RunRepository struct {
	ds *Datastore
}

// NewRunRepository creates a new simulation run repository
func NewRunRepository(ds *Datastore) *RunRepository {
	return &RunRepository{ds: ds}
}

// Create creates a new run record
func (r *RunRepository) Create(ctx context.Context, run *SimulationRun) error {
	return r.ds.DB(ctx).Create(run).Error
}

// Get retrieves a run by its external run_id. Returns (nil, nil) when the run
// does not exist so callers can answer 404 without unwrapping gorm errors.
func (r *RunRepository) Get(ctx context.Context, runID string) (*SimulationRun, error) {
	var run SimulationRun
	err := r.ds.DB(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// List retrieves runs newest first
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*SimulationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []*SimulationRun
	err := r.ds.DB(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// UpdateFields updates specific fields of a run by run_id
func (r *RunRepository) UpdateFields(ctx context.Context, runID string, updates map[string]interface{}) error {
	return r.ds.DB(ctx).Model(&SimulationRun{}).
		Where("run_id = ?", runID).
		Updates(updates).Error
}

// UpdateStatus updates run status with an atomic state transition (CAS).
// Returns an error when the run is missing or its status no longer matches
// fromStatus, so concurrent workers cannot both claim the same run.
func (r *RunRepository) UpdateStatus(ctx context.Context, runID string, fromStatus, toStatus string) error {
	result := r.ds.DB(ctx).Model(&SimulationRun{}).
		Where("run_id = ? AND status = ?", runID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return fmt.Errorf("failed to update run status: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found or invalid status transition: run_id=%s, from=%s, to=%s", runID, fromStatus, toStatus)
	}

	return nil
}

// CountByStatus counts runs in one status
func (r *RunRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&SimulationRun{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// MarkStaleRunsFailed fails every PENDING or RUNNING run not touched since
// before. Used by the reaper to recover runs orphaned by a crashed worker;
// returns how many runs were failed.
func (r *RunRepository) MarkStaleRunsFailed(ctx context.Context, before time.Time, reason string) (int64, error) {
	now := time.Now()
	result := r.ds.DB(ctx).Model(&SimulationRun{}).
		Where("status IN (?, ?) AND updated_at < ?", "PENDING", "RUNNING", before).
		Updates(map[string]interface{}{
			"status":       "FAILED",
			"error":        reason,
			"updated_at":   now,
			"completed_at": now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListFinishedBefore retrieves up to limit COMPLETED or FAILED runs created
// before the given time, oldest first. Used by the retention job, which needs
// the rows (not just a count) so it can remove each run's output file too.
func (r *RunRepository) ListFinishedBefore(ctx context.Context, before time.Time, limit int) ([]*SimulationRun, error) {
	var runs []*SimulationRun
	err := r.ds.DB(ctx).
		Where("status IN (?, ?) AND created_at < ?", "COMPLETED", "FAILED", before).
		Order("id ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list finished runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run row by run_id
func (r *RunRepository) Delete(ctx context.Context, runID string) error {
	return r.ds.DB(ctx).Where("run_id = ?", runID).Delete(&SimulationRun{}).Error
}

// ExecTx executes a function within a transaction so run and failure event
// writes can commit atomically.
func (r *RunRepository) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.ds.ExecTx(ctx, fn)
}
