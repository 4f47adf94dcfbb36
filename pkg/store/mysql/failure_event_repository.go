package mysql

import (
	"context"
	"fmt"
)

// FailureEventRepository handles failure event persistence in MySQL
type FailureEventRepository struct {
	ds *Datastore
}

// NewFailureEventRepository creates a new failure event repository
func NewFailureEventRepository(ds *Datastore) *FailureEventRepository {
	return &FailureEventRepository{ds: ds}
}

// BatchCreate inserts events in chunks. Called once per completed run.
func (r *FailureEventRepository) BatchCreate(ctx context.Context, events []*FailureEvent) error {
	if len(events) == 0 {
		return nil
	}

	if err := r.ds.DB(ctx).CreateInBatches(events, 500).Error; err != nil {
		return fmt.Errorf("failed to insert failure events: %w", err)
	}
	return nil
}

// ListByRun retrieves a run's events ordered by machine then event time,
// matching the dataset's own ordering.
func (r *FailureEventRepository) ListByRun(ctx context.Context, runID string, limit, offset int) ([]*FailureEvent, error) {
	if limit <= 0 {
		limit = 500
	}

	var events []*FailureEvent
	err := r.ds.DB(ctx).
		Where("run_id = ?", runID).
		Order("machine_id ASC, event_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list failure events: %w", err)
	}
	return events, nil
}

// CountByRun counts a run's events
func (r *FailureEventRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.ds.DB(ctx).Model(&FailureEvent{}).Where("run_id = ?", runID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failure events: %w", err)
	}
	return count, nil
}

// DeleteByRun removes a run's events. A retried run deletes the partial
// events of the failed attempt before inserting its own.
func (r *FailureEventRepository) DeleteByRun(ctx context.Context, runID string) error {
	if err := r.ds.DB(ctx).Where("run_id = ?", runID).Delete(&FailureEvent{}).Error; err != nil {
		return fmt.Errorf("failed to delete failure events: %w", err)
	}
	return nil
}
