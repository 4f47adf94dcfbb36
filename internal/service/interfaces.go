package service

import (
	"context"
	"time"

	"predmaint/pkg/queue/asynq"
	"predmaint/pkg/store/mysql"
)

type runRepository interface {
	Create(ctx context.Context, run *mysql.SimulationRun) error
	Get(ctx context.Context, runID string) (*mysql.SimulationRun, error)
	List(ctx context.Context, limit, offset int) ([]*mysql.SimulationRun, error)
	UpdateFields(ctx context.Context, runID string, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, runID string, fromStatus, toStatus string) error
	MarkStaleRunsFailed(ctx context.Context, before time.Time, reason string) (int64, error)
	ListFinishedBefore(ctx context.Context, before time.Time, limit int) ([]*mysql.SimulationRun, error)
	Delete(ctx context.Context, runID string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type failureEventRepository interface {
	BatchCreate(ctx context.Context, events []*mysql.FailureEvent) error
	ListByRun(ctx context.Context, runID string, limit, offset int) ([]*mysql.FailureEvent, error)
	CountByRun(ctx context.Context, runID string) (int64, error)
	DeleteByRun(ctx context.Context, runID string) error
}

type runQueue interface {
	EnqueueRun(ctx context.Context, runID string) error
	PendingRunCount() (int, error)
}

// compile-time assertions

var (
	_ runRepository          = (*mysql.RunRepository)(nil)
	_ failureEventRepository = (*mysql.FailureEventRepository)(nil)
	_ runQueue               = (*asynq.Manager)(nil)
)
