package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"predmaint/internal/model"
	"predmaint/internal/simulator"
	"predmaint/pkg/config"
	"predmaint/pkg/logger"
	queue "predmaint/pkg/queue/asynq"
	"predmaint/pkg/store/mysql"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ErrInvalidRunParams marks run submissions rejected by parameter validation,
// so the API layer can answer 400 instead of 500.
var ErrInvalidRunParams = errors.New("invalid run parameters")

// SimulationService manages dataset generation runs: accepting them over the
// API, executing them on the queue and exposing their progress and results.
type SimulationService struct {
	runRepo     runRepository
	eventRepo   failureEventRepository
	queue       runQueue
	broadcaster *ProgressBroadcaster
}

// NewSimulationService creates a new simulation service
func NewSimulationService(runRepo runRepository, eventRepo failureEventRepository, runQueue runQueue, broadcaster *ProgressBroadcaster) *SimulationService {
	return &SimulationService{
		runRepo:     runRepo,
		eventRepo:   eventRepo,
		queue:       runQueue,
		broadcaster: broadcaster,
	}
}

// CreateRun accepts a new simulation run. Parameters missing from the request
// fall back to the configured simulator defaults; the run is persisted as
// PENDING and handed to the queue.
func (s *SimulationService) CreateRun(ctx context.Context, req *model.CreateRunRequest) (*model.CreateRunResponse, error) {
	params, err := s.resolveParams(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	now := time.Now()

	run := &model.SimulationRun{
		ID:        runID,
		Status:    model.RunStatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.runRepo.Create(ctx, mysql.FromRunDomain(run)); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if err := s.queue.EnqueueRun(ctx, runID); err != nil {
		s.markRunFailed(ctx, runID, params.Machines, fmt.Errorf("failed to enqueue run: %w", err))
		return nil, fmt.Errorf("failed to enqueue run: %w", err)
	}

	logger.InfoCtx(ctx, "simulation run submitted, run_id: %s, machines: %d, days: %d, step_minutes: %d, seed: %d",
		runID, params.Machines, params.Days, params.StepMinutes, params.Seed)

	return &model.CreateRunResponse{
		ID:     runID,
		Status: model.RunStatusPending,
	}, nil
}

// resolveParams merges the request with the configured defaults. Zero means
// unset for the counts; Seed uses a pointer because seeding with zero is
// legitimate. Negative counts are rejected rather than defaulted.
func (s *SimulationService) resolveParams(req *model.CreateRunRequest) (model.RunParams, error) {
	cfg := config.GlobalConfig.Simulator

	params := model.RunParams{
		Machines:    cfg.Machines,
		Days:        cfg.Days,
		StepMinutes: cfg.StepMinutes,
		Seed:        cfg.Seed,
		Start:       simulator.DefaultStart,
	}

	if req == nil {
		return params, nil
	}

	if req.Machines < 0 {
		return model.RunParams{}, fmt.Errorf("%w: machines must be positive, got %d", ErrInvalidRunParams, req.Machines)
	}
	if req.Machines > 0 {
		params.Machines = req.Machines
	}

	if req.Days < 0 {
		return model.RunParams{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidRunParams, req.Days)
	}
	if req.Days > 0 {
		params.Days = req.Days
	}

	if req.StepMinutes < 0 {
		return model.RunParams{}, fmt.Errorf("%w: step_minutes must be positive, got %d", ErrInvalidRunParams, req.StepMinutes)
	}
	if req.StepMinutes > 0 {
		params.StepMinutes = req.StepMinutes
	}

	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	if req.Start != "" {
		start, err := time.ParseInLocation("2006-01-02", req.Start, time.UTC)
		if err != nil {
			return model.RunParams{}, fmt.Errorf("%w: invalid start date %q, expected YYYY-MM-DD", ErrInvalidRunParams, req.Start)
		}
		params.Start = start
	}

	return params, nil
}

// GetRun retrieves one run. Returns (nil, nil) when the run does not exist.
func (s *SimulationService) GetRun(ctx context.Context, runID string) (*model.SimulationRun, error) {
	row, err := s.runRepo.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return mysql.ToRunDomain(row), nil
}

// ListRuns retrieves runs newest first
func (s *SimulationService) ListRuns(ctx context.Context, limit, offset int) ([]*model.SimulationRun, error) {
	rows, err := s.runRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	runs := make([]*model.SimulationRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, mysql.ToRunDomain(row))
	}
	return runs, nil
}

// ListFailureEvents retrieves a run's persisted failure events ordered by
// machine then time
func (s *SimulationService) ListFailureEvents(ctx context.Context, runID string, limit, offset int) ([]*model.FailureEvent, error) {
	rows, err := s.eventRepo.ListByRun(ctx, runID, limit, offset)
	if err != nil {
		return nil, err
	}

	events := make([]*model.FailureEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, mysql.ToFailureEventDomain(row))
	}
	return events, nil
}

// RunStats counts runs per status and reports the queue backlog. A broker that
// cannot be inspected degrades the backlog to zero instead of failing the
// whole call; the database counts are the authoritative part.
func (s *SimulationService) RunStats(ctx context.Context) (*model.RunStats, error) {
	stats := &model.RunStats{}

	counts := []struct {
		status string
		dest   *int64
	}{
		{string(model.RunStatusPending), &stats.Pending},
		{string(model.RunStatusRunning), &stats.Running},
		{string(model.RunStatusCompleted), &stats.Completed},
		{string(model.RunStatusFailed), &stats.Failed},
	}
	for _, c := range counts {
		n, err := s.runRepo.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s runs: %w", c.status, err)
		}
		*c.dest = n
	}

	queued, err := s.queue.PendingRunCount()
	if err != nil {
		logger.WarnCtx(ctx, "failed to inspect queue backlog: %v", err)
	} else {
		stats.QueuedTasks = queued
	}

	return stats, nil
}

// SubscribeProgress registers a progress stream subscriber for one run
func (s *SimulationService) SubscribeProgress(runID string) (<-chan model.RunProgress, func()) {
	return s.broadcaster.Subscribe(runID)
}

// HandleRunTask is the queue handler for simulation run tasks
func (s *SimulationService) HandleRunTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal run payload: %w", err)
	}
	return s.ExecuteRun(ctx, payload.RunID)
}

// ExecuteRun generates the dataset for one run. It claims the run, streams
// progress while the machines are simulated, writes the CSV and commits the
// failure events and final counters in one transaction. Returning an error
// leaves the run FAILED and lets the queue retry it.
func (s *SimulationService) ExecuteRun(ctx context.Context, runID string) error {
	row, err := s.runRepo.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if row == nil {
		logger.WarnCtx(ctx, "run no longer exists, dropping task, run_id: %s", runID)
		return nil
	}

	if row.Status == string(model.RunStatusCompleted) {
		logger.InfoCtx(ctx, "run already completed, dropping task, run_id: %s", runID)
		return nil
	}

	if err := s.claimRun(ctx, row); err != nil {
		return err
	}

	now := time.Now()
	if err := s.runRepo.UpdateFields(ctx, runID, map[string]interface{}{
		"started_at":    now,
		"completed_at":  nil,
		"updated_at":    now,
		"machines_done": 0,
		"error":         "",
	}); err != nil {
		return fmt.Errorf("failed to initialize run: %w", err)
	}

	opts := simulator.Options{
		Machines: row.Machines,
		Days:     row.Days,
		Step:     time.Duration(row.StepMinutes) * time.Minute,
		Seed:     row.Seed,
		Start:    row.StartTime,
		Workers:  config.GlobalConfig.Simulator.Workers,
		// Progress writes double as heartbeats: they refresh updated_at so
		// the stale run reaper leaves a long but live run alone.
		OnProgress: func(done, total int) {
			if err := s.runRepo.UpdateFields(ctx, runID, map[string]interface{}{
				"machines_done": done,
				"updated_at":    time.Now(),
			}); err != nil {
				logger.WarnCtx(ctx, "failed to persist run progress, run_id: %s, error: %v", runID, err)
			}
			s.broadcaster.Publish(model.RunProgress{
				RunID:         runID,
				Status:        model.RunStatusRunning,
				MachinesDone:  done,
				MachinesTotal: total,
			})
		},
	}

	logger.InfoCtx(ctx, "simulation run started, run_id: %s, machines: %d, days: %d, step: %s",
		runID, opts.Machines, opts.Days, opts.Step)

	rows, err := simulator.Generate(ctx, opts)
	if err != nil {
		s.markRunFailed(ctx, runID, opts.Machines, fmt.Errorf("generation failed: %w", err))
		return fmt.Errorf("generation failed: %w", err)
	}

	outputPath := filepath.Join(config.GlobalConfig.Simulator.OutputDir, fmt.Sprintf("run-%s.csv", runID))
	if err := simulator.WriteCSV(outputPath, rows); err != nil {
		s.markRunFailed(ctx, runID, opts.Machines, fmt.Errorf("failed to write dataset: %w", err))
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	events := simulator.FailureEvents(rows)
	completedAt := time.Now()

	err = s.runRepo.ExecTx(ctx, func(txCtx context.Context) error {
		// A retried run replaces the previous attempt's events wholesale.
		if err := s.eventRepo.DeleteByRun(txCtx, runID); err != nil {
			return err
		}
		if err := s.eventRepo.BatchCreate(txCtx, buildEventRows(runID, events, completedAt)); err != nil {
			return err
		}
		return s.runRepo.UpdateFields(txCtx, runID, map[string]interface{}{
			"status":         string(model.RunStatusCompleted),
			"machines_done":  opts.Machines,
			"rows_written":   int64(len(rows)),
			"failure_events": int64(len(events)),
			"output_path":    outputPath,
			"completed_at":   completedAt,
			"updated_at":     completedAt,
		})
	})
	if err != nil {
		s.markRunFailed(ctx, runID, opts.Machines, fmt.Errorf("failed to commit run results: %w", err))
		return fmt.Errorf("failed to commit run results: %w", err)
	}

	s.broadcaster.Publish(model.RunProgress{
		RunID:         runID,
		Status:        model.RunStatusCompleted,
		MachinesDone:  opts.Machines,
		MachinesTotal: opts.Machines,
	})

	logger.InfoCtx(ctx, "simulation run completed, run_id: %s, rows: %d, failure_events: %d, output: %s",
		runID, len(rows), len(events), outputPath)

	return nil
}

// claimRun moves the run into RUNNING. PENDING is the normal path, FAILED is
// a queue retry after a failed attempt, RUNNING means the previous attempt
// died mid-run; the unique task id guarantees at most one live handler per
// run, so reclaiming is safe.
func (s *SimulationService) claimRun(ctx context.Context, row *mysql.SimulationRun) error {
	switch row.Status {
	case string(model.RunStatusPending):
		return s.runRepo.UpdateStatus(ctx, row.RunID, string(model.RunStatusPending), string(model.RunStatusRunning))
	case string(model.RunStatusFailed):
		logger.InfoCtx(ctx, "retrying failed run, run_id: %s, previous error: %s", row.RunID, row.Error)
		return s.runRepo.UpdateStatus(ctx, row.RunID, string(model.RunStatusFailed), string(model.RunStatusRunning))
	case string(model.RunStatusRunning):
		logger.WarnCtx(ctx, "reclaiming run left RUNNING by a previous attempt, run_id: %s", row.RunID)
		return nil
	default:
		return nil
	}
}

// markRunFailed records the failure and pushes a terminal progress frame
func (s *SimulationService) markRunFailed(ctx context.Context, runID string, machines int, cause error) {
	now := time.Now()
	if err := s.runRepo.UpdateFields(ctx, runID, map[string]interface{}{
		"status":       string(model.RunStatusFailed),
		"error":        cause.Error(),
		"completed_at": now,
		"updated_at":   now,
	}); err != nil {
		logger.ErrorCtx(ctx, "failed to mark run failed, run_id: %s, error: %v", runID, err)
	}

	s.broadcaster.Publish(model.RunProgress{
		RunID:         runID,
		Status:        model.RunStatusFailed,
		MachinesTotal: machines,
		Error:         cause.Error(),
	})

	logger.ErrorCtx(ctx, "simulation run failed, run_id: %s, error: %v", runID, cause)
}

func buildEventRows(runID string, events []simulator.FailureEvent, createdAt time.Time) []*mysql.FailureEvent {
	rows := make([]*mysql.FailureEvent, 0, len(events))
	for _, e := range events {
		rows = append(rows, &mysql.FailureEvent{
			RunID:       runID,
			MachineID:   e.MachineID,
			EventTime:   e.Timestamp,
			HealthScore: e.HealthScore,
			CreatedAt:   createdAt,
		})
	}
	return rows
}
