package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"predmaint/pkg/logger"
	"predmaint/pkg/store/mysql"
)

// purgeBatchSize bounds one retention pass over the runs table
const purgeBatchSize = 200

// staleRunReason is recorded as the error of runs failed by the reaper
const staleRunReason = "run reaped: no progress heartbeat from worker"

// FailStaleRuns marks PENDING and RUNNING runs without a heartbeat for
// olderThan as FAILED and returns how many runs were reaped. Crashed workers
// leave runs behind in those states; progress writes refresh updated_at, so a
// long but live run is never reaped.
func (s *SimulationService) FailStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	before := time.Now().Add(-olderThan)
	reaped, err := s.runRepo.MarkStaleRunsFailed(ctx, before, staleRunReason)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale runs: %w", err)
	}
	if reaped > 0 {
		logger.InfoCtx(ctx, "reaped stale runs, count: %d, no heartbeat since: %s",
			reaped, before.Format(time.RFC3339))
	}
	return reaped, nil
}

// PurgeFinishedRuns deletes COMPLETED and FAILED runs created before the given
// time, together with their failure events and output files. Returns how many
// runs were purged.
func (s *SimulationService) PurgeFinishedRuns(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	for {
		runs, err := s.runRepo.ListFinishedBefore(ctx, before, purgeBatchSize)
		if err != nil {
			return purged, fmt.Errorf("failed to list expired runs: %w", err)
		}
		if len(runs) == 0 {
			return purged, nil
		}

		for _, run := range runs {
			if err := s.purgeRun(ctx, run); err != nil {
				return purged, err
			}
			purged++
		}

		if len(runs) < purgeBatchSize {
			return purged, nil
		}
		time.Sleep(100 * time.Millisecond) // avoid overwhelming DB
	}
}

// purgeRun removes one run's rows transactionally, then its output file. A
// missing file is not an error: FAILED runs never wrote one.
func (s *SimulationService) purgeRun(ctx context.Context, run *mysql.SimulationRun) error {
	err := s.runRepo.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.eventRepo.DeleteByRun(txCtx, run.RunID); err != nil {
			return err
		}
		return s.runRepo.Delete(txCtx, run.RunID)
	})
	if err != nil {
		return fmt.Errorf("failed to purge run %s: %w", run.RunID, err)
	}

	if run.OutputPath != "" {
		if err := os.Remove(run.OutputPath); err != nil && !os.IsNotExist(err) {
			logger.WarnCtx(ctx, "failed to remove output of purged run, run_id: %s, path: %s, error: %v",
				run.RunID, run.OutputPath, err)
		}
	}
	return nil
}
