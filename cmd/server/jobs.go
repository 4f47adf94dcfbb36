package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"predmaint/internal/jobs"
	"predmaint/internal/service"
	"predmaint/pkg/lock"
	"predmaint/pkg/logger"
)

func (app *Application) initJobs() error {
	if app.simulationService == nil {
		logger.WarnCtx(app.ctx, "Service layer not fully initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)

	jobsCfg := app.config.Jobs
	reapInterval := time.Duration(jobsCfg.ReapIntervalSeconds) * time.Second
	staleAfter := time.Duration(jobsCfg.StaleRunAfterMinutes) * time.Minute

	// Create distributed locks to prevent multiple replicas from executing background cleanup tasks simultaneously
	// If Redis is unavailable, locks will automatically downgrade to single-instance mode
	var redisClient *redis.Client
	if app.redisClient != nil {
		redisClient = app.redisClient.GetClient()
	}

	reaperLock := lock.NewRedisDistributedLock(redisClient, "reaper:stale-run-lock")
	manager.Register(newStaleRunReaperJob(reapInterval, staleAfter, app.simulationService, reaperLock))

	if jobsCfg.RetentionDays > 0 {
		retentionLock := lock.NewRedisDistributedLock(redisClient, "cleanup:run-retention-lock")
		manager.Register(newRunRetentionJob(24*time.Hour, jobsCfg.RetentionDays, app.simulationService, retentionLock))
	} else {
		logger.InfoCtx(app.ctx, "run retention disabled (retention_days: 0), finished runs are kept forever")
	}

	app.jobsManager = manager
	return nil
}

// staleRunReaperJob fails runs whose worker died without reporting progress.
type staleRunReaperJob struct {
	interval          time.Duration
	staleAfter        time.Duration
	simulationService *service.SimulationService
	distributedLock   lock.DistributedLock
}

func newStaleRunReaperJob(interval, staleAfter time.Duration, svc *service.SimulationService, l lock.DistributedLock) jobs.Job {
	return &staleRunReaperJob{
		interval:          interval,
		staleAfter:        staleAfter,
		simulationService: svc,
		distributedLock:   l,
	}
}

func (j *staleRunReaperJob) Name() string {
	return "stale-run-reaper"
}

func (j *staleRunReaperJob) Interval() time.Duration {
	return j.interval
}

func (j *staleRunReaperJob) Run(ctx context.Context) error {
	if j.simulationService == nil {
		return fmt.Errorf("simulation service not configured")
	}

	// Try to acquire distributed lock
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the stale run reaper, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.DebugCtx(ctx, "running stale run reaper job")
	_, err := j.simulationService.FailStaleRuns(ctx, j.staleAfter)
	return err
}

// runRetentionJob purges finished runs past the retention window once a day.
type runRetentionJob struct {
	interval          time.Duration
	retentionDays     int
	simulationService *service.SimulationService
	distributedLock   lock.DistributedLock
}

func newRunRetentionJob(interval time.Duration, retentionDays int, svc *service.SimulationService, l lock.DistributedLock) jobs.Job {
	return &runRetentionJob{
		interval:          interval,
		retentionDays:     retentionDays,
		simulationService: svc,
		distributedLock:   l,
	}
}

func (j *runRetentionJob) Name() string { return "run-retention-cleanup" }

func (j *runRetentionJob) Interval() time.Duration { return j.interval }

func (j *runRetentionJob) AlignToInterval() bool { return true }

func (j *runRetentionJob) Run(ctx context.Context) error {
	if j.simulationService == nil {
		return nil
	}
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	before := time.Now().AddDate(0, 0, -j.retentionDays)
	purged, err := j.simulationService.PurgeFinishedRuns(ctx, before)
	if err != nil {
		return err
	}
	if purged > 0 {
		logger.InfoCtx(ctx, "purged %d finished runs (older than %d days)", purged, j.retentionDays)
	}
	return nil
}
