package asynq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"predmaint/pkg/config"
	"predmaint/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	// TypeSimulationRun is the task type for executing one simulation run.
	TypeSimulationRun = "simulation:run"
)

// RunPayload is the body of a simulation run task. The run record itself
// lives in MySQL; the queue only carries the id.
type RunPayload struct {
	RunID string `json:"run_id"`
}

// Manager queue manager
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewManager creates queue manager
func NewManager(cfg *config.Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	mux := asynq.NewServeMux()

	return &Manager{
		client: client,
		server: server,
		mux:    mux,
	}, nil
}

// EnqueueRun enqueues a simulation run for background execution. The asynq
// task id equals the run id, so re-submitting an id that is still queued is
// rejected by the broker rather than executed twice.
func (m *Manager) EnqueueRun(ctx context.Context, runID string) error {
	payload, err := json.Marshal(RunPayload{RunID: runID})
	if err != nil {
		return fmt.Errorf("failed to marshal run payload: %w", err)
	}

	task := asynq.NewTask(TypeSimulationRun, payload)

	opts := []asynq.Option{
		asynq.TaskID(runID),
		asynq.Timeout(time.Duration(config.GlobalConfig.Queue.RunTimeoutSeconds) * time.Second),
		asynq.MaxRetry(config.GlobalConfig.Queue.MaxRetry),
	}

	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue run: %w", err)
	}

	logger.InfoCtx(ctx, "simulation run enqueued, run_id: %s, queue: %s", runID, info.Queue)

	return nil
}

// RegisterHandler registers a task handler
func (m *Manager) RegisterHandler(pattern string, handler asynq.Handler) {
	m.mux.Handle(pattern, handler)
}

// Start starts the queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting queue server")
	return m.server.Start(m.mux)
}

// Stop stops the queue processor, letting in-flight runs finish
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes the enqueue client
func (m *Manager) Close() error {
	return m.client.Close()
}

// PendingRunCount retrieves the number of queued, not yet started runs
func (m *Manager) PendingRunCount() (int, error) {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     config.GlobalConfig.Redis.Addr,
		Password: config.GlobalConfig.Redis.Password,
		DB:       config.GlobalConfig.Redis.DB,
	})
	defer inspector.Close()

	stats, err := inspector.GetQueueInfo("default")
	if err != nil {
		return 0, err
	}

	return stats.Pending, nil
}
