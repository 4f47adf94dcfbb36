package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"predmaint/app/handler"
	"predmaint/internal/model"
	"predmaint/internal/service"
	"predmaint/pkg/artifact"
	"predmaint/pkg/config"
	"predmaint/pkg/store/mysql"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server      *httptest.Server
	runRepo     *fakeRunRepo
	eventRepo   *fakeEventRepo
	queue       *fakeQueue
	broadcaster *service.ProgressBroadcaster
}

func setUpTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	saved := config.GlobalConfig
	config.GlobalConfig = &config.Config{
		Simulator: config.SimulatorConfig{
			OutputDir:   t.TempDir(),
			Machines:    3,
			Days:        1,
			StepMinutes: 60,
			Seed:        42,
			Workers:     2,
		},
	}
	t.Cleanup(func() { config.GlobalConfig = saved })

	art := &artifact.Artifact{
		Model: artifact.Model{
			Type:         "logistic_regression",
			Intercept:    0,
			Coefficients: []float64{1, 1},
		},
		FeatureCols: []string{"temp_mean", "vib_max"},
	}

	runRepo := newFakeRunRepo()
	eventRepo := newFakeEventRepo()
	queue := &fakeQueue{}
	broadcaster := service.NewProgressBroadcaster()

	predictHandler := handler.NewPredictHandler(service.NewPredictionService(art))
	simulationHandler := handler.NewSimulationHandler(
		service.NewSimulationService(runRepo, eventRepo, queue, broadcaster))

	engine := gin.New()
	NewRouter(predictHandler, simulationHandler).Setup(engine)

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &testEnv{
		server:      server,
		runRepo:     runRepo,
		eventRepo:   eventRepo,
		queue:       queue,
		broadcaster: broadcaster,
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

/* ---------------- GET / ---------------- */

func TestRootReportsModelInfo(t *testing.T) {
	env := setUpTestServer(t)

	resp, err := http.Get(env.server.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.RootResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "Predictive Maintenance API is running.", body.Message)
	require.Equal(t, 2, body.ModelFeaturesCount)
}

/* ---------------- POST /predict_24h ---------------- */

func TestPredict(t *testing.T) {
	env := setUpTestServer(t)
	url := env.server.URL + "/predict_24h"

	t.Run("ValidRequest", func(t *testing.T) {
		resp := postJSON(t, url, `{"features": {"temp_mean": 0, "vib_max": 0}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.PredictResponse
		decodeBody(t, resp, &body)
		require.Equal(t, 0.5, body.FailureProbability24h)
		require.Contains(t, body.Recommendation, "Moderate risk")
	})

	t.Run("EmptyFeaturesDictIsValid", func(t *testing.T) {
		resp := postJSON(t, url, `{"features": {}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.PredictResponse
		decodeBody(t, resp, &body)
		require.Equal(t, 0.5, body.FailureProbability24h)
	})

	t.Run("UnknownFeaturesIgnored", func(t *testing.T) {
		resp := postJSON(t, url, `{"features": {"temp_mean": -5, "nonsense": 100}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.PredictResponse
		decodeBody(t, resp, &body)
		require.Equal(t, 0.007, body.FailureProbability24h)
		require.Contains(t, body.Recommendation, "Low risk")
	})

	t.Run("MissingFeaturesField", func(t *testing.T) {
		resp := postJSON(t, url, `{}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		resp := postJSON(t, url, `{bad-json`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

/* ---------------- GET /sample_payload ---------------- */

func TestSamplePayload(t *testing.T) {
	env := setUpTestServer(t)

	resp, err := http.Get(env.server.URL + "/sample_payload")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.SamplePayloadResponse
	decodeBody(t, resp, &body)
	require.Contains(t, body.Note, "/predict_24h")
	require.Len(t, body.FeaturesExample, 2)
	require.Contains(t, body.FeaturesExample, "temp_mean")
	require.Contains(t, body.FeaturesExample, "vib_max")
}

/* ---------------- POST /v1/simulations ---------------- */

func TestCreateSimulation(t *testing.T) {
	env := setUpTestServer(t)
	url := env.server.URL + "/v1/simulations"

	t.Run("AcceptsRun", func(t *testing.T) {
		resp := postJSON(t, url, `{"machines": 5, "days": 2}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body model.CreateRunResponse
		decodeBody(t, resp, &body)
		require.NotEmpty(t, body.ID)
		require.Equal(t, model.RunStatusPending, body.Status)

		saved, err := env.runRepo.Get(context.Background(), body.ID)
		require.NoError(t, err)
		require.NotNil(t, saved)
		require.Equal(t, 5, saved.Machines)
		require.Contains(t, env.queue.enqueued, body.ID)
	})

	t.Run("DefaultsWithEmptyBody", func(t *testing.T) {
		resp := postJSON(t, url, `{}`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body model.CreateRunResponse
		decodeBody(t, resp, &body)

		saved, err := env.runRepo.Get(context.Background(), body.ID)
		require.NoError(t, err)
		require.Equal(t, config.GlobalConfig.Simulator.Machines, saved.Machines)
	})

	t.Run("NegativeMachines", func(t *testing.T) {
		resp := postJSON(t, url, `{"machines": -2}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MalformedStartDate", func(t *testing.T) {
		resp := postJSON(t, url, `{"start": "yesterday"}`)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

/* ---------------- GET /v1/simulations ---------------- */

func TestListSimulations(t *testing.T) {
	env := setUpTestServer(t)

	env.runRepo.add(storedRun("run-a", model.RunStatusCompleted))
	env.runRepo.add(storedRun("run-b", model.RunStatusRunning))

	resp, err := http.Get(env.server.URL + "/v1/simulations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Runs  []model.SimulationRun `json:"runs"`
		Limit int                   `json:"limit"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Runs, 2)
	require.Equal(t, 50, body.Limit)
}

/* ---------------- GET /v1/simulations/stats ---------------- */

func TestSimulationStats(t *testing.T) {
	env := setUpTestServer(t)

	env.runRepo.add(storedRun("run-a", model.RunStatusCompleted))
	env.runRepo.add(storedRun("run-b", model.RunStatusCompleted))
	env.runRepo.add(storedRun("run-c", model.RunStatusRunning))
	env.runRepo.add(storedRun("run-d", model.RunStatusFailed))

	resp, err := http.Get(env.server.URL + "/v1/simulations/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body model.RunStats
	decodeBody(t, resp, &body)
	require.Equal(t, int64(0), body.Pending)
	require.Equal(t, int64(1), body.Running)
	require.Equal(t, int64(2), body.Completed)
	require.Equal(t, int64(1), body.Failed)
	require.Equal(t, 0, body.QueuedTasks)
}

/* ---------------- GET /v1/simulations/:run_id ---------------- */

func TestGetSimulation(t *testing.T) {
	env := setUpTestServer(t)

	env.runRepo.add(storedRun("run-a", model.RunStatusCompleted))

	t.Run("Found", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/simulations/run-a")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body model.SimulationRun
		decodeBody(t, resp, &body)
		require.Equal(t, "run-a", body.ID)
		require.Equal(t, model.RunStatusCompleted, body.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/simulations/ghost")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

/* ---------------- GET /v1/simulations/:run_id/failures ---------------- */

func TestListSimulationFailures(t *testing.T) {
	env := setUpTestServer(t)

	env.runRepo.add(storedRun("run-a", model.RunStatusCompleted))
	require.NoError(t, env.eventRepo.BatchCreate(context.Background(), []*mysql.FailureEvent{
		{RunID: "run-a", MachineID: 3, EventTime: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), HealthScore: 0.29},
		{RunID: "run-a", MachineID: 7, EventTime: time.Date(2024, 1, 9, 2, 0, 0, 0, time.UTC), HealthScore: 0.12},
	}))

	t.Run("ReturnsEvents", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/simulations/run-a/failures")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			RunID  string               `json:"run_id"`
			Events []model.FailureEvent `json:"events"`
			Total  int                  `json:"total"`
		}
		decodeBody(t, resp, &body)
		require.Equal(t, "run-a", body.RunID)
		require.Equal(t, 2, body.Total)
		require.Equal(t, 3, body.Events[0].MachineID)
		require.Equal(t, 0.29, body.Events[0].HealthScore)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		resp, err := http.Get(env.server.URL + "/v1/simulations/ghost/failures")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

/* ---------------- GET /v1/simulations/:run_id/stream ---------------- */

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestStreamSimulationProgress(t *testing.T) {
	env := setUpTestServer(t)

	row := storedRun("run-a", model.RunStatusRunning)
	row.MachinesDone = 1
	env.runRepo.add(row)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env.server, "/v1/simulations/run-a/stream"), nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Snapshot frame reflects the stored run state.
	var snapshot model.RunProgress
	require.NoError(t, conn.ReadJSON(&snapshot))
	require.Equal(t, model.RunStatusRunning, snapshot.Status)
	require.Equal(t, 1, snapshot.MachinesDone)
	require.Equal(t, 3, snapshot.MachinesTotal)

	env.broadcaster.Publish(model.RunProgress{
		RunID: "run-a", Status: model.RunStatusRunning, MachinesDone: 2, MachinesTotal: 3,
	})

	var frame model.RunProgress
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, 2, frame.MachinesDone)

	env.broadcaster.Publish(model.RunProgress{
		RunID: "run-a", Status: model.RunStatusCompleted, MachinesDone: 3, MachinesTotal: 3,
	})

	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, model.RunStatusCompleted, frame.Status)

	// After the terminal frame the server closes the stream.
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamFinishedRunSendsTerminalFrame(t *testing.T) {
	env := setUpTestServer(t)

	row := storedRun("run-a", model.RunStatusCompleted)
	row.MachinesDone = 3
	env.runRepo.add(row)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env.server, "/v1/simulations/run-a/stream"), nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	var frame model.RunProgress
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, model.RunStatusCompleted, frame.Status)
	require.Equal(t, 3, frame.MachinesDone)

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStreamUnknownRunAnswers404(t *testing.T) {
	env := setUpTestServer(t)

	resp, err := http.Get(env.server.URL + "/v1/simulations/ghost/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

/* ---------------- GET /health ---------------- */

func TestHealth(t *testing.T) {
	env := setUpTestServer(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	require.Equal(t, "ok", body["status"])
}

func storedRun(runID string, status model.RunStatus) *mysql.SimulationRun {
	now := time.Now()
	return &mysql.SimulationRun{
		RunID:       runID,
		Status:      string(status),
		Machines:    3,
		Days:        1,
		StepMinutes: 60,
		Seed:        42,
		StartTime:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

/* ---------------- Fakes ---------------- */

type fakeRunRepo struct {
	mu    sync.Mutex
	items map[string]*mysql.SimulationRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{items: make(map[string]*mysql.SimulationRun)}
}

func (f *fakeRunRepo) add(row *mysql.SimulationRun) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *row
	f.items[row.RunID] = &cp
}

func (f *fakeRunRepo) Create(ctx context.Context, run *mysql.SimulationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.items[run.RunID] = &cp
	return nil
}

func (f *fakeRunRepo) Get(ctx context.Context, runID string) (*mysql.SimulationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.items[runID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRunRepo) List(ctx context.Context, limit, offset int) ([]*mysql.SimulationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*mysql.SimulationRun, 0, len(f.items))
	for _, row := range f.items {
		cp := *row
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeRunRepo) UpdateFields(ctx context.Context, runID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.items[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	if status, ok := updates["status"].(string); ok {
		row.Status = status
	}
	if errMsg, ok := updates["error"].(string); ok {
		row.Error = errMsg
	}
	return nil
}

func (f *fakeRunRepo) UpdateStatus(ctx context.Context, runID string, fromStatus, toStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.items[runID]
	if !ok || row.Status != fromStatus {
		return fmt.Errorf("run not found or invalid status transition: run_id=%s", runID)
	}
	row.Status = toStatus
	return nil
}

func (f *fakeRunRepo) MarkStaleRunsFailed(ctx context.Context, before time.Time, reason string) (int64, error) {
	return 0, nil
}

func (f *fakeRunRepo) ListFinishedBefore(ctx context.Context, before time.Time, limit int) ([]*mysql.SimulationRun, error) {
	return nil, nil
}

func (f *fakeRunRepo) Delete(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, runID)
	return nil
}

func (f *fakeRunRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.items {
		if row.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeRunRepo) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeEventRepo struct {
	mu    sync.Mutex
	items map[string][]*mysql.FailureEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{items: make(map[string][]*mysql.FailureEvent)}
}

func (f *fakeEventRepo) BatchCreate(ctx context.Context, events []*mysql.FailureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range events {
		cp := *e
		f.items[e.RunID] = append(f.items[e.RunID], &cp)
	}
	return nil
}

func (f *fakeEventRepo) ListByRun(ctx context.Context, runID string, limit, offset int) ([]*mysql.FailureEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.items[runID]
	result := make([]*mysql.FailureEvent, 0, len(events))
	for _, e := range events {
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

func (f *fakeEventRepo) CountByRun(ctx context.Context, runID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items[runID])), nil
}

func (f *fakeEventRepo) DeleteByRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, runID)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
}

func (f *fakeQueue) EnqueueRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, runID)
	return nil
}

func (f *fakeQueue) PendingRunCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued), nil
}
