package handler

import (
	"errors"
	"net/http"
	"strconv"

	"predmaint/internal/model"
	"predmaint/internal/service"
	"predmaint/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SimulationHandler handles dataset generation runs
type SimulationHandler struct {
	simulationService *service.SimulationService
}

// NewSimulationHandler creates simulation handler
func NewSimulationHandler(simulationService *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{
		simulationService: simulationService,
	}
}

// CreateRun submits a generation run
// @Summary Submit a simulation run
// @Description Accepts a dataset generation run; omitted parameters use the configured defaults
// @Tags simulations
// @Accept json
// @Produce json
// @Param request body model.CreateRunRequest true "Run parameters"
// @Success 202 {object} model.CreateRunResponse
// @Router /v1/simulations [post]
func (h *SimulationHandler) CreateRun(c *gin.Context) {
	var req model.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.ErrorCtx(c.Request.Context(), "invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.simulationService.CreateRun(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRunParams) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.ErrorCtx(c.Request.Context(), "failed to create run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// ListRuns gets the run list
// @Summary List simulation runs
// @Description Lists runs newest first, with pagination
// @Tags simulations
// @Produce json
// @Param limit query int false "Return count limit (default 50)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {object} map[string]interface{} "Return format: {runs: [], limit: 50, offset: 0}"
// @Router /v1/simulations [get]
func (h *SimulationHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveQuery(c, "limit", 50)
	offset := parsePositiveQuery(c, "offset", 0)

	runs, err := h.simulationService.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetStats gets run statistics
// @Summary Run statistics
// @Description Counts runs by status and reports the number of queued, not yet started tasks
// @Tags simulations
// @Produce json
// @Success 200 {object} model.RunStats
// @Router /v1/simulations/stats [get]
func (h *SimulationHandler) GetStats(c *gin.Context) {
	stats, err := h.simulationService.RunStats(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get run stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRun gets one run
// @Summary Get a simulation run
// @Description Gets run status, parameters and counters by run ID
// @Tags simulations
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} model.SimulationRun
// @Router /v1/simulations/{run_id} [get]
func (h *SimulationHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id required"})
		return
	}

	run, err := h.simulationService.GetRun(c.Request.Context(), runID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get run, run_id: %s, error: %v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListFailureEvents gets a run's failure events
// @Summary List a run's failure events
// @Description Lists the health-threshold crossings recorded for a completed run
// @Tags simulations
// @Produce json
// @Param run_id path string true "Run ID"
// @Param limit query int false "Return count limit (default 500)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {object} map[string]interface{}
// @Router /v1/simulations/{run_id}/failures [get]
func (h *SimulationHandler) ListFailureEvents(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id required"})
		return
	}

	run, err := h.simulationService.GetRun(c.Request.Context(), runID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get run, run_id: %s, error: %v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	limit := parsePositiveQuery(c, "limit", 500)
	offset := parsePositiveQuery(c, "offset", 0)

	events, err := h.simulationService.ListFailureEvents(c.Request.Context(), runID, limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list failure events, run_id: %s, error: %v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"events": events,
		"total":  len(events),
	})
}

// StreamProgress streams run progress over a websocket
// @Summary Stream run progress
// @Description Upgrades to a websocket and pushes progress frames until the run reaches a terminal status
// @Tags simulations
// @Param run_id path string true "Run ID"
// @Router /v1/simulations/{run_id}/stream [get]
func (h *SimulationHandler) StreamProgress(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id required"})
		return
	}

	run, err := h.simulationService.GetRun(c.Request.Context(), runID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to get run, run_id: %s, error: %v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	// Subscribe before upgrading so no frame is lost between the status
	// check and the first read.
	frames, cancel := h.simulationService.SubscribeProgress(runID)
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "websocket upgrade failed, run_id: %s, error: %v", runID, err)
		return
	}
	defer conn.Close()

	// Snapshot frame first. Re-reading the run here closes the race where it
	// finished between the subscription and now.
	run, err = h.simulationService.GetRun(c.Request.Context(), runID)
	if err != nil || run == nil {
		return
	}

	snapshot := progressSnapshot(run)
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}
	if terminal(snapshot.Status) {
		writeStreamClose(conn)
		return
	}

	// Read pump: the client never sends data frames, but reading is what
	// surfaces its close message.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			if terminal(frame.Status) {
				writeStreamClose(conn)
				return
			}
		}
	}
}

func progressSnapshot(run *model.SimulationRun) model.RunProgress {
	return model.RunProgress{
		RunID:         run.ID,
		Status:        run.Status,
		MachinesDone:  run.MachinesDone,
		MachinesTotal: run.Params.Machines,
		Error:         run.Error,
	}
}

func terminal(status model.RunStatus) bool {
	return status == model.RunStatusCompleted || status == model.RunStatusFailed
}

func writeStreamClose(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func parsePositiveQuery(c *gin.Context, name string, fallback int) int {
	value := fallback
	if param := c.Query(name); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed >= 0 {
			value = parsed
		}
	}
	return value
}
