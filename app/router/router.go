package router

import (
	"predmaint/app/handler"
	"predmaint/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	predictHandler    *handler.PredictHandler
	simulationHandler *handler.SimulationHandler
}

// NewRouter creates a new Router
func NewRouter(predictHandler *handler.PredictHandler, simulationHandler *handler.SimulationHandler) *Router {
	return &Router{
		predictHandler:    predictHandler,
		simulationHandler: simulationHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	// Scoring interface. Paths are kept flat so existing model consumers
	// keep working unchanged.
	engine.GET("/", r.predictHandler.Root)
	engine.POST("/predict_24h", r.predictHandler.Predict)
	engine.GET("/sample_payload", r.predictHandler.SamplePayload)

	// V1 API - simulation run management
	v1 := engine.Group("/v1")
	{
		simulations := v1.Group("/simulations")
		{
			simulations.POST("", r.simulationHandler.CreateRun)
			simulations.GET("", r.simulationHandler.ListRuns)
			simulations.GET("/stats", r.simulationHandler.GetStats)
			simulations.GET("/:run_id", r.simulationHandler.GetRun)
			simulations.GET("/:run_id/failures", r.simulationHandler.ListFailureEvents)
			simulations.GET("/:run_id/stream", r.simulationHandler.StreamProgress) // WebSocket
		}
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
