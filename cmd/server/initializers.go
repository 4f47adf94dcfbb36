package main

import (
	"fmt"
	"net/http"

	"predmaint/app/handler"
	"predmaint/app/router"
	"predmaint/internal/service"
	"predmaint/pkg/artifact"
	"predmaint/pkg/config"
	"predmaint/pkg/logger"
	queue "predmaint/pkg/queue/asynq"
	mysqlstore "predmaint/pkg/store/mysql"
	redisstore "predmaint/pkg/store/redis"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initModel loads the fitted classifier artifact. Serving without a usable
// model is pointless, so a load failure aborts startup.
func (app *Application) initModel() error {
	art, err := artifact.Load(app.config.Model.Path)
	if err != nil {
		return err
	}

	app.modelArtifact = art
	logger.InfoCtx(app.ctx, "model artifact loaded, features: %d, path: %s",
		art.FeatureCount(), app.config.Model.Path)
	return nil
}

// initMySQL initializes MySQL
func (app *Application) initMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initQueue initializes the run queue
func (app *Application) initQueue() error {
	manager, err := queue.NewManager(app.config)
	if err != nil {
		return err
	}

	app.queueManager = manager
	app.registerCleanup(func() {
		manager.Close()
		logger.InfoCtx(app.ctx, "Queue client has been closed")
	})

	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	// Progress broadcaster connects queue workers to websocket subscribers
	app.broadcaster = service.NewProgressBroadcaster()

	app.predictionService = service.NewPredictionService(app.modelArtifact)

	app.simulationService = service.NewSimulationService(
		app.mysqlRepo.Run,
		app.mysqlRepo.FailureEvent,
		app.queueManager,
		app.broadcaster,
	)

	// Queue workers execute runs through the simulation service
	app.queueManager.RegisterHandler(queue.TypeSimulationRun, asynq.HandlerFunc(app.simulationService.HandleRunTask))

	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.predictHandler = handler.NewPredictHandler(app.predictionService)
	app.simulationHandler = handler.NewSimulationHandler(app.simulationService)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	// Initialize router
	r := router.NewRouter(app.predictHandler, app.simulationHandler)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine; recovery and request logging middleware are
	// installed by Setup
	app.ginEngine = gin.New()

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}

	return nil
}
