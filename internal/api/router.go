package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/immiframe/internal/api/handler"
	"github.com/timmy/immiframe/internal/api/middleware"
	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/metrics"
)

// Deps are the services the status API reads from. Trigger, History, URLs
// and Metrics may be nil.
type Deps struct {
	Frame   handler.FrameStatus
	Trigger handler.Triggerer
	History handler.RunHistory
	URLs    handler.FileURLs
	Metrics *metrics.Metrics
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps, cfg config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Metrics))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.Frame)
	runsHandler := handler.NewRunsHandler(deps.Frame, deps.Trigger, deps.History, deps.URLs)

	r.GET("/health", healthHandler.Health)

	if reg := deps.Metrics.Registry(); reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", runsHandler.Status)

		v1.GET("/runs", runsHandler.ListRuns)
		v1.POST("/runs", runsHandler.TriggerRun)

		v1.GET("/generation", runsHandler.Generation)
	}

	return r
}
