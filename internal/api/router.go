// Package api exposes the importer admin HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/logger"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
)

// RunStore is the run repository surface the admin API needs.
type RunStore interface {
	CreateRun(ctx context.Context, input domain.RunInput) (*domain.ImportRun, error)
	GetRun(ctx context.Context, id string) (*domain.ImportRun, error)
	ListRuns(ctx context.Context, status string, limit int) ([]*domain.ImportRun, error)
}

// Router holds the API dependencies.
type Router struct {
	runs     RunStore
	ping     func(ctx context.Context) error
	gatherer prometheus.Gatherer
	logger   logger.Logger
	version  string
	debug    bool
}

// NewRouter creates a new API router. ping verifies database connectivity for
// the health endpoint; gatherer serves /metrics and may be nil to use the
// default registry; version is the build version reported by /health.
func NewRouter(runs RunStore, ping func(ctx context.Context) error, gatherer prometheus.Gatherer, log logger.Logger, version string, debug bool) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		runs:     runs,
		ping:     ping,
		gatherer: gatherer,
		logger:   log,
		version:  version,
		debug:    debug,
	}
}

// SetupRoutes builds the gin engine with all admin routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", r.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	runs := v1.Group("/runs")
	runs.GET("", r.listRuns)
	runs.POST("", r.createRun)
	runs.GET("/:id", r.getRun)

	return router
}

// healthCheck reports service health; a failing database ping degrades the
// status but still answers 200 so probes can distinguish degraded from down.
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "importer",
		"version": r.version,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if r.ping != nil {
		if err := r.ping(ctx); err != nil {
			dbConnected = false
			health["status"] = healthStatusDegraded
		}
	}
	health["database"] = gin.H{"connected": dbConnected}

	c.JSON(http.StatusOK, health)
}
