// Package app wires the importer service together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drmixer/elevated-importer/internal/api"
	"github.com/drmixer/elevated-importer/internal/config"
	"github.com/drmixer/elevated-importer/internal/database"
	"github.com/drmixer/elevated-importer/internal/limits"
	"github.com/drmixer/elevated-importer/internal/logger"
	"github.com/drmixer/elevated-importer/internal/metrics"
	"github.com/drmixer/elevated-importer/internal/pipeline"
	"github.com/drmixer/elevated-importer/internal/urlcheck"
	"github.com/drmixer/elevated-importer/internal/worker"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// App holds the importer service and all its dependencies.
type App struct {
	config     *config.Config
	logger     logger.Logger
	db         *sqlx.DB
	queue      *worker.Queue
	httpServer *http.Server
	version    string
}

// Options configures App creation.
type Options struct {
	ConfigPath string
	Version    string
}

// New loads configuration and initializes every component of the service.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "importer"),
		logger.String("version", opts.Version),
	)

	db, err := database.Connect(cfg.Database.Connection())
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	runs := database.NewRunRepository(db)
	content := database.NewContentRepository(db)

	checker := urlcheck.NewChecker(
		urlcheck.WithTimeout(cfg.URLCheck.Timeout),
		urlcheck.WithBypass(cfg.URLCheck.Bypass),
	)

	pipe := pipeline.New(content, checker, pipeline.Config{
		ImporterID: cfg.Importer.ID,
		Limits:     limits.Normalize(cfg.Importer.Limits),
	}, appLogger)

	queue := worker.NewQueue(runs, worker.ProviderLoader{}, pipe, m,
		worker.QueueConfig{PollInterval: cfg.Queue.PollInterval}, appLogger)

	router := api.NewRouter(runs, func(ctx context.Context) error {
		return db.PingContext(ctx)
	}, registry, appLogger, opts.Version, cfg.Debug)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		config:     cfg,
		logger:     appLogger,
		db:         db,
		queue:      queue,
		httpServer: httpServer,
		version:    opts.Version,
	}, nil
}

// Run starts the queue worker and HTTP server, blocking until a shutdown
// signal or a server error.
func (a *App) Run(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	a.queue.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("admin API listening",
			logger.String("address", a.config.Server.Address))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	return a.waitForShutdown(workerCancel, serverErr)
}

func (a *App) waitForShutdown(workerCancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down gracefully", logger.String("signal", sig.String()))
	case err := <-serverErr:
		a.logger.Error("admin API server error", logger.Error(err))
		shutdownErr = err
	}

	workerCancel()
	a.queue.Stop()
	a.shutdownHTTPServer()

	a.logger.Info("service stopped")
	return shutdownErr
}

func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("admin API stopped")
	}
}

// Close releases the database connection and flushes the logger.
func (a *App) Close() error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
