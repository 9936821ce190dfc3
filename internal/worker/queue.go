// Package worker provides the background import queue: a polling loop that
// claims pending runs and drives them through the pipeline.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/logger"
	"github.com/drmixer/elevated-importer/internal/metrics"
	"github.com/drmixer/elevated-importer/internal/pipeline"
	"github.com/drmixer/elevated-importer/internal/providers"
)

const defaultPollInterval = 10 * time.Second

// RunStore is the queue-facing slice of the run repository.
type RunStore interface {
	OldestPending(ctx context.Context) (*domain.ImportRun, error)
	Claim(ctx context.Context, id string) (*domain.ImportRun, error)
	AppendLog(ctx context.Context, id string, entry domain.LogEntry) error
	Finalize(ctx context.Context, id string, status domain.RunStatus, totals domain.RunTotals, runErrors []string) error
}

// DatasetLoader resolves a run's provider and loads its normalized dataset.
type DatasetLoader interface {
	Load(providerID, path string, limit int) (*domain.NormalizedDataset, error)
}

// Executor runs the pipeline for one claimed run.
type Executor interface {
	Execute(ctx context.Context, run *domain.ImportRun, ds *domain.NormalizedDataset) (*pipeline.Result, error)
}

// ProviderLoader is the production DatasetLoader backed by the provider
// registry.
type ProviderLoader struct{}

// Load normalizes the raw export at path for the given provider.
func (ProviderLoader) Load(providerID, path string, limit int) (*domain.NormalizedDataset, error) {
	norm, err := providers.ForProvider(providerID)
	if err != nil {
		return nil, err
	}
	res, err := norm.Load(path, providers.LoadOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Dataset, nil
}

// QueueConfig holds configuration options.
type QueueConfig struct {
	PollInterval time.Duration
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{PollInterval: defaultPollInterval}
}

// Queue polls import_runs for pending work. Each tick claims at most one run
// and executes it to completion before the next poll; ticks that fire while a
// run is still executing are skipped.
type Queue struct {
	runs     RunStore
	loader   DatasetLoader
	executor Executor
	metrics  *metrics.Metrics
	logger   logger.Logger

	pollInterval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex

	busy atomic.Bool
}

// NewQueue creates a new import queue worker.
func NewQueue(
	runs RunStore,
	loader DatasetLoader,
	executor Executor,
	m *metrics.Metrics,
	cfg QueueConfig,
	log logger.Logger,
) *Queue {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	return &Queue{
		runs:         runs,
		loader:       loader,
		executor:     executor,
		metrics:      m,
		logger:       log,
		pollInterval: cfg.PollInterval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx)

	q.logger.Info("import queue started",
		logger.Duration("poll_interval", q.pollInterval))
}

// Stop gracefully stops the worker, waiting for an in-flight run to finish.
// Safe to call more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	close(q.stopChan)
	q.wg.Wait()
	q.logger.Info("import queue stopped")
}

// IsRunning returns whether the worker is currently running.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	q.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			q.Tick(ctx)
		case <-q.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick performs one poll cycle: claim the oldest pending run, if any, and
// execute it. At most one tick runs at a time; overlapping calls return
// without polling.
func (q *Queue) Tick(ctx context.Context) {
	if !q.busy.CompareAndSwap(false, true) {
		return
	}
	defer q.busy.Store(false)

	pending, err := q.runs.OldestPending(ctx)
	if err != nil {
		q.logger.Error("failed to poll for pending runs", logger.Error(err))
		return
	}
	if pending == nil {
		return
	}

	claimed, err := q.runs.Claim(ctx, pending.ID)
	if err != nil {
		q.logger.Error("failed to claim run",
			logger.String("run_id", pending.ID),
			logger.Error(err))
		return
	}
	if claimed == nil {
		// Another worker won the claim.
		q.logger.Debug("run claimed elsewhere", logger.String("run_id", pending.ID))
		return
	}

	q.process(ctx, claimed)
}

func (q *Queue) process(ctx context.Context, run *domain.ImportRun) {
	q.metrics.TickInFlight.Set(1)
	defer q.metrics.TickInFlight.Set(0)
	start := time.Now()

	q.logger.Info("run claimed",
		logger.String("run_id", run.ID),
		logger.String("provider", run.ProviderID))

	input, err := decodeInput(run)
	if err != nil {
		q.fail(ctx, run, start, err)
		return
	}

	ds, err := q.loader.Load(input.ProviderID, input.InputPath, input.Limit)
	if err != nil {
		q.fail(ctx, run, start, err)
		return
	}

	q.appendLog(ctx, run.ID, domain.LogLevelInfo, "dataset normalized", map[string]any{
		"provider": ds.ProviderID,
		"modules":  len(ds.Modules),
	})

	result, err := q.executor.Execute(ctx, run, ds)
	if err != nil {
		q.fail(ctx, run, start, err)
		return
	}

	for _, warning := range result.Warnings {
		q.appendLog(ctx, run.ID, domain.LogLevelWarn, warning, nil)
	}
	q.appendLog(ctx, run.ID, domain.LogLevelInfo, "run completed", map[string]any{
		"modules": result.Totals.Modules,
		"lessons": result.Totals.Lessons,
		"assets":  result.Totals.Assets,
	})

	if err := q.runs.Finalize(ctx, run.ID, domain.RunStatusSuccess, result.Totals, nil); err != nil {
		q.logger.Error("failed to finalize run",
			logger.String("run_id", run.ID),
			logger.Error(err))
		return
	}

	q.metrics.RunsTotal.WithLabelValues(string(domain.RunStatusSuccess)).Inc()
	q.metrics.AssetsUpserted.Add(float64(result.Totals.Assets))
	q.metrics.RunDuration.Observe(time.Since(start).Seconds())

	q.logger.Info("run succeeded",
		logger.String("run_id", run.ID),
		logger.Int("assets", result.Totals.Assets),
		logger.Duration("elapsed", time.Since(start)))
}

// fail records a terminal error status for the run. The run row keeps both
// the error list and the log trail, so failures stay inspectable through the
// admin API.
func (q *Queue) fail(ctx context.Context, run *domain.ImportRun, start time.Time, runErr error) {
	q.logger.Error("run failed",
		logger.String("run_id", run.ID),
		logger.String("provider", run.ProviderID),
		logger.Error(runErr))

	q.appendLog(ctx, run.ID, domain.LogLevelError, runErr.Error(), nil)

	if err := q.runs.Finalize(ctx, run.ID, domain.RunStatusError, domain.RunTotals{}, []string{runErr.Error()}); err != nil {
		q.logger.Error("failed to finalize failed run",
			logger.String("run_id", run.ID),
			logger.Error(err))
	}

	q.metrics.RunsTotal.WithLabelValues(string(domain.RunStatusError)).Inc()
	q.metrics.RunDuration.Observe(time.Since(start).Seconds())
}

func (q *Queue) appendLog(ctx context.Context, runID string, level domain.LogLevel, message string, fields map[string]any) {
	entry := domain.LogEntry{
		Level:     level,
		Message:   message,
		Context:   fields,
		Timestamp: time.Now().UTC(),
	}
	if err := q.runs.AppendLog(ctx, runID, entry); err != nil {
		q.logger.Error("failed to append run log",
			logger.String("run_id", runID),
			logger.Error(err))
	}
}

// decodeInput reads the run's stored input payload. The provider id on the
// run row wins when the payload omits one.
func decodeInput(run *domain.ImportRun) (domain.RunInput, error) {
	var input domain.RunInput
	if len(run.Input) > 0 {
		if err := json.Unmarshal(run.Input, &input); err != nil {
			return input, domain.NewValidationError("run %s has malformed input: %v", run.ID, err)
		}
	}
	if input.ProviderID == "" {
		input.ProviderID = run.ProviderID
	}
	return input, nil
}
