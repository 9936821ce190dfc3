package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/logger"
	"github.com/drmixer/elevated-importer/internal/metrics"
	"github.com/drmixer/elevated-importer/internal/pipeline"
	"github.com/drmixer/elevated-importer/internal/worker"
)

type fakeRunStore struct {
	mu sync.Mutex

	pending *domain.ImportRun
	claimed *domain.ImportRun // what Claim hands back; nil means lost race

	claimCalls    int
	logs          []domain.LogEntry
	finalStatus   domain.RunStatus
	finalTotals   domain.RunTotals
	finalErrors   []string
	finalizeCalls int
}

func (s *fakeRunStore) OldestPending(context.Context) (*domain.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

func (s *fakeRunStore) Claim(_ context.Context, id string) (*domain.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimCalls++
	return s.claimed, nil
}

func (s *fakeRunStore) AppendLog(_ context.Context, _ string, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeRunStore) Finalize(_ context.Context, _ string, status domain.RunStatus, totals domain.RunTotals, runErrors []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	s.finalStatus = status
	s.finalTotals = totals
	s.finalErrors = runErrors
	return nil
}

type fakeLoader struct {
	dataset *domain.NormalizedDataset
	err     error
}

func (l fakeLoader) Load(_, _ string, _ int) (*domain.NormalizedDataset, error) {
	return l.dataset, l.err
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	result  *pipeline.Result
	err     error
	release chan struct{} // when set, Execute blocks until closed
}

func (e *fakeExecutor) Execute(context.Context, *domain.ImportRun, *domain.NormalizedDataset) (*pipeline.Result, error) {
	e.mu.Lock()
	e.calls++
	release := e.release
	e.mu.Unlock()
	if release != nil {
		<-release
	}
	return e.result, e.err
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testRun() *domain.ImportRun {
	return &domain.ImportRun{
		ID:         "run-1",
		ProviderID: "openstax",
		Status:     domain.RunStatusPending,
		Input:      []byte(`{"provider_id":"openstax","input_path":"/tmp/openstax.json"}`),
	}
}

func newQueue(store worker.RunStore, loader worker.DatasetLoader, exec worker.Executor) *worker.Queue {
	m := metrics.New(prometheus.NewRegistry())
	return worker.NewQueue(store, loader, exec, m, worker.DefaultQueueConfig(), logger.NewNopLogger())
}

func TestTickEmptyQueue(t *testing.T) {
	store := &fakeRunStore{}
	exec := &fakeExecutor{}
	q := newQueue(store, fakeLoader{}, exec)

	q.Tick(context.Background())

	require.Zero(t, store.claimCalls)
	require.Zero(t, exec.callCount())
}

func TestTickClaimsAndSucceeds(t *testing.T) {
	run := testRun()
	store := &fakeRunStore{pending: run, claimed: run}
	exec := &fakeExecutor{result: &pipeline.Result{
		Totals:   domain.RunTotals{Modules: 1, Lessons: 2, Assets: 7},
		Warnings: []string{"url check failed for https://openstax.org/a"},
	}}
	q := newQueue(store, fakeLoader{dataset: &domain.NormalizedDataset{ProviderID: "openstax"}}, exec)

	q.Tick(context.Background())

	require.Equal(t, 1, store.claimCalls)
	require.Equal(t, 1, exec.callCount())
	require.Equal(t, 1, store.finalizeCalls)
	require.Equal(t, domain.RunStatusSuccess, store.finalStatus)
	require.Equal(t, domain.RunTotals{Modules: 1, Lessons: 2, Assets: 7}, store.finalTotals)
	require.Empty(t, store.finalErrors)

	// One warn entry surfaced from the pipeline.
	var warns int
	for _, entry := range store.logs {
		if entry.Level == domain.LogLevelWarn {
			warns++
		}
	}
	require.Equal(t, 1, warns)
}

func TestTickLostClaimRace(t *testing.T) {
	store := &fakeRunStore{pending: testRun(), claimed: nil}
	exec := &fakeExecutor{}
	q := newQueue(store, fakeLoader{}, exec)

	q.Tick(context.Background())

	require.Equal(t, 1, store.claimCalls)
	require.Zero(t, exec.callCount(), "nothing executes after a lost claim")
	require.Zero(t, store.finalizeCalls)
}

func TestTickLoaderErrorFailsRunWithoutPipeline(t *testing.T) {
	run := testRun()
	store := &fakeRunStore{pending: run, claimed: run}
	exec := &fakeExecutor{}
	q := newQueue(store, fakeLoader{err: domain.NewConfigError("unknown provider %q", "nope")}, exec)

	q.Tick(context.Background())

	require.Zero(t, exec.callCount())
	require.Equal(t, domain.RunStatusError, store.finalStatus)
	require.Len(t, store.finalErrors, 1)
	require.Contains(t, store.finalErrors[0], "unknown provider")
}

func TestTickPipelineErrorFailsRun(t *testing.T) {
	run := testRun()
	store := &fakeRunStore{pending: run, claimed: run}
	exec := &fakeExecutor{err: errors.New("boom")}
	q := newQueue(store, fakeLoader{dataset: &domain.NormalizedDataset{}}, exec)

	q.Tick(context.Background())

	require.Equal(t, domain.RunStatusError, store.finalStatus)
	require.Equal(t, []string{"boom"}, store.finalErrors)
	require.Equal(t, domain.RunTotals{}, store.finalTotals)
}

func TestTickIsSingleFlight(t *testing.T) {
	run := testRun()
	store := &fakeRunStore{pending: run, claimed: run}
	release := make(chan struct{})
	exec := &fakeExecutor{result: &pipeline.Result{}, release: release}
	q := newQueue(store, fakeLoader{dataset: &domain.NormalizedDataset{}}, exec)

	done := make(chan struct{})
	go func() {
		q.Tick(context.Background())
		close(done)
	}()

	// Wait until the first tick is inside Execute.
	require.Eventually(t, func() bool { return exec.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	// An overlapping tick must return without claiming again.
	q.Tick(context.Background())
	require.Equal(t, 1, store.claimCalls)

	close(release)
	<-done
	require.Equal(t, 1, exec.callCount())
}

func TestQueueStartStop(t *testing.T) {
	store := &fakeRunStore{}
	q := worker.NewQueue(store, fakeLoader{}, &fakeExecutor{}, metrics.New(prometheus.NewRegistry()),
		worker.QueueConfig{PollInterval: 10 * time.Millisecond}, logger.NewNopLogger())

	q.Start(context.Background())
	require.True(t, q.IsRunning())
	time.Sleep(30 * time.Millisecond)
	q.Stop()
	require.False(t, q.IsRunning())

	// A second Stop must return without panicking.
	q.Stop()
}

func TestDefaultQueueConfig(t *testing.T) {
	cfg := worker.DefaultQueueConfig()
	require.Equal(t, 10*time.Second, cfg.PollInterval)
}
