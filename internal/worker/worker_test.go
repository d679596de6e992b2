// Copyright 2025 James Ross
package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/jamesross/catalog-scrape-core/internal/catalog"
	"github.com/jamesross/catalog-scrape-core/internal/config"
	"github.com/jamesross/catalog-scrape-core/internal/handlers"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Worker = config.Worker{
		Concurrency:     1,
		RequestDelayMS:  5 * time.Millisecond,
		LockTTL:         time.Minute,
		PollInterval:    5 * time.Millisecond,
		ShutdownTimeout: 200 * time.Millisecond,
	}
	cfg.CircuitBreaker = config.CircuitBreaker{
		FailureThreshold: 0.9,
		Window:           time.Minute,
		CooldownPeriod:   time.Second,
		MinSamples:       1000,
	}
	return cfg
}

// stubHandler returns a fixed Result or error regardless of the job
// passed to it, letting worker tests exercise the pool's dispatch loop
// without a real page fetch.
type stubHandler struct {
	result handlers.Result
	err    error
	calls  int
}

func (h *stubHandler) Handle(ctx context.Context, job queue.Job) (handlers.Result, error) {
	h.calls++
	return h.result, h.err
}

func TestSleepRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	sleep(ctx, time.Second)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRecordOutcomeMetricDoesNotPanic(t *testing.T) {
	p := &Pool{}
	p.recordOutcomeMetric(queue.Job{Attempts: 3, MaxAttempts: 3})
	p.recordOutcomeMetric(queue.Job{Attempts: 1, MaxAttempts: 3})
}

func TestToScrapingResultNavigation(t *testing.T) {
	p := &Pool{}
	job := queue.Job{Type: queue.JobNavigation}
	res := handlers.Result{Navigations: []catalog.NavigationRecord{{Title: "Fiction", SourceURL: "https://example.test/nav/fiction"}}}
	out := p.toScrapingResult(context.Background(), job, res)
	require.Len(t, out.Navigations, 1)
	assert.Equal(t, "Fiction", out.Navigations[0].Title)
}

func TestToScrapingResultProductWithoutImagePipeline(t *testing.T) {
	p := &Pool{} // images is nil: URLs pass through unresolved rather than panicking
	job := queue.Job{Type: queue.JobProduct}
	res := handlers.Result{Product: &catalog.ProductRecord{
		Title:     "Dune",
		SourceURL: "https://example.test/p/dune",
		ImageURLs: []string{"https://images.test/dune.jpg"},
	}}
	out := p.toScrapingResult(context.Background(), job, res)
	require.Len(t, out.Products, 1)
	assert.Equal(t, []string{"https://images.test/dune.jpg"}, out.Products[0].ImageURLs)
}

// openTestPool wires a real Postgres-backed queue.Store and
// catalog.Writer, skipping when no test database is configured, the
// same gating pattern as the queue and catalog integration tests.
func openTestPool(t *testing.T, registry *handlers.Registry) (*Pool, *queue.Store) {
	t.Helper()
	dsn := os.Getenv("QUEUE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set QUEUE_TEST_DATABASE_URL to run worker integration tests")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, queue.InitSchema(db))
	t.Cleanup(func() { db.Close() })

	store := queue.NewStore(db)
	writer := catalog.NewWriter(db)
	p := New(testConfig(), store, writer, registry, nil, nil, zap.NewNop())
	return p, store
}

func TestProcessJobHappyPath(t *testing.T) {
	registry := handlers.NewRegistry()
	registry.Register(queue.JobNavigation, &stubHandler{result: handlers.Result{
		Navigations: []catalog.NavigationRecord{{Title: "Fiction", SourceURL: "https://example.test/nav/fiction"}},
	}})
	p, store := openTestPool(t, registry)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, queue.EnqueueParams{Type: queue.JobNavigation, TargetURL: "https://example.test/nav/fiction"})
	require.NoError(t, err)

	job, ok, err := store.Dequeue(ctx, "test-worker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, job.ID)

	success := p.processJob(ctx, "test-worker-1", job)
	assert.True(t, success)

	snap := p.Metrics()
	assert.Equal(t, int64(0), snap.Processed) // processJob alone doesn't update Metrics; Run's loop does
}

func TestProcessJobDispatchErrorFailsJob(t *testing.T) {
	registry := handlers.NewRegistry()
	registry.Register(queue.JobProduct, &stubHandler{err: errors.New("boom")})
	p, store := openTestPool(t, registry)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, queue.EnqueueParams{Type: queue.JobProduct, TargetURL: "https://example.test/p/1"})
	require.NoError(t, err)

	job, ok, err := store.Dequeue(ctx, "test-worker-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, job.ID)

	success := p.processJob(ctx, "test-worker-2", job)
	assert.False(t, success)
}

func TestProcessJobLostLeaseAborts(t *testing.T) {
	registry := handlers.NewRegistry()
	registry.Register(queue.JobProduct, &stubHandler{result: handlers.Result{Product: &catalog.ProductRecord{Title: "X", SourceURL: "https://example.test/p/x"}}})
	p, store := openTestPool(t, registry)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, queue.EnqueueParams{Type: queue.JobProduct, TargetURL: "https://example.test/p/lost"})
	require.NoError(t, err)

	job, ok, err := store.Dequeue(ctx, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, job.ID)

	// Simulate a lease handed to a different worker id than the one
	// that actually holds the row lock; the writer's UPDATE ... WHERE
	// locked_by = $N then matches zero rows.
	success := p.processJob(ctx, "owner-b", job)
	assert.False(t, success)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	registry := handlers.NewRegistry()
	p, _ := openTestPool(t, registry)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.False(t, p.Running())
}
