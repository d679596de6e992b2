// Copyright 2025 James Ross
package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueValidation(t *testing.T) {
	s := &Store{}
	_, err := s.Enqueue(context.Background(), EnqueueParams{
		Type:      "bogus",
		TargetURL: "https://example.test/p/1",
	})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = s.Enqueue(context.Background(), EnqueueParams{
		Type:      JobProduct,
		TargetURL: "not-a-url",
	})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.Enqueue(context.Background(), EnqueueParams{
		Type:      JobProduct,
		TargetURL: "/relative/path",
	})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

// openTestStore returns a live Store against QUEUE_TEST_DATABASE_URL,
// or skips the test. These exercise the real lease/retry/expiry state
// machine against PostgreSQL's SKIP LOCKED semantics, which an in
// memory fake cannot faithfully reproduce.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("QUEUE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("set QUEUE_TEST_DATABASE_URL to run queue integration tests")
	}
	s, err := Open(dsn, 5, 2, time.Minute)
	require.NoError(t, err)
	require.NoError(t, InitSchema(s.DB()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestQueueHappyPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, EnqueueParams{
		Type:      JobProduct,
		TargetURL: "https://example.test/p/1",
		Priority:  5,
	})
	require.NoError(t, err)

	job, ok, err := s.Dequeue(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.Locked())

	err = s.Complete(ctx, job.ID, "worker-a", CompletionResult{ItemsProcessed: 1, Worker: "worker-a"})
	require.NoError(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Completed, int64(1))
}

func TestQueueRetryThenTerminalFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, EnqueueParams{
		Type:        JobProduct,
		TargetURL:   "https://example.test/p/retry",
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	job, ok, err := s.Dequeue(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, job.Attempts)

	require.NoError(t, s.Fail(ctx, job.ID, "worker-a", "boom"))

	job2, ok, err := s.Dequeue(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job2.ID)
	assert.Equal(t, 2, job2.Attempts)

	// attempts == max_attempts now; failing again must go terminal, not queued.
	require.NoError(t, s.Fail(ctx, job2.ID, "worker-b", "boom again"))

	retryable, err := s.GetRetryable(ctx, 10)
	require.NoError(t, err)
	for _, r := range retryable {
		assert.NotEqual(t, id, r.ID, "terminally failed job must not be retryable")
	}
}

func TestQueueLostLease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, EnqueueParams{Type: JobProduct, TargetURL: "https://example.test/p/lease"})
	require.NoError(t, err)

	_, ok, err := s.Dequeue(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = s.Complete(ctx, id, "worker-wrong", CompletionResult{})
	assert.ErrorIs(t, err, ErrLostLease)
}

func TestQueueLeaseExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Enqueue(ctx, EnqueueParams{Type: JobProduct, TargetURL: "https://example.test/p/expiry"})
	require.NoError(t, err)

	_, ok, err := s.Dequeue(ctx, "worker-a", 0)
	require.NoError(t, err)
	require.True(t, ok)

	// zero TTL means the lease is immediately expired; another worker
	// can dequeue the same job and observes attempts incremented again.
	job, ok, err := s.Dequeue(ctx, "worker-b", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 2, job.Attempts)
}
