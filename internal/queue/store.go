// Copyright 2025 James Ross
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver, registered for database/sql

	"github.com/jamesross/catalog-scrape-core/internal/obs"
)

// Store is the durable priority job queue: enqueue, lease-based
// dequeue, complete, fail-with-retry, stats and cleanup, all backed by
// PostgreSQL row-level locking.
type Store struct {
	db *sql.DB
}

// Open connects to the catalog store and configures the pool. The
// caller owns the returned *sql.DB's lifetime via Store.Close.
func Open(databaseURL string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("queue: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-configured *sql.DB, as cmd/catalogd and the
// live-database integration tests do.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

const jobColumns = `id, type, target_url, priority, status, attempts, max_attempts, locked_at, locked_by, last_error, metadata, created_at, updated_at, completed_at`

func scanJob(row interface{ Scan(...interface{}) error }) (Job, error) {
	var j Job
	var meta []byte
	if err := row.Scan(
		&j.ID, &j.Type, &j.TargetURL, &j.Priority, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.LockedAt, &j.LockedBy, &j.LastError, &meta, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	); err != nil {
		return Job{}, err
	}
	m, err := unmarshalMetadata(meta)
	if err != nil {
		return Job{}, fmt.Errorf("queue: decode metadata: %w", err)
	}
	j.Metadata = m
	return j, nil
}

// EnqueueParams is the validated input to Enqueue.
type EnqueueParams struct {
	Type        JobType
	TargetURL   string
	Priority    int
	Metadata    Metadata
	MaxAttempts int
}

// Enqueue validates and inserts a new queued job. A validation error
// (unknown type, non-absolute URL) is returned before any write.
func (s *Store) Enqueue(ctx context.Context, p EnqueueParams) (uuid.UUID, error) {
	if !p.Type.Valid() {
		return uuid.UUID{}, fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	u, err := url.Parse(p.TargetURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return uuid.UUID{}, fmt.Errorf("%w: %q", ErrInvalidURL, p.TargetURL)
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("queue: encode metadata: %w", err)
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO scrape_job (type, target_url, priority, status, max_attempts, metadata)
		VALUES ($1, $2, $3, 'queued', $4, $5)
		RETURNING id`,
		string(p.Type), p.TargetURL, p.Priority, p.MaxAttempts, meta,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("queue: enqueue: %w", err)
	}
	obs.JobsEnqueued.WithLabelValues(string(p.Type)).Inc()
	return id, nil
}

// Dequeue leases the next eligible job for worker, or (Job{}, false, nil)
// if none is available. lockTTL determines which running jobs count as
// expired and are eligible for re-lease.
func (s *Store) Dequeue(ctx context.Context, workerID string, lockTTL time.Duration) (Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dequeue_job($1, $2)`,
		workerID, lockTTL.Minutes())
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("queue: dequeue: %w", err)
	}
	return j, true, nil
}

// CompletionResult is merged into a job's metadata on Complete.
type CompletionResult struct {
	ItemsProcessed int      `json:"items_processed"`
	DurationMS     int64    `json:"duration_ms"`
	Errors         []string `json:"errors,omitempty"`
	Worker         string   `json:"completing_worker"`
}

// Complete marks a leased job completed. The update predicate requires
// locked_by = workerID; a mismatch means the lease was lost and the
// caller must treat this as ErrLostLease.
func (s *Store) Complete(ctx context.Context, jobID uuid.UUID, workerID string, result CompletionResult) error {
	resultJSON, err := marshalResultPatch(result)
	if err != nil {
		return fmt.Errorf("queue: encode result: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scrape_job
		SET status = 'completed',
			locked_at = NULL,
			locked_by = NULL,
			completed_at = now(),
			updated_at = now(),
			metadata = metadata || $3::jsonb
		WHERE id = $1 AND locked_by = $2 AND status = 'running'`,
		jobID, workerID, resultJSON)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return requireOneRow(res, ErrLostLease)
}

// Fail records a failure for a leased job. If attempts remain, the job
// re-enters the queue immediately with locks cleared; otherwise it
// transitions to the terminal failed state. The same ownership
// predicate as Complete applies.
func (s *Store) Fail(ctx context.Context, jobID uuid.UUID, workerID string, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("queue: fail: begin: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRowContext(ctx, `
		SELECT attempts, max_attempts FROM scrape_job
		WHERE id = $1 AND locked_by = $2 AND status = 'running'
		FOR UPDATE`, jobID, workerID).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrLostLease
	}
	if err != nil {
		return fmt.Errorf("queue: fail: read: %w", err)
	}

	var res sql.Result
	if attempts < maxAttempts {
		res, err = tx.ExecContext(ctx, `
			UPDATE scrape_job
			SET status = 'queued', locked_at = NULL, locked_by = NULL,
				last_error = $3, updated_at = now()
			WHERE id = $1 AND locked_by = $2 AND status = 'running'`,
			jobID, workerID, errMsg)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE scrape_job
			SET status = 'failed', locked_at = NULL, locked_by = NULL,
				last_error = $3, completed_at = now(), updated_at = now()
			WHERE id = $1 AND locked_by = $2 AND status = 'running'`,
			jobID, workerID, errMsg)
	}
	if err != nil {
		return fmt.Errorf("queue: fail: update: %w", err)
	}
	if err := requireOneRow(res, ErrLostLease); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats is the per-status count plus the currently-locked count.
type Stats struct {
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Locked    int64 `json:"locked"`
}

func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM scrape_job GROUP BY status`)
	if err != nil {
		return st, fmt.Errorf("queue: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("queue: stats scan: %w", err)
		}
		switch Status(status) {
		case StatusQueued:
			st.Queued = n
		case StatusRunning:
			st.Running = n
		case StatusCompleted:
			st.Completed = n
		case StatusFailed:
			st.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM scrape_job WHERE locked_by IS NOT NULL`).Scan(&st.Locked); err != nil {
		return st, fmt.Errorf("queue: stats locked: %w", err)
	}
	return st, nil
}

// GetRetryable returns failed jobs whose attempts are still below
// max_attempts: the dead-letter / retryable set.
func (s *Store) GetRetryable(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM get_retryable_jobs($1)`, limit)
	if err != nil {
		return nil, fmt.Errorf("queue: retryable: %w", err)
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("queue: retryable scan: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Requeue manually resets a failed-but-retryable job back to queued,
// clearing its lock fields. Returns false if the job was not in a
// requeueable state.
func (s *Store) Requeue(ctx context.Context, jobID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scrape_job
		SET status = 'queued', locked_at = NULL, locked_by = NULL, updated_at = now()
		WHERE id = $1 AND status = 'failed' AND attempts < max_attempts`, jobID)
	if err != nil {
		return false, fmt.Errorf("queue: requeue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queue: requeue: %w", err)
	}
	return n == 1, nil
}

// ExpireStaleLeases re-queues running jobs whose lease has expired.
// This duplicates what dequeue_job already does implicitly; it exists
// as a background sweep that re-queues expired leases on a timer
// independent of any dequeue attempt. Expiry counts as a failure:
// attempts is not decremented or touched.
func (s *Store) ExpireStaleLeases(ctx context.Context, lockTTL time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scrape_job
		SET status = 'queued', locked_at = NULL, locked_by = NULL,
			last_error = 'lock expired', updated_at = now()
		WHERE status = 'running' AND locked_at <= now() - ($1 || ' seconds')::interval`,
		lockTTL.Seconds())
	if err != nil {
		return 0, fmt.Errorf("queue: expire leases: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOlderThan deletes completed/failed rows past the retention
// TTL, measured from completed_at.
func (s *Store) CleanupOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scrape_job
		WHERE status IN ('completed', 'failed')
		  AND completed_at IS NOT NULL
		  AND completed_at < now() - ($1 || ' seconds')::interval`,
		ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("queue: cleanup: %w", err)
	}
	return res.RowsAffected()
}

func requireOneRow(res sql.Result, ifZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ifZero
	}
	return nil
}
