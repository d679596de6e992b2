// Copyright 2025 James Ross
package queue

import (
	"database/sql"
	"fmt"
)

// schemaStatements are executed in order at startup, mirroring the
// teacher's job-budgeting.(*BudgetService).initializeSchema pattern:
// idempotent CREATE TABLE/INDEX/FUNCTION statements run once against
// *sql.DB before any traffic is served.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS navigation (
		id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		title text NOT NULL,
		source_url text NOT NULL UNIQUE,
		parent_id uuid REFERENCES navigation(id),
		last_scraped_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS category (
		id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		navigation_id uuid REFERENCES navigation(id),
		title text NOT NULL,
		source_url text NOT NULL UNIQUE,
		product_count integer NOT NULL DEFAULT 0,
		last_scraped_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS product (
		id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		category_id uuid REFERENCES category(id),
		title text NOT NULL,
		source_url text NOT NULL UNIQUE,
		source_id text,
		price numeric(12,2),
		currency char(3) NOT NULL DEFAULT 'GBP',
		image_urls jsonb NOT NULL DEFAULT '[]',
		summary text,
		specs jsonb NOT NULL DEFAULT '{}',
		available boolean NOT NULL DEFAULT true,
		last_scraped_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_job (
		id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		type text NOT NULL,
		target_url text NOT NULL,
		priority integer NOT NULL DEFAULT 0,
		status text NOT NULL DEFAULT 'queued',
		attempts integer NOT NULL DEFAULT 0,
		max_attempts integer NOT NULL DEFAULT 3,
		locked_at timestamptz,
		locked_by text,
		last_error text,
		metadata jsonb NOT NULL DEFAULT '{}',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		completed_at timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_job_dequeue ON scrape_job (status, priority DESC, created_at ASC)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_job_locked_at ON scrape_job (locked_at)`,
	`CREATE INDEX IF NOT EXISTS idx_category_navigation_id ON category (navigation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_product_category_id ON product (category_id)`,
	// dequeue_job implements the lease transaction: select the
	// oldest-ready, highest-priority queued-or-expired row with
	// SKIP LOCKED, then lease it in place.
	`CREATE OR REPLACE FUNCTION dequeue_job(p_worker_id text, p_lock_ttl_minutes double precision)
	RETURNS SETOF scrape_job AS $$
	DECLARE
		v_job_id uuid;
	BEGIN
		SELECT id INTO v_job_id
		FROM scrape_job
		WHERE status = 'queued'
		   OR (status = 'running' AND locked_at <= now() - make_interval(secs => p_lock_ttl_minutes * 60))
		ORDER BY priority DESC, created_at ASC, id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1;

		IF v_job_id IS NULL THEN
			RETURN;
		END IF;

		RETURN QUERY
		UPDATE scrape_job
		SET status = 'running',
			locked_by = p_worker_id,
			locked_at = now(),
			attempts = attempts + 1,
			updated_at = now()
		WHERE id = v_job_id
		RETURNING *;
	END;
	$$ LANGUAGE plpgsql`,
	`CREATE OR REPLACE FUNCTION get_retryable_jobs(p_limit integer)
	RETURNS SETOF scrape_job AS $$
		SELECT * FROM scrape_job
		WHERE status = 'failed' AND attempts < max_attempts
		ORDER BY updated_at DESC
		LIMIT p_limit
	$$ LANGUAGE sql STABLE`,
}

// InitSchema creates tables, indexes and stored procedures if they do
// not already exist. It is safe to call on every process start.
func InitSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("queue: apply schema: %w", err)
		}
	}
	return nil
}
