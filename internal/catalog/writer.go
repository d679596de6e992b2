// Copyright 2025 James Ross
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jamesross/catalog-scrape-core/internal/obs"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

// Writer is the Catalog Writer: validated, idempotent persistence of
// navigation, category and product records, keyed by source_url.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// UpsertNavigations validates the full batch before writing any row;
// a single bad record rejects the whole batch.
func (w *Writer) UpsertNavigations(ctx context.Context, records []NavigationRecord) ([]StoredNavigation, error) {
	for _, r := range records {
		if err := ValidateNavigation(r); err != nil {
			return nil, err
		}
	}
	out := make([]StoredNavigation, 0, len(records))
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: upsert navigation: begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		var n StoredNavigation
		err := tx.QueryRowContext(ctx, `
			INSERT INTO navigation (title, source_url, parent_id, last_scraped_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (source_url) DO UPDATE SET
				title = EXCLUDED.title,
				parent_id = EXCLUDED.parent_id,
				last_scraped_at = now(),
				updated_at = now()
			RETURNING id, title, source_url, parent_id, last_scraped_at, created_at, updated_at`,
			r.Title, r.SourceURL, r.ParentID,
		).Scan(&n.ID, &n.Title, &n.SourceURL, &n.ParentID, &n.LastScrapedAt, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: upsert navigation %q: %w", r.SourceURL, err)
		}
		out = append(out, n)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: upsert navigation: commit: %w", err)
	}
	obs.CatalogUpserts.WithLabelValues("navigation").Add(float64(len(out)))
	return out, nil
}

// UpsertCategories validates the full batch before writing any row.
func (w *Writer) UpsertCategories(ctx context.Context, records []CategoryRecord) ([]StoredCategory, error) {
	for _, r := range records {
		if err := ValidateCategory(r); err != nil {
			return nil, err
		}
	}
	out := make([]StoredCategory, 0, len(records))
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: upsert category: begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		var c StoredCategory
		err := tx.QueryRowContext(ctx, `
			INSERT INTO category (navigation_id, title, source_url, last_scraped_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (source_url) DO UPDATE SET
				navigation_id = EXCLUDED.navigation_id,
				title = EXCLUDED.title,
				last_scraped_at = now(),
				updated_at = now()
			RETURNING id, navigation_id, title, source_url, product_count, last_scraped_at, created_at, updated_at`,
			r.NavigationID, r.Title, r.SourceURL,
		).Scan(&c.ID, &c.NavigationID, &c.Title, &c.SourceURL, &c.ProductCount, &c.LastScrapedAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: upsert category %q: %w", r.SourceURL, err)
		}
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: upsert category: commit: %w", err)
	}
	obs.CatalogUpserts.WithLabelValues("category").Add(float64(len(out)))
	return out, nil
}

// UpsertProducts validates the full batch (applying defaults) before
// writing any row. image_urls must already be canonical object-store
// URLs by the time they reach here: the worker's image stage runs
// before the persistence stage.
func (w *Writer) UpsertProducts(ctx context.Context, records []ProductRecord) ([]StoredProduct, error) {
	normalized := make([]ProductRecord, len(records))
	for i, r := range records {
		nr, err := ValidateProduct(r)
		if err != nil {
			return nil, err
		}
		normalized[i] = nr
	}
	out := make([]StoredProduct, 0, len(normalized))
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: upsert product: begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range normalized {
		imageURLs, err := json.Marshal(r.ImageURLs)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode image_urls: %w", err)
		}
		specs, err := json.Marshal(r.Specs)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode specs: %w", err)
		}

		var p StoredProduct
		var imageURLsOut, specsOut []byte
		err = tx.QueryRowContext(ctx, `
			INSERT INTO product (category_id, title, source_url, source_id, price, currency, image_urls, summary, specs, available, last_scraped_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (source_url) DO UPDATE SET
				category_id = EXCLUDED.category_id,
				title = EXCLUDED.title,
				source_id = EXCLUDED.source_id,
				price = EXCLUDED.price,
				currency = EXCLUDED.currency,
				image_urls = EXCLUDED.image_urls,
				summary = EXCLUDED.summary,
				specs = EXCLUDED.specs,
				available = EXCLUDED.available,
				last_scraped_at = now(),
				updated_at = now()
			RETURNING id, category_id, title, source_url, coalesce(source_id, ''), price, currency, image_urls, coalesce(summary, ''), specs, available, last_scraped_at, created_at, updated_at`,
			r.CategoryID, r.Title, r.SourceURL, r.SourceID, r.Price, r.Currency, imageURLs, r.Summary, specs, *r.Available,
		).Scan(&p.ID, &p.CategoryID, &p.Title, &p.SourceURL, &p.SourceID, &p.Price, &p.Currency, &imageURLsOut, &p.Summary, &specsOut, &p.Available, &p.LastScrapedAt, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: upsert product %q: %w", r.SourceURL, err)
		}
		if err := json.Unmarshal(imageURLsOut, &p.ImageURLs); err != nil {
			return nil, fmt.Errorf("catalog: decode image_urls: %w", err)
		}
		if err := json.Unmarshal(specsOut, &p.Specs); err != nil {
			return nil, fmt.Errorf("catalog: decode specs: %w", err)
		}
		out = append(out, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: upsert product: commit: %w", err)
	}
	obs.CatalogUpserts.WithLabelValues("product").Add(float64(len(out)))
	return out, nil
}

// RecomputeProductCounts recomputes category.product_count from the
// actual products table; categories with no products get zero. This
// resolves the open question on count maintenance in favor of batch
// recomputation rather than a per-upsert trigger.
func (w *Writer) RecomputeProductCounts(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `
		UPDATE category c
		SET product_count = sub.n, updated_at = now()
		FROM (
			SELECT c2.id, count(p.id) AS n
			FROM category c2
			LEFT JOIN product p ON p.category_id = c2.id
			GROUP BY c2.id
		) sub
		WHERE sub.id = c.id AND c.product_count IS DISTINCT FROM sub.n`)
	if err != nil {
		return fmt.Errorf("catalog: recompute product counts: %w", err)
	}
	return nil
}

// ScrapingResultSummary is returned by UpsertScrapingResult for the
// caller to fold into the job's completion metadata.
type ScrapingResultSummary struct {
	NavigationsWritten int
	CategoriesWritten  int
	ProductsWritten    int
}

// UpsertScrapingResult writes navigations, then categories, then
// products in dependency order, recomputes derived counts, and marks
// the originating job complete or failed accordingly. Partial writes
// from an earlier stage stand on failure; idempotency of the upserts
// guarantees correctness on the next attempt.
func (w *Writer) UpsertScrapingResult(ctx context.Context, q *queue.Store, jobID uuid.UUID, workerID string, start time.Time, result ScrapingResult) (ScrapingResultSummary, error) {
	var summary ScrapingResultSummary

	navs, err := w.UpsertNavigations(ctx, result.Navigations)
	if err != nil {
		return summary, w.failJob(ctx, q, jobID, workerID, err)
	}
	summary.NavigationsWritten = len(navs)

	cats, err := w.UpsertCategories(ctx, result.Categories)
	if err != nil {
		return summary, w.failJob(ctx, q, jobID, workerID, err)
	}
	summary.CategoriesWritten = len(cats)

	prods, err := w.UpsertProducts(ctx, result.Products)
	if err != nil {
		return summary, w.failJob(ctx, q, jobID, workerID, err)
	}
	summary.ProductsWritten = len(prods)

	if len(prods) > 0 || len(cats) > 0 {
		if err := w.RecomputeProductCounts(ctx); err != nil {
			return summary, w.failJob(ctx, q, jobID, workerID, err)
		}
	}

	err = q.Complete(ctx, jobID, workerID, queue.CompletionResult{
		ItemsProcessed: summary.NavigationsWritten + summary.CategoriesWritten + summary.ProductsWritten,
		DurationMS:     time.Since(start).Milliseconds(),
		Worker:         workerID,
	})
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// failJob marks the job failed and returns the error processJob should
// see: if the lease was lost out from under the failure write itself
// (the job was reaped mid-pipeline), that supersedes cause so callers
// treat it as an abort rather than a fresh terminal failure.
func (w *Writer) failJob(ctx context.Context, q *queue.Store, jobID uuid.UUID, workerID string, cause error) error {
	if failErr := q.Fail(ctx, jobID, workerID, cause.Error()); errors.Is(failErr, queue.ErrLostLease) {
		return queue.ErrLostLease
	}
	return cause
}
