// Copyright 2025 James Ross
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamesross/catalog-scrape-core/internal/catalog"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
	"github.com/jamesross/catalog-scrape-core/internal/urlpolicy"
)

// maxPageBytes caps a fetched page body, mirroring the image
// pipeline's size-cap posture for any remote fetch.
const maxPageBytes = 2 * 1024 * 1024

// fetcher is the shared HTTP-fetch-plus-policy-check step every
// reference handler runs before extraction. It is not a merchant
// integration: it expects the target URL to answer with a JSON
// document in one of the shapes below, which is enough to exercise
// the dispatch contract end to end in tests without a real site.
type fetcher struct {
	client    *http.Client
	limiter   *urlpolicy.HostLimiter
	userAgent string
}

func newFetcher(client *http.Client, limiter *urlpolicy.HostLimiter, userAgent string) fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return fetcher{client: client, limiter: limiter, userAgent: userAgent}
}

func (f fetcher) fetchJSON(ctx context.Context, rawURL string, out interface{}) error {
	decision := urlpolicy.Evaluate(rawURL)
	if !decision.Allowed {
		return fmt.Errorf("%w: %s (%s)", ErrExtractionFailed, rawURL, decision.Reason)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL, f.userAgent); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("handlers: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("handlers: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("handlers: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		return fmt.Errorf("handlers: read %s: %w", rawURL, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return nil
}

// NavigationHandler discovers top-level taxonomy entries.
type NavigationHandler struct{ fetcher }

func NewNavigationHandler(client *http.Client, limiter *urlpolicy.HostLimiter, userAgent string) *NavigationHandler {
	return &NavigationHandler{fetcher: newFetcher(client, limiter, userAgent)}
}

func (h *NavigationHandler) Handle(ctx context.Context, job queue.Job) (Result, error) {
	var page struct {
		Navigations []catalog.NavigationRecord `json:"navigations"`
	}
	if err := h.fetchJSON(ctx, job.TargetURL, &page); err != nil {
		return Result{}, err
	}
	return Result{Navigations: page.Navigations}, nil
}

// CategoryHandler reads a category and its product summaries from the
// single document at the job's target URL. It does not follow further
// listing pages.
type CategoryHandler struct{ fetcher }

func NewCategoryHandler(client *http.Client, limiter *urlpolicy.HostLimiter, userAgent string) *CategoryHandler {
	return &CategoryHandler{fetcher: newFetcher(client, limiter, userAgent)}
}

func (h *CategoryHandler) Handle(ctx context.Context, job queue.Job) (Result, error) {
	var page struct {
		Category catalog.CategoryRecord `json:"category"`
		Products []ProductSummary       `json:"products"`
	}
	if err := h.fetchJSON(ctx, job.TargetURL, &page); err != nil {
		return Result{}, err
	}
	if page.Category.SourceURL == "" {
		return Result{}, fmt.Errorf("%w: missing category.source_url", ErrExtractionFailed)
	}
	return Result{Category: &page.Category, Products: page.Products}, nil
}

// ProductHandler extracts full product detail, including image URLs
// resolved against a base by the caller before upload.
type ProductHandler struct{ fetcher }

func NewProductHandler(client *http.Client, limiter *urlpolicy.HostLimiter, userAgent string) *ProductHandler {
	return &ProductHandler{fetcher: newFetcher(client, limiter, userAgent)}
}

func (h *ProductHandler) Handle(ctx context.Context, job queue.Job) (Result, error) {
	var page struct {
		Product catalog.ProductRecord `json:"product"`
	}
	if err := h.fetchJSON(ctx, job.TargetURL, &page); err != nil {
		return Result{}, err
	}
	if page.Product.Title == "" {
		return Result{}, fmt.Errorf("%w: missing product.title", ErrExtractionFailed)
	}
	if page.Product.SourceURL == "" {
		page.Product.SourceURL = job.TargetURL
	}
	return Result{Product: &page.Product}, nil
}
