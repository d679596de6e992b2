// Copyright 2025 James Ross
// Package handlers defines the page-handler contract dispatched by the
// worker pool and a registry keyed by job type. A merchant-specific
// implementation is out of scope; this package also carries a minimal
// reference implementation exercised by tests and usable as a starting
// point for a real site integration.
package handlers

import (
	"context"

	"github.com/jamesross/catalog-scrape-core/internal/catalog"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

// ProductSummary is the lightweight record a category listing yields
// per product before the full product page is fetched.
type ProductSummary = catalog.ProductSummary

// Result is the typed output of dispatching a job to its handler. Only
// the field matching job.Type is populated.
type Result struct {
	Navigations []catalog.NavigationRecord
	Category    *catalog.CategoryRecord
	Products    []ProductSummary
	Product     *catalog.ProductRecord
}

// Handler extracts typed records from a single job's target URL.
type Handler interface {
	Handle(ctx context.Context, job queue.Job) (Result, error)
}

// Registry dispatches a job to the Handler registered for its type.
type Registry struct {
	handlers map[queue.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[queue.JobType]Handler)}
}

// Register binds a Handler to a job type, overwriting any previous
// registration.
func (r *Registry) Register(t queue.JobType, h Handler) {
	r.handlers[t] = h
}

// Dispatch invokes the handler registered for job.Type.
func (r *Registry) Dispatch(ctx context.Context, job queue.Job) (Result, error) {
	h, ok := r.handlers[job.Type]
	if !ok {
		return Result{}, ErrNoHandler
	}
	return h.Handle(ctx, job)
}
