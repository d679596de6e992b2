// Copyright 2025 James Ross
// Package adminapi is the minimal HTTP control surface for operating the
// pipeline: health checks, metrics, job enqueue and worker pool
// lifecycle. It is deliberately not a JWT/RBAC admin API: this system's
// control surface has no multi-tenant operator audience, only an
// operations team with network-level access.
package adminapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jamesross/catalog-scrape-core/internal/imagepipeline"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
	"github.com/jamesross/catalog-scrape-core/internal/worker"
)

// Handler holds the dependencies exercised by the control surface.
type Handler struct {
	store  *queue.Store
	images *imagepipeline.Pipeline
	pool   *worker.Pool
	log    *zap.Logger

	runWorker func(ctx context.Context) error

	mu     sync.Mutex
	stopFn context.CancelFunc
}

// NewHandler builds the Handler. runWorker is the function that starts
// the worker pool's Run loop (typically pool.Run), invoked both by
// Start (at process boot) and by POST /worker/start, in its own
// goroutine with a cancellable context owned by this Handler.
func NewHandler(store *queue.Store, images *imagepipeline.Pipeline, pool *worker.Pool, log *zap.Logger) *Handler {
	h := &Handler{store: store, images: images, pool: pool, log: log}
	h.runWorker = pool.Run
	return h
}

// Start runs the worker pool under a context derived from parent,
// blocking until it returns. It records the derived cancel func the
// same way WorkerStart does, so a pool started at process boot can
// still be stopped through POST /worker/stop.
func (h *Handler) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	h.mu.Lock()
	h.stopFn = cancel
	h.mu.Unlock()

	err := h.runWorker(ctx)

	h.mu.Lock()
	h.stopFn = nil
	h.mu.Unlock()
	return err
}

// NewServer builds an *http.Server with the full control-surface route
// table registered on a gorilla/mux router.
func NewServer(addr string, h *Handler) *http.Server {
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	var handler http.Handler = router
	handler = RecoveryMiddleware(h.log)(handler)
	handler = RequestIDMiddleware()(handler)

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// RegisterRoutes registers the control surface routes onto router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/detailed", h.HealthDetailed).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.HealthReady).Methods(http.MethodGet)
	router.HandleFunc("/health/live", h.HealthLive).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/jobs", h.CreateJob).Methods(http.MethodPost)

	router.HandleFunc("/worker/start", h.WorkerStart).Methods(http.MethodPost)
	router.HandleFunc("/worker/stop", h.WorkerStop).Methods(http.MethodPost)
	router.HandleFunc("/worker/status", h.WorkerStatus).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(notFound)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
}
