// Copyright 2025 James Ross
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

// Health handles GET /health: liveness only, no downstream checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(), Status: "ok"})
}

// HealthLive handles GET /health/live: process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(), Status: "ok"})
}

// HealthReady handles GET /health/ready: the database is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.DB().PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{envelope: newEnvelope(), Status: "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(), Status: "ready"})
}

// HealthDetailed handles GET /health/detailed: database and object
// store checks, 503 if any fails.
func (h *Handler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := []downstreamCheck{}
	allOK := true

	dbCheck := downstreamCheck{Name: "database", Status: "ok"}
	if err := h.store.DB().PingContext(ctx); err != nil {
		dbCheck.Status, dbCheck.Error = "error", err.Error()
		allOK = false
	}
	checks = append(checks, dbCheck)

	if h.images != nil {
		osCheck := downstreamCheck{Name: "object_store", Status: "ok"}
		if err := h.images.Health(); err != nil {
			osCheck.Status, osCheck.Error = "error", err.Error()
			allOK = false
		}
		checks = append(checks, osCheck)
	}

	status := http.StatusOK
	statusText := "ok"
	if !allOK {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}
	writeJSON(w, status, healthDetailedResponse{envelope: newEnvelope(), Status: statusText, Downstream: checks})
}

// CreateJob handles POST /jobs: enqueue a job from a
// {type, target_url, priority?, metadata?} body.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	id, err := h.store.Enqueue(r.Context(), queue.EnqueueParams{
		Type:      queue.JobType(req.Type),
		TargetURL: req.TargetURL,
		Priority:  req.Priority,
		Metadata:  queue.Metadata(req.Metadata),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JOB", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createJobResponse{envelope: newEnvelope(), JobID: id.String()})
}

// WorkerStart handles POST /worker/start: starts the pool's Run loop
// in a background goroutine owned by this Handler.
func (h *Handler) WorkerStart(w http.ResponseWriter, r *http.Request) {
	if h.pool.Running() {
		writeError(w, http.StatusBadRequest, "ALREADY_RUNNING", "worker pool is already running")
		return
	}
	go func() {
		if err := h.Start(context.Background()); err != nil {
			h.log.Error("worker pool exited with error")
		}
	}()
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(), Status: "started"})
}

// WorkerStop handles POST /worker/stop: cancels the context passed to
// the running pool and returns without waiting for it to report stopped.
func (h *Handler) WorkerStop(w http.ResponseWriter, r *http.Request) {
	if !h.pool.Running() {
		writeError(w, http.StatusBadRequest, "NOT_RUNNING", "worker pool is not running")
		return
	}
	h.mu.Lock()
	stop := h.stopFn
	h.mu.Unlock()
	if stop == nil {
		writeError(w, http.StatusConflict, "NOT_STOPPABLE", "worker pool is running but was not started through this handler")
		return
	}
	stop()
	writeJSON(w, http.StatusOK, healthResponse{envelope: newEnvelope(), Status: "stopped"})
}

// WorkerStatus handles GET /worker/status: pool metrics plus running
// state; 503 if the pool has never been initialized.
func (h *Handler) WorkerStatus(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		writeError(w, http.StatusServiceUnavailable, "UNINITIALIZED", "worker pool is not initialized")
		return
	}
	snap := h.pool.Metrics()
	writeJSON(w, http.StatusOK, workerStatusResponse{
		envelope:              newEnvelope(),
		Running:               h.pool.Running(),
		Processed:             snap.Processed,
		Succeeded:             snap.Succeeded,
		Failed:                snap.Failed,
		SuccessRate:           snap.SuccessRate,
		AverageProcessingTime: snap.AverageProcessingTime,
	})
}
