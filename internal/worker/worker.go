// Copyright 2025 James Ross
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jamesross/catalog-scrape-core/internal/alerting"
	"github.com/jamesross/catalog-scrape-core/internal/breaker"
	"github.com/jamesross/catalog-scrape-core/internal/catalog"
	"github.com/jamesross/catalog-scrape-core/internal/config"
	"github.com/jamesross/catalog-scrape-core/internal/handlers"
	"github.com/jamesross/catalog-scrape-core/internal/imagepipeline"
	"github.com/jamesross/catalog-scrape-core/internal/obs"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

// Pool runs N concurrent pipeline executions drawing from the job
// queue, with graceful shutdown and fault isolation: one goroutine per
// configured worker count, a sync.WaitGroup, and a
// breaker.CircuitBreaker guarding the dispatch stage.
type Pool struct {
	cfg      *config.Config
	store    *queue.Store
	writer   *catalog.Writer
	registry *handlers.Registry
	images   *imagepipeline.Pipeline
	alerts   *alerting.Dispatcher
	log      *zap.Logger

	cb     *breaker.CircuitBreaker
	baseID string

	metrics Metrics

	running        int32
	errTotal       int64
	errWindowReset time.Time
	errWindowMu    sync.Mutex
}

func New(cfg *config.Config, store *queue.Store, writer *catalog.Writer, registry *handlers.Registry, images *imagepipeline.Pipeline, alerts *alerting.Dispatcher, log *zap.Logger) *Pool {
	cb := breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
	host, _ := os.Hostname()
	base := fmt.Sprintf("%s-%d-%d-%04x", host, os.Getpid(), time.Now().UnixNano(), rand.Intn(0x10000))
	return &Pool{
		cfg:      cfg,
		store:    store,
		writer:   writer,
		registry: registry,
		images:   images,
		alerts:   alerts,
		log:      log,
		cb:       cb,
		baseID:   base,
	}
}

// Run starts cfg.Worker.Concurrency consumer goroutines and blocks
// until ctx is cancelled. On cancellation it waits up to
// cfg.Worker.ShutdownTimeout for in-flight jobs before returning,
// abandoning any still-running job to lock-expiry recovery.
func (p *Pool) Run(ctx context.Context) error {
	atomic.StoreInt32(&p.running, 1)
	defer atomic.StoreInt32(&p.running, 0)

	go p.monitorMemory(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Worker.Concurrency; i++ {
		wg.Add(1)
		id := fmt.Sprintf("%s-%d", p.baseID, i)
		go func(workerID string) {
			defer wg.Done()
			p.runOne(ctx, workerID)
		}(id)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(p.cfg.Worker.ShutdownTimeout):
		p.log.Warn("shutdown timeout exceeded, abandoning in-flight jobs to lock expiry")
	}
	return nil
}

// Running reports whether the pool's goroutines are currently active.
func (p *Pool) Running() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// Metrics returns a snapshot of the pool's processing metrics.
func (p *Pool) Metrics() Snapshot {
	return p.metrics.Snapshot()
}

func (p *Pool) runOne(ctx context.Context, workerID string) {
	obs.WorkerActive.Inc()
	defer obs.WorkerActive.Dec()

	for ctx.Err() == nil {
		if !p.cb.Allow() {
			sleep(ctx, p.cfg.Worker.RequestDelayMS)
			continue
		}

		job, ok, err := p.store.Dequeue(ctx, workerID, p.cfg.Worker.LockTTL)
		if err != nil {
			p.log.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.cfg.Worker.PollInterval)
			continue
		}
		if !ok {
			sleep(ctx, p.cfg.Worker.PollInterval)
			continue
		}
		obs.JobsLeased.Inc()

		start := time.Now()
		success := p.processJob(ctx, workerID, job)
		dur := time.Since(start)
		obs.JobProcessingDuration.Observe(dur.Seconds())
		p.metrics.record(success, dur)

		prevState := p.cb.State()
		p.cb.Record(success)
		if newState := p.cb.State(); newState != prevState {
			switch newState {
			case breaker.Closed:
				obs.CircuitBreakerState.Set(0)
			case breaker.HalfOpen:
				obs.CircuitBreakerState.Set(1)
			case breaker.Open:
				obs.CircuitBreakerState.Set(2)
				obs.CircuitBreakerTrips.Inc()
			}
		}
		p.recordErrorRate(success)
	}
}

// processJob runs the three-stage pipeline for one leased job:
// dispatch, best-effort image materialization, then persistence. It
// never re-raises past this boundary: every terminal outcome is
// expressed by calling Complete/Fail on the job (Fail here for a
// dispatch error, Complete/Fail inside UpsertScrapingResult otherwise),
// except a lost lease, which aborts silently.
func (p *Pool) processJob(ctx context.Context, workerID string, job queue.Job) bool {
	result, err := p.registry.Dispatch(ctx, job)
	if err != nil {
		if errors.Is(err, queue.ErrLostLease) {
			return false
		}
		if failErr := p.store.Fail(ctx, job.ID, workerID, err.Error()); failErr != nil && !errors.Is(failErr, queue.ErrLostLease) {
			p.log.Error("fail() after dispatch error also failed", zap.Error(failErr))
		}
		p.recordOutcomeMetric(job)
		p.alertJobFailed(ctx, job, err)
		return false
	}

	scraped := p.toScrapingResult(ctx, job, result)

	start := time.Now()
	_, err = p.writer.UpsertScrapingResult(ctx, p.store, job.ID, workerID, start, scraped)
	if err != nil {
		if errors.Is(err, queue.ErrLostLease) {
			return false
		}
		p.recordOutcomeMetric(job)
		p.alertJobFailed(ctx, job, err)
		return false
	}
	obs.JobsCompleted.Inc()
	return true
}

// recordOutcomeMetric distinguishes a terminal failure from a retry
// using the job's own attempts/max_attempts, since Fail() already
// decided which of the two happened internally.
func (p *Pool) recordOutcomeMetric(job queue.Job) {
	if job.Attempts >= job.MaxAttempts {
		obs.JobsFailed.Inc()
	} else {
		obs.JobsRetried.Inc()
	}
}

// toScrapingResult maps a handler Result to the catalog writer's
// input shape and materializes any image URLs it carries through the
// image pipeline. Image failures are recorded as warnings and never
// fail the job, per the image-stage contract.
func (p *Pool) toScrapingResult(ctx context.Context, job queue.Job, result handlers.Result) catalog.ScrapingResult {
	var out catalog.ScrapingResult

	switch job.Type {
	case queue.JobNavigation:
		out.Navigations = result.Navigations
	case queue.JobCategory:
		if result.Category != nil {
			out.Categories = []catalog.CategoryRecord{*result.Category}
		}
		for _, ps := range result.Products {
			if ps.Thumbnail == "" {
				continue
			}
			if canonical, ok := p.materializeOne(ctx, ps.Thumbnail, job); ok {
				_ = canonical // thumbnails are best-effort and not persisted as products (see ProductSummary)
			}
		}
	case queue.JobProduct:
		if result.Product != nil {
			rec := *result.Product
			if len(rec.ImageURLs) > 0 && p.images != nil {
				rec.ImageURLs = p.materializeAll(ctx, rec.ImageURLs, job)
			}
			out.Products = []catalog.ProductRecord{rec}
		}
	}
	return out
}

func (p *Pool) materializeAll(ctx context.Context, rawURLs []string, job queue.Job) []string {
	results, errs := p.images.ProcessBatch(ctx, rawURLs, nil)
	canonical := make([]string, 0, len(results))
	for i, r := range results {
		if errs[i] != nil {
			obs.ImagesProcessed.WithLabelValues("error").Inc()
			p.log.Warn("image processing error", zap.String("job_id", job.ID.String()), zap.String("url", rawURLs[i]), zap.Error(errs[i]))
			continue
		}
		obs.ImagesProcessed.WithLabelValues("ok").Inc()
		canonical = append(canonical, r.URL)
	}
	return canonical
}

func (p *Pool) materializeOne(ctx context.Context, rawURL string, job queue.Job) (string, bool) {
	if p.images == nil {
		return "", false
	}
	result, err := p.images.ProcessImage(ctx, rawURL, nil)
	if err != nil {
		obs.ImagesProcessed.WithLabelValues("error").Inc()
		p.log.Warn("thumbnail processing error", zap.String("job_id", job.ID.String()), zap.Error(err))
		return "", false
	}
	obs.ImagesProcessed.WithLabelValues("ok").Inc()
	return result.URL, true
}

func (p *Pool) alertJobFailed(ctx context.Context, job queue.Job, cause error) {
	if p.alerts == nil {
		return
	}
	p.alerts.Send(ctx, alerting.Alert{
		Kind:    alerting.KindJobFailed,
		Message: fmt.Sprintf("job %s (%s) failed: %v", job.ID, job.Type, cause),
		Metadata: map[string]interface{}{
			"job_id":   job.ID.String(),
			"job_type": string(job.Type),
		},
		Timestamp: time.Now(),
	})
}

// recordErrorRate counts failures in a one-minute window that resets
// once a minute has passed. While that window holds at least one
// failure, it fires an error-rate alert if the pool's cumulative
// failure share (all jobs recorded in Metrics since the pool was
// created) is at or above the circuit breaker's failure threshold,
// reusing that configured threshold rather than introducing a second
// one. The failure share is not computed over the window alone.
func (p *Pool) recordErrorRate(success bool) {
	p.errWindowMu.Lock()
	defer p.errWindowMu.Unlock()

	now := time.Now()
	if now.Sub(p.errWindowReset) > time.Minute {
		p.errTotal = 0
		p.errWindowReset = now
	}
	if !success {
		p.errTotal++
	}
	if p.errTotal > 0 && p.alerts != nil {
		snap := p.metrics.Snapshot()
		if snap.Processed >= int64(p.cfg.CircuitBreaker.MinSamples) && (1-snap.SuccessRate) >= p.cfg.CircuitBreaker.FailureThreshold {
			p.alerts.Send(context.Background(), alerting.Alert{
				Kind:      alerting.KindErrorRate,
				Message:   fmt.Sprintf("rolling error rate %.2f exceeds threshold %.2f", 1-snap.SuccessRate, p.cfg.CircuitBreaker.FailureThreshold),
				Timestamp: now,
			})
		}
	}
}

// monitorMemory samples heap allocation on an interval and fires a
// memory high-water alert on every sample at or above the configured
// threshold. Runs for the lifetime of the pool alongside the consumer
// goroutines.
func (p *Pool) monitorMemory(ctx context.Context) {
	interval := p.cfg.Alerting.MemCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.alerts == nil {
				continue
			}
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			allocMB := float64(mem.Alloc) / 1024 / 1024
			if allocMB < float64(p.cfg.Alerting.MemThresholdMB) {
				continue
			}
			p.alerts.Send(ctx, alerting.Alert{
				Kind:    alerting.KindMemoryHighWater,
				Message: fmt.Sprintf("heap allocation %.1fMB exceeds threshold %dMB", allocMB, p.cfg.Alerting.MemThresholdMB),
				Metadata: map[string]interface{}{
					"alloc_mb":     allocMB,
					"threshold_mb": p.cfg.Alerting.MemThresholdMB,
					"goroutines":   runtime.NumGoroutine(),
				},
				Timestamp: time.Now(),
			})
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
