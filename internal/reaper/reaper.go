// Copyright 2025 James Ross
// Package reaper recovers jobs abandoned by a dead or stalled worker
// and prunes terminal job rows past their retention window.
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jamesross/catalog-scrape-core/internal/config"
	"github.com/jamesross/catalog-scrape-core/internal/obs"
	"github.com/jamesross/catalog-scrape-core/internal/queue"
)

// Reaper periodically expires stale leases back to queued and deletes
// terminal rows past their retention TTL. Structurally grounded on the
// teacher's ticker-driven Run loop, scheduled here with robfig/cron
// instead of a bare time.Ticker since this domain has two independent
// sweep cadences (lease expiry vs. retention cleanup) rather than one.
type Reaper struct {
	cfg   *config.Config
	store *queue.Store
	log   *zap.Logger
}

func New(cfg *config.Config, store *queue.Store, log *zap.Logger) *Reaper {
	return &Reaper{cfg: cfg, store: store, log: log}
}

// Run schedules the lease-expiry sweep every half of cfg.Worker.LockTTL
// and the retention cleanup on cfg.Cleanup.Interval, and blocks until
// ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())

	leaseSpec := everySeconds(r.cfg.Worker.LockTTL / 2)
	if _, err := c.AddFunc(leaseSpec, func() { r.expireStaleLeases(ctx) }); err != nil {
		return err
	}

	cleanupSpec := everySeconds(r.cfg.Cleanup.Interval)
	if _, err := c.AddFunc(cleanupSpec, func() { r.cleanup(ctx) }); err != nil {
		return err
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

func (r *Reaper) expireStaleLeases(ctx context.Context) {
	n, err := r.store.ExpireStaleLeases(ctx, r.cfg.Worker.LockTTL)
	if err != nil {
		r.log.Warn("reaper: expire stale leases failed", obs.Err(err))
		return
	}
	if n > 0 {
		obs.ReaperRecovered.Add(float64(n))
		r.log.Info("reaper: recovered abandoned jobs", obs.Int("count", int(n)))
	}
}

func (r *Reaper) cleanup(ctx context.Context) {
	n, err := r.store.CleanupOlderThan(ctx, r.cfg.Cleanup.TTL)
	if err != nil {
		r.log.Warn("reaper: cleanup failed", obs.Err(err))
		return
	}
	if n > 0 {
		r.log.Info("reaper: pruned terminal jobs past retention", obs.Int("count", int(n)))
	}
}

// everySeconds builds a seconds-resolution cron spec from a duration,
// floored to one second so a misconfigured sub-second interval still
// schedules rather than erroring out of cron.Parse.
func everySeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return "@every " + time.Duration(secs*int(time.Second)).String()
}
