// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stats mirrors queue.Stats's shape without importing the queue
// package from obs, which would make obs depend on the domain layer
// it's meant to stay beneath.
type Stats struct {
	Queued    int64
	Running   int64
	Completed int64
	Failed    int64
	Locked    int64
}

// StatsFunc adapts any stats source (typically *queue.Store.GetStats)
// into the shape StartStatsPoller polls.
type StatsFunc func(ctx context.Context) (Stats, error)

// StartStatsPoller samples queue state counts on an interval and
// updates QueueStateCount from a Postgres GROUP BY count query.
func StartStatsPoller(ctx context.Context, poll StatsFunc, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := poll(ctx)
				if err != nil {
					log.Debug("queue stats poll error", Err(err))
					continue
				}
				QueueStateCount.WithLabelValues("queued").Set(float64(stats.Queued))
				QueueStateCount.WithLabelValues("running").Set(float64(stats.Running))
				QueueStateCount.WithLabelValues("completed").Set(float64(stats.Completed))
				QueueStateCount.WithLabelValues("failed").Set(float64(stats.Failed))
				QueueStateCount.WithLabelValues("locked").Set(float64(stats.Locked))
			}
		}
	}()
}
