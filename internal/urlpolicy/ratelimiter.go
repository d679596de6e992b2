// Copyright 2025 James Ross
package urlpolicy

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// crawlerUserAgentHints flags user agents that get the longer,
// conservative crawl delay.
var crawlerUserAgentHints = []string{"bot", "crawl", "spider"}

// HostLimiter hands out a per-host rate.Limiter, lazily created on
// first use, resolving the open question of cross-worker rate
// limiting as an in-process-only token bucket shared by every worker
// in this process.
type HostLimiter struct {
	mu            sync.Mutex
	limiters      map[string]*rate.Limiter
	crawlDelay    time.Duration
	botCrawlDelay time.Duration
}

func NewHostLimiter(crawlDelay, botCrawlDelay time.Duration) *HostLimiter {
	return &HostLimiter{
		limiters:      make(map[string]*rate.Limiter),
		crawlDelay:    crawlDelay,
		botCrawlDelay: botCrawlDelay,
	}
}

// Wait blocks until a request to rawURL's host, made with the given
// user agent, is permitted by that host's crawl-delay budget.
func (h *HostLimiter) Wait(ctx context.Context, rawURL, userAgent string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	delay := h.crawlDelay
	lowered := strings.ToLower(userAgent)
	for _, hint := range crawlerUserAgentHints {
		if strings.Contains(lowered, hint) {
			delay = h.botCrawlDelay
			break
		}
	}

	limiter := h.limiterFor(u.Hostname(), delay)
	return limiter.Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string, delay time.Duration) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.limiters[host]; ok {
		return l
	}
	every := delay
	if every <= 0 {
		every = time.Millisecond
	}
	l := rate.NewLimiter(rate.Every(every), 1)
	h.limiters[host] = l
	return l
}
