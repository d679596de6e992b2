// Copyright 2025 James Ross
// Package alerting dispatches monitoring alerts to a configured
// webhook: memory high-water, rolling error-rate threshold, and job
// terminal-failure notifications. HMAC-signs each payload and
// rate-limits outbound delivery.
package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"go.uber.org/zap"
)

// Kind identifies why an alert fired.
type Kind string

const (
	KindMemoryHighWater Kind = "memory_high_water"
	KindErrorRate       Kind = "error_rate"
	KindJobFailed       Kind = "job_failed"
)

// Alert is the JSON body POSTed to the webhook.
type Alert struct {
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Dispatcher sends Alerts to a webhook URL, HMAC-signing the body and
// rate-limiting outbound calls so a storm of terminal job failures
// cannot hammer the configured endpoint.
type Dispatcher struct {
	url     string
	secret  string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewDispatcher builds a Dispatcher. If url is empty the returned
// Dispatcher's Send is a no-op, so callers can construct one
// unconditionally from config without an extra nil check.
func NewDispatcher(url, secret string, ratePerMin int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	var limiter *rate.Limiter
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerMin)/60, ratePerMin)
	}
	return &Dispatcher{
		url:     url,
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log,
	}
}

// Send delivers an alert, dropping it (with a logged warning) if the
// rate limit is exceeded rather than blocking the caller.
func (d *Dispatcher) Send(ctx context.Context, a Alert) {
	if d.url == "" {
		return
	}
	if d.limiter != nil && !d.limiter.Allow() {
		d.log.Warn("alert dropped by rate limiter", zap.String("kind", string(a.Kind)))
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		d.log.Error("alert marshal failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		d.log.Error("alert request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set("X-Alert-Signature", d.sign(payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("alert delivery failed", zap.String("kind", string(a.Kind)), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.log.Warn("alert delivery rejected", zap.String("kind", string(a.Kind)), zap.Int("status", resp.StatusCode))
	}
}

func (d *Dispatcher) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(d.secret))
	h.Write(payload)
	return fmt.Sprintf("sha256=%x", h.Sum(nil))
}
