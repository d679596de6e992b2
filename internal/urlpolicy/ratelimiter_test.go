// Copyright 2025 James Ross
package urlpolicy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostLimiterSeparatesHosts(t *testing.T) {
	hl := NewHostLimiter(50*time.Millisecond, time.Second)
	ctx := context.Background()

	start := time.Now()
	assert.NoError(t, hl.Wait(ctx, "https://a.test/x", "some-browser"))
	assert.NoError(t, hl.Wait(ctx, "https://b.test/x", "some-browser"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "distinct hosts must not share a bucket")
}

func TestHostLimiterAppliesBotDelay(t *testing.T) {
	hl := NewHostLimiter(time.Millisecond, 60*time.Millisecond)
	ctx := context.Background()

	assert.NoError(t, hl.Wait(ctx, "https://c.test/x", "Mozilla/5.0 SomeBot/1.0"))
	start := time.Now()
	assert.NoError(t, hl.Wait(ctx, "https://c.test/x", "Mozilla/5.0 SomeBot/1.0"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
