// Copyright 2025 James Ross
package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshotEmpty(t *testing.T) {
	var m Metrics
	snap := m.Snapshot()
	assert.Zero(t, snap.Processed)
	assert.Zero(t, snap.SuccessRate)
	assert.Zero(t, snap.AverageProcessingTime)
}

func TestMetricsSnapshotComputesRates(t *testing.T) {
	var m Metrics
	m.record(true, 100*time.Millisecond)
	m.record(true, 300*time.Millisecond)
	m.record(false, 200*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Processed)
	assert.Equal(t, int64(2), snap.Succeeded)
	assert.Equal(t, int64(1), snap.Failed)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 0.0001)
	assert.InDelta(t, 0.2, snap.AverageProcessingTime, 0.0001)
	assert.False(t, snap.LastProcessedAt.IsZero())
}
