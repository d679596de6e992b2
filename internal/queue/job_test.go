// Copyright 2025 James Ross
package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobTypeValid(t *testing.T) {
	assert.True(t, JobNavigation.Valid())
	assert.True(t, JobCategory.Valid())
	assert.True(t, JobProduct.Valid())
	assert.False(t, JobType("bogus").Valid())
	assert.False(t, JobType("").Valid())
}

func TestJobLocked(t *testing.T) {
	worker := "worker-1"
	j := Job{}
	assert.False(t, j.Locked())
	j.LockedBy = &worker
	assert.True(t, j.Locked())
}

func TestMetadataRoundTrip(t *testing.T) {
	m := Metadata{"items_processed": float64(2), "duration_ms": float64(150)}
	b, err := marshalMetadata(m)
	assert.NoError(t, err)

	got, err := unmarshalMetadata(b)
	assert.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestUnmarshalMetadataEmpty(t *testing.T) {
	got, err := unmarshalMetadata(nil)
	assert.NoError(t, err)
	assert.Equal(t, Metadata{}, got)
}
