// Copyright 2025 James Ross
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies which page handler a job dispatches to.
type JobType string

const (
	JobNavigation JobType = "navigation"
	JobCategory   JobType = "category"
	JobProduct    JobType = "product"
)

func (t JobType) Valid() bool {
	switch t {
	case JobNavigation, JobCategory, JobProduct:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a scrape_job row.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metadata is a free-form property bag. It is serialized verbatim and
// never interpreted by the queue itself.
type Metadata map[string]interface{}

// Job mirrors one row of scrape_job.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Type        JobType    `json:"type"`
	TargetURL   string     `json:"target_url"`
	Priority    int        `json:"priority"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	LockedBy    *string    `json:"locked_by,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	Metadata    Metadata   `json:"metadata"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Locked reports whether the job currently holds a lease.
func (j Job) Locked() bool {
	return j.LockedBy != nil && *j.LockedBy != ""
}

func marshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(m)
}

func marshalResultPatch(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func unmarshalMetadata(b []byte) (Metadata, error) {
	if len(b) == 0 {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = Metadata{}
	}
	return m, nil
}
