package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks a pipeline run through the run log.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run is one pipeline execution recorded in the run log.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Pages       int        `json:"pages"`
	Inserted    int        `json:"inserted"`
	Updated     int        `json:"updated"`
	Deleted     int        `json:"deleted"`
	Unchanged   int        `json:"unchanged"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
}

// NewRun creates a running Run with a fresh ID.
func NewRun(source string, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Status:    RunRunning,
		Source:    source,
		StartedAt: now.UTC(),
	}
}
