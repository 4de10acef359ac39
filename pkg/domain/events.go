package domain

import (
	"time"
)

// JobEventType defines the category of a persistence event.
type JobEventType string

const (
	EventJobRetry    JobEventType = "job_retry"
	EventJobSuccess  JobEventType = "job_success"
	EventJobConflict JobEventType = "job_conflict"
	EventJobFailed   JobEventType = "job_failed"
)

// JobEvent is emitted by the persistence scheduler for telemetry.
type JobEvent struct {
	Timestamp   time.Time     `json:"timestamp"`
	Type        JobEventType  `json:"type"`
	BlueprintID string        `json:"blueprint_id,omitempty"`
	Autosave    bool          `json:"autosave"`
	Attempt     int           `json:"attempt"`
	QueueDepth  int           `json:"queue_depth"`
	Elapsed     time.Duration `json:"elapsed"`
	Backoff     time.Duration `json:"backoff,omitempty"` // retries only
	Version     uint64        `json:"version"`
	Err         string        `json:"error,omitempty"`
}
