// Package jobs implements the Job Queue Repository (spec §4.2): per-platform
// priority queues plus job-record storage with state-dependent TTL.
package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is one of the fixed job lifecycle states (spec §3).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Priority mirrors the teacher's queue.Priority: higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// JobError is the {message, node-id, timestamp} shape spec §3 requires on
// a failed job.
type JobError struct {
	Message   string    `msgpack:"message" json:"message"`
	NodeID    string    `msgpack:"node_id" json:"node_id"`
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
}

// Job is a unit of work bound to one platform and one workflow (spec §3).
type Job struct {
	ID           string                 `msgpack:"job_id" json:"job_id"`
	WorkflowID   string                 `msgpack:"workflow_id" json:"workflow_id"`
	Platform     string                 `msgpack:"platform" json:"platform"`
	Priority     Priority               `msgpack:"priority" json:"priority"`
	Status       Status                 `msgpack:"status" json:"status"`
	Params       map[string]interface{} `msgpack:"params" json:"params"`
	CurrentNode  string                 `msgpack:"current_node" json:"current_node"`
	Progress     float64                `msgpack:"progress" json:"progress"`
	Result       map[string]interface{} `msgpack:"result" json:"result"`
	Error        *JobError              `msgpack:"error" json:"error"`
	CreatedAt    time.Time              `msgpack:"created_at" json:"created_at"`
	StartedAt    *time.Time             `msgpack:"started_at" json:"started_at"`
	CompletedAt  *time.Time             `msgpack:"completed_at" json:"completed_at"`
	Metadata     map[string]interface{} `msgpack:"metadata" json:"metadata"`
}

// NewID produces a time-ordered unique job id: a nanosecond timestamp
// prefix (so lexical and chronological order agree) plus a short random
// suffix to break ties between same-nanosecond ids.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), uuid.New().String()[:8])
}

// TTLForStatus returns the state-dependent TTL spec §4.2 mandates.
func TTLForStatus(s Status) time.Duration {
	switch s {
	case StatusRunning:
		return 2 * time.Hour
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 24 * time.Hour
	default: // pending
		return 1 * time.Hour
	}
}
