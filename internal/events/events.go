// Package events implements the realtime event bus the admin surface's
// websocket feed subscribes to (spec §4.11): job, queue and lock state
// transitions are emitted here as they happen so the feed needs no
// polling loop of its own.
package events

import "time"

// EventType identifies the kind of state transition an Event carries.
type EventType string

const (
	JobEnqueued   EventType = "job_enqueued"
	JobStarted    EventType = "job_started"
	JobCompleted  EventType = "job_completed"
	JobFailed     EventType = "job_failed"
	QueueCleared  EventType = "queue_cleared"
	LockAcquired  EventType = "lock_acquired"
	LockReleased  EventType = "lock_released"
	LockForced    EventType = "lock_force_released"
	SchedulerTick EventType = "scheduler_tick"
	MonitorTick   EventType = "monitor_tick"
)

// Event is one notification published on the Bus.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}
