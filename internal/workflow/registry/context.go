package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RateLimiter throttles outbound calls a node strategy makes to a given
// platform. Satisfied by internal/ratelimit.Tracker.
type RateLimiter interface {
	Wait(platform string) error
}

// Archiver persists a thumbnail's bytes out-of-band and returns its
// durable URL. Satisfied by internal/archival.Client.
type Archiver interface {
	Archive(platform, sourceURL string, data []byte) (string, error)
}

// Notifier sends an operational alert out-of-band. Satisfied by
// internal/notify.SlackClient.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// MonitorRecorder records a monitor task's completion, the signal its own
// cooldown reads (spec §4.5/§4.7). Satisfied by
// internal/monitorstate.Repository.
type MonitorRecorder interface {
	MarkCompleted(ctx context.Context, task string, at time.Time) error
}

// SharedState is the engine's per-job side-band map (spec §4.9): used by
// strategies to communicate data that isn't part of the DAG's declared
// output, such as job timing. Process-local, discarded on every job exit.
type SharedState interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

// Context is the per-node execution context spec §4.9 step 4.d
// constructs: job identity, the node's resolved config, the accumulated
// input, job params, platform, and the process-local collaborators a
// strategy may need.
type Context struct {
	JobID      string
	WorkflowID string
	NodeID     string

	Config map[string]interface{}
	Params map[string]interface{}
	Input  map[string]interface{}

	Platform       string
	PlatformConfig map[string]interface{}

	SharedState SharedState
	Logger      zerolog.Logger

	RateLimiter     RateLimiter
	Archiver        Archiver
	Notifier        Notifier
	MonitorRecorder MonitorRecorder
}
