// Package lock implements the Platform Lock (spec §4.3): mutual exclusion
// for "one job per platform at a time", plus the companion running-job
// record.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/vmihailenco/msgpack/v5"
)

// RunningJob is the companion record describing the job currently holding
// a platform's lock.
type RunningJob struct {
	JobID      string    `msgpack:"job_id" json:"job_id"`
	WorkflowID string    `msgpack:"workflow_id" json:"workflow_id"`
	StartedAt  time.Time `msgpack:"started_at" json:"started_at"`
}

func lockKey(platform string) string { return fmt.Sprintf("workflow:lock:platform:%s", platform) }
func runningKey(platform string) string {
	return fmt.Sprintf("workflow:running:platform:%s", platform)
}
func killKey(platform string) string { return fmt.Sprintf("worker:kill:%s", platform) }

// killFlagTTL auto-expires a kill flag so a relaunched worker does not
// immediately self-kill (spec §5 cancellation rules).
const killFlagTTL = 60 * time.Second

// Lock is a time-bounded mutual-exclusion primitive, one per platform.
type Lock struct {
	store store.Store
	ttl   time.Duration
}

// New wires a Lock atop a Store with the configured LOCK_TTL.
func New(s store.Store, ttl time.Duration) *Lock {
	return &Lock{store: s, ttl: ttl}
}

// Acquire attempts to atomically claim platform's lock. A time-bounded
// primitive trades perfect mutual exclusion for freedom from eternal
// deadlocks on worker crashes; see spec §4.3 rationale.
func (l *Lock) Acquire(ctx context.Context, platform string) (bool, error) {
	acquired, err := l.store.SetNX(ctx, lockKey(platform), time.Now().Format(time.RFC3339Nano), l.ttl)
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", platform, err)
	}
	return acquired, nil
}

// Release unconditionally deletes platform's lock. The caller is trusted
// to release only its own lock; the TTL bounds exposure otherwise.
func (l *Lock) Release(ctx context.Context, platform string) error {
	if err := l.store.Delete(ctx, lockKey(platform)); err != nil {
		return fmt.Errorf("lock: release %s: %w", platform, err)
	}
	return nil
}

// IsLocked reports whether platform currently has a lock holder.
func (l *Lock) IsLocked(ctx context.Context, platform string) (bool, error) {
	_, ok, err := l.store.Get(ctx, lockKey(platform))
	if err != nil {
		return false, fmt.Errorf("lock: is locked %s: %w", platform, err)
	}
	return ok, nil
}

// GetTTL returns the remaining lifetime of platform's lock.
func (l *Lock) GetTTL(ctx context.Context, platform string) (time.Duration, error) {
	ttl, err := l.store.TTL(ctx, lockKey(platform))
	if err != nil {
		return 0, fmt.Errorf("lock: ttl %s: %w", platform, err)
	}
	return ttl, nil
}

// SetRunningJob records which job currently holds platform's lock, with
// the same TTL as the lock itself.
func (l *Lock) SetRunningJob(ctx context.Context, platform string, job RunningJob) error {
	raw, err := msgpack.Marshal(job)
	if err != nil {
		return fmt.Errorf("lock: encode running job %s: %w", platform, err)
	}
	if err := l.store.Set(ctx, runningKey(platform), string(raw), l.ttl); err != nil {
		return fmt.Errorf("lock: set running job %s: %w", platform, err)
	}
	return nil
}

// GetRunningJob returns the job currently recorded as running for
// platform, or nil if none.
func (l *Lock) GetRunningJob(ctx context.Context, platform string) (*RunningJob, error) {
	raw, ok, err := l.store.Get(ctx, runningKey(platform))
	if err != nil {
		return nil, fmt.Errorf("lock: get running job %s: %w", platform, err)
	}
	if !ok {
		return nil, nil
	}
	var job RunningJob
	if err := msgpack.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("lock: decode running job %s: %w", platform, err)
	}
	return &job, nil
}

// ClearRunningJob removes the running-job record for platform.
func (l *Lock) ClearRunningJob(ctx context.Context, platform string) error {
	if err := l.store.Delete(ctx, runningKey(platform)); err != nil {
		return fmt.Errorf("lock: clear running job %s: %w", platform, err)
	}
	return nil
}

// SetKillFlag requests that platform's worker abandon its current job and
// exit. The flag self-expires after killFlagTTL.
func (l *Lock) SetKillFlag(ctx context.Context, platform string) error {
	if err := l.store.Set(ctx, killKey(platform), "1", killFlagTTL); err != nil {
		return fmt.Errorf("lock: set kill flag %s: %w", platform, err)
	}
	return nil
}

// IsKillFlagSet reports whether platform's worker has been asked to exit.
func (l *Lock) IsKillFlagSet(ctx context.Context, platform string) (bool, error) {
	_, ok, err := l.store.Get(ctx, killKey(platform))
	if err != nil {
		return false, fmt.Errorf("lock: is kill flag set %s: %w", platform, err)
	}
	return ok, nil
}

// ClearKillFlag removes platform's kill flag, e.g. once its worker has
// exited in response to it.
func (l *Lock) ClearKillFlag(ctx context.Context, platform string) error {
	if err := l.store.Delete(ctx, killKey(platform)); err != nil {
		return fmt.Errorf("lock: clear kill flag %s: %w", platform, err)
	}
	return nil
}

// ForceRelease immediately clears a stuck platform lock: it clears the
// running-job record and releases the lock. It does not touch the job
// record itself — a caller that needs the stuck job marked failed (spec
// §7 scenario 4) must do so first, using the RunningJob from
// GetRunningJob, before calling ForceRelease out from under it.
// Used by the admin control surface.
func (l *Lock) ForceRelease(ctx context.Context, platform string) (hadRunningJob bool, err error) {
	running, err := l.GetRunningJob(ctx, platform)
	if err != nil {
		return false, err
	}
	if err := l.ClearRunningJob(ctx, platform); err != nil {
		return false, err
	}
	if err := l.Release(ctx, platform); err != nil {
		return false, err
	}
	return running != nil, nil
}
