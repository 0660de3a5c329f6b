// Package monitorstate implements the Monitor State Repository (spec
// §4.5): per-task cooldown bookkeeping, enable flag, heartbeat and an
// execution counter, for the Monitor Loop's independent task schedules.
package monitorstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/scoutgrid/orchestrator/internal/hoststats"
	"github.com/scoutgrid/orchestrator/internal/store"
)

const (
	keyEnabledFmt = "monitor:enabled:%s"
	keyStateFmt   = "monitor:state:%s"
	keyStatus     = "monitor:status"
)

// TaskState is the persisted cooldown and counter state for one monitor
// task, stored as JSON under monitor:state:{task}.
type TaskState struct {
	LastCompletedAt time.Time `json:"last_completed_at"`
	TotalExecuted   int64     `json:"total_executed"`
}

// Heartbeat is the process-wide liveness payload for the monitor loop.
type Heartbeat struct {
	At   time.Time        `json:"at"`
	Host hoststats.Sample `json:"host"`
}

// Repository is the Monitor State Repository.
type Repository struct {
	store store.Store
}

// New wires a Repository atop a Store.
func New(s store.Store) *Repository {
	return &Repository{store: s}
}

// IsEnabled reports a task's enable flag, defaulting to true when unset.
func (r *Repository) IsEnabled(ctx context.Context, task string) (bool, error) {
	v, ok, err := r.store.Get(ctx, fmt.Sprintf(keyEnabledFmt, task))
	if err != nil {
		return false, fmt.Errorf("monitorstate: is enabled %s: %w", task, err)
	}
	if !ok {
		return true, nil
	}
	return v == "true", nil
}

// SetEnabled flips a task's enable flag.
func (r *Repository) SetEnabled(ctx context.Context, task string, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	if err := r.store.Set(ctx, fmt.Sprintf(keyEnabledFmt, task), v, 0); err != nil {
		return fmt.Errorf("monitorstate: set enabled %s: %w", task, err)
	}
	return nil
}

// Heartbeat writes the monitor loop's liveness payload.
func (r *Repository) Heartbeat(ctx context.Context, hb Heartbeat) error {
	raw, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("monitorstate: encode heartbeat: %w", err)
	}
	if err := r.store.Set(ctx, keyStatus, string(raw), 0); err != nil {
		return fmt.Errorf("monitorstate: write heartbeat: %w", err)
	}
	return nil
}

// GetHeartbeat reads the last-written heartbeat, if any.
func (r *Repository) GetHeartbeat(ctx context.Context) (*Heartbeat, error) {
	raw, ok, err := r.store.Get(ctx, keyStatus)
	if err != nil {
		return nil, fmt.Errorf("monitorstate: get heartbeat: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		return nil, fmt.Errorf("monitorstate: decode heartbeat: %w", err)
	}
	return &hb, nil
}

func (r *Repository) getState(ctx context.Context, task string) (TaskState, error) {
	raw, ok, err := r.store.Get(ctx, fmt.Sprintf(keyStateFmt, task))
	if err != nil {
		return TaskState{}, fmt.Errorf("monitorstate: get state %s: %w", task, err)
	}
	if !ok {
		return TaskState{}, nil
	}
	var st TaskState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return TaskState{}, fmt.Errorf("monitorstate: decode state %s: %w", task, err)
	}
	return st, nil
}

func (r *Repository) setState(ctx context.Context, task string, st TaskState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("monitorstate: encode state %s: %w", task, err)
	}
	if err := r.store.Set(ctx, fmt.Sprintf(keyStateFmt, task), string(raw), 0); err != nil {
		return fmt.Errorf("monitorstate: write state %s: %w", task, err)
	}
	return nil
}

// GetTotalExecuted returns the lifetime execution counter for a task.
func (r *Repository) GetTotalExecuted(ctx context.Context, task string) (int64, error) {
	st, err := r.getState(ctx, task)
	if err != nil {
		return 0, err
	}
	return st.TotalExecuted, nil
}

// MarkCompleted records a task's completion and increments its counter.
func (r *Repository) MarkCompleted(ctx context.Context, task string, at time.Time) error {
	st, err := r.getState(ctx, task)
	if err != nil {
		return err
	}
	st.LastCompletedAt = at
	st.TotalExecuted++
	return r.setState(ctx, task, st)
}

// IsCooldownComplete is spec §4.5: with a fixed interval, no completion
// yet or now - last-completed-at >= interval. With a cron expression, the
// next scheduled fire time after last-completed-at must not be in the
// future; no prior completion is always due.
func (r *Repository) IsCooldownComplete(ctx context.Context, task string, now time.Time, interval time.Duration, cronExpr string) (bool, error) {
	st, err := r.getState(ctx, task)
	if err != nil {
		return false, err
	}
	if st.LastCompletedAt.IsZero() {
		return true, nil
	}

	if cronExpr != "" {
		schedule, err := cron.ParseStandard(cronExpr)
		if err != nil {
			return false, fmt.Errorf("monitorstate: parse cron %q for %s: %w", cronExpr, task, err)
		}
		next := schedule.Next(st.LastCompletedAt)
		return !next.After(now), nil
	}

	return now.Sub(st.LastCompletedAt) >= interval, nil
}
