// Package schedulerstate implements the Scheduler State Repository
// (spec §4.4): global pacing clock, per-platform on-sale rotation counter
// and cooldown bookkeeping, plus the scheduler's enable flag and heartbeat.
package schedulerstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scoutgrid/orchestrator/internal/hoststats"
	"github.com/scoutgrid/orchestrator/internal/store"
)

const (
	keyLastEnqueueAt = "scheduler:last_enqueue_at"
	keyEnabled       = "scheduler:enabled"
	keyStatus        = "scheduler:status"
	keyScheduledJobs = "scheduler:scheduled_jobs_total"
	platformStateFmt = "scheduler:state:%s"
)

// SaleStatus is the rotation mode selected for a platform's next job.
type SaleStatus string

const (
	OnSale  SaleStatus = "on-sale"
	OffSale SaleStatus = "off-sale"
)

// PlatformState is the on-sale counter and completion clock for one
// platform, persisted as a JSON blob under scheduler:state:{platform}.
type PlatformState struct {
	OnSaleCounter   int       `json:"on_sale_counter"`
	LastCompletedAt time.Time `json:"last_completed_at"`
}

// Heartbeat is the process-wide liveness payload written on every tick.
type Heartbeat struct {
	At            time.Time        `json:"at"`
	ScheduledJobs int64            `json:"scheduled_jobs"`
	Host          hoststats.Sample `json:"host"`
}

// Repository is the Scheduler State Repository.
type Repository struct {
	store store.Store
	ratio int
}

// New wires a Repository with the configured on-sale ratio.
func New(s store.Store, onSaleRatio int) *Repository {
	return &Repository{store: s, ratio: onSaleRatio}
}

// IsEnabled reports the scheduler enable flag, defaulting to true when
// unset (the flag exists only to let the admin surface pause scheduling).
func (r *Repository) IsEnabled(ctx context.Context) (bool, error) {
	v, ok, err := r.store.Get(ctx, keyEnabled)
	if err != nil {
		return false, fmt.Errorf("schedulerstate: is enabled: %w", err)
	}
	if !ok {
		return true, nil
	}
	return v == "true", nil
}

// SetEnabled flips the scheduler enable flag.
func (r *Repository) SetEnabled(ctx context.Context, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	if err := r.store.Set(ctx, keyEnabled, v, 0); err != nil {
		return fmt.Errorf("schedulerstate: set enabled: %w", err)
	}
	return nil
}

// Heartbeat writes the scheduler's liveness payload.
func (r *Repository) Heartbeat(ctx context.Context, hb Heartbeat) error {
	raw, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("schedulerstate: encode heartbeat: %w", err)
	}
	if err := r.store.Set(ctx, keyStatus, string(raw), 0); err != nil {
		return fmt.Errorf("schedulerstate: write heartbeat: %w", err)
	}
	return nil
}

// GetHeartbeat reads the last-written heartbeat, if any.
func (r *Repository) GetHeartbeat(ctx context.Context) (*Heartbeat, error) {
	raw, ok, err := r.store.Get(ctx, keyStatus)
	if err != nil {
		return nil, fmt.Errorf("schedulerstate: get heartbeat: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(raw), &hb); err != nil {
		return nil, fmt.Errorf("schedulerstate: decode heartbeat: %w", err)
	}
	return &hb, nil
}

// LastEnqueueAt returns the wall-clock time (stored as epoch milliseconds)
// of the last scheduler enqueue across all platforms, or the zero time if
// none yet.
func (r *Repository) LastEnqueueAt(ctx context.Context) (time.Time, error) {
	v, ok, err := r.store.Get(ctx, keyLastEnqueueAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedulerstate: last enqueue at: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	ms, err := parseUnixMilli(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedulerstate: parse last enqueue at: %w", err)
	}
	return ms, nil
}

// SetLastEnqueueAt records now as the global pacing clock.
func (r *Repository) SetLastEnqueueAt(ctx context.Context, now time.Time) error {
	if err := r.store.Set(ctx, keyLastEnqueueAt, formatUnixMilli(now), 0); err != nil {
		return fmt.Errorf("schedulerstate: set last enqueue at: %w", err)
	}
	return nil
}

// IsGlobalCooldownComplete is spec §4.4: now - last-enqueue-at >= delay.
func (r *Repository) IsGlobalCooldownComplete(ctx context.Context, now time.Time, delay time.Duration) (bool, error) {
	last, err := r.LastEnqueueAt(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	return now.Sub(last) >= delay, nil
}

func (r *Repository) getPlatformState(ctx context.Context, platform string) (PlatformState, error) {
	raw, ok, err := r.store.Get(ctx, fmt.Sprintf(platformStateFmt, platform))
	if err != nil {
		return PlatformState{}, fmt.Errorf("schedulerstate: get state %s: %w", platform, err)
	}
	if !ok {
		return PlatformState{}, nil
	}
	var st PlatformState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return PlatformState{}, fmt.Errorf("schedulerstate: decode state %s: %w", platform, err)
	}
	return st, nil
}

func (r *Repository) setPlatformState(ctx context.Context, platform string, st PlatformState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("schedulerstate: encode state %s: %w", platform, err)
	}
	if err := r.store.Set(ctx, fmt.Sprintf(platformStateFmt, platform), string(raw), 0); err != nil {
		return fmt.Errorf("schedulerstate: write state %s: %w", platform, err)
	}
	return nil
}

// IsPlatformCooldownComplete is spec §4.4: no last-completed-at, or
// now - it >= cooldown.
func (r *Repository) IsPlatformCooldownComplete(ctx context.Context, platform string, now time.Time, cooldown time.Duration) (bool, error) {
	st, err := r.getPlatformState(ctx, platform)
	if err != nil {
		return false, err
	}
	if st.LastCompletedAt.IsZero() {
		return true, nil
	}
	return now.Sub(st.LastCompletedAt) >= cooldown, nil
}

// SetLastCompletedAt records when platform's most recent job finished.
func (r *Repository) SetLastCompletedAt(ctx context.Context, platform string, at time.Time) error {
	st, err := r.getPlatformState(ctx, platform)
	if err != nil {
		return err
	}
	st.LastCompletedAt = at
	return r.setPlatformState(ctx, platform, st)
}

// NextSaleStatus is spec §3's invariant: counter < ratio => on-sale.
func (r *Repository) NextSaleStatus(ctx context.Context, platform string) (SaleStatus, error) {
	st, err := r.getPlatformState(ctx, platform)
	if err != nil {
		return "", err
	}
	if st.OnSaleCounter < r.ratio {
		return OnSale, nil
	}
	return OffSale, nil
}

// IncrementOnSaleCounter advances the rotation: off-sale resets the
// counter to 0; on-sale increments it, capped at ratio.
func (r *Repository) IncrementOnSaleCounter(ctx context.Context, platform string, current SaleStatus) error {
	st, err := r.getPlatformState(ctx, platform)
	if err != nil {
		return err
	}
	if current == OffSale {
		st.OnSaleCounter = 0
	} else {
		st.OnSaleCounter++
		if st.OnSaleCounter > r.ratio {
			st.OnSaleCounter = r.ratio
		}
	}
	return r.setPlatformState(ctx, platform, st)
}

// GetScheduledJobs returns the lifetime count of jobs the scheduler has
// enqueued (spec §4.6 step c).
func (r *Repository) GetScheduledJobs(ctx context.Context) (int64, error) {
	v, ok, err := r.store.Get(ctx, keyScheduledJobs)
	if err != nil {
		return 0, fmt.Errorf("schedulerstate: get scheduled jobs: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("schedulerstate: parse scheduled jobs: %w", err)
	}
	return n, nil
}

// IncrementScheduledJobs advances the lifetime scheduled-jobs counter and
// returns its new value.
func (r *Repository) IncrementScheduledJobs(ctx context.Context) (int64, error) {
	n, err := r.GetScheduledJobs(ctx)
	if err != nil {
		return 0, err
	}
	n++
	if err := r.store.Set(ctx, keyScheduledJobs, fmt.Sprintf("%d", n), 0); err != nil {
		return 0, fmt.Errorf("schedulerstate: set scheduled jobs: %w", err)
	}
	return n, nil
}

func formatUnixMilli(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}

func parseUnixMilli(s string) (time.Time, error) {
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
