// Package scheduler implements the Scheduler Loop (spec §4.6): a
// single-threaded cooperative tick that enqueues at most one platform
// update job per tick, pacing platforms against a global and a
// per-platform cooldown.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/hoststats"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
)

// Config is the subset of internal/config.Config the loop needs.
type Config struct {
	Platforms            []string
	CheckInterval        time.Duration
	InterPlatformDelay   time.Duration
	SamePlatformCooldown time.Duration
	DefaultLimit         int
	DefaultBatchSize     int
	DefaultConcurrency   int
}

// Scheduler is the Scheduler Loop.
type Scheduler struct {
	cfg   Config
	jobs  *jobs.Repository
	state *schedulerstate.Repository
	locks *lock.Lock
	log   zerolog.Logger
	bus   *events.Bus

	mu      sync.Mutex
	stop    chan struct{}
	started bool
	stopped bool
}

// WithBus attaches an event bus the scheduler publishes tick/enqueue
// events to.
func (s *Scheduler) WithBus(bus *events.Bus) *Scheduler {
	s.bus = bus
	return s
}

// New wires a Scheduler.
func New(cfg Config, jobRepo *jobs.Repository, state *schedulerstate.Repository, locks *lock.Lock, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		jobs:  jobRepo,
		state: state,
		locks: locks,
		log:   log.With().Str("component", "scheduler").Logger(),
		stop:  make(chan struct{}),
	}
}

// Start runs the tick loop in a background goroutine until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started && !s.stopped {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler already started, ignoring")
		return
	}
	if s.stopped {
		s.stop = make(chan struct{})
		s.stopped = false
	}
	s.started = true
	s.mu.Unlock()

	s.log.Info().Dur("check_interval", s.cfg.CheckInterval).Msg("scheduler started")

	go func() {
		ticker := time.NewTicker(s.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.tick(ctx); err != nil {
					s.log.Error().Err(err).Msg("scheduler tick failed")
				}
			}
		}
	}()
}

// Stop terminates the loop at its next tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
		s.started = false
		s.log.Info().Msg("scheduler stopped")
	}
}

// tick is one pass of spec §4.6's algorithm.
func (s *Scheduler) tick(ctx context.Context) error {
	now := time.Now()

	scheduled, err := s.state.GetScheduledJobs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: scheduled jobs: %w", err)
	}
	if err := s.state.Heartbeat(ctx, schedulerstate.Heartbeat{At: now, ScheduledJobs: scheduled, Host: hoststats.Read()}); err != nil {
		return fmt.Errorf("scheduler: heartbeat: %w", err)
	}

	enabled, err := s.state.IsEnabled(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: is enabled: %w", err)
	}
	if !enabled {
		return nil
	}

	globalReady, err := s.state.IsGlobalCooldownComplete(ctx, now, s.cfg.InterPlatformDelay)
	if err != nil {
		return fmt.Errorf("scheduler: global cooldown: %w", err)
	}
	if !globalReady {
		return nil
	}

	for _, platform := range s.cfg.Platforms {
		eligible, err := s.platformEligible(ctx, platform, now)
		if err != nil {
			return err
		}
		if !eligible {
			continue
		}

		if err := s.enqueuePlatformJob(ctx, platform, now); err != nil {
			return err
		}
		// At most one enqueue per tick: this is what enforces the
		// inter-platform gap.
		break
	}

	return nil
}

func (s *Scheduler) platformEligible(ctx context.Context, platform string, now time.Time) (bool, error) {
	queueLen, err := s.jobs.QueueLength(ctx, platform)
	if err != nil {
		return false, fmt.Errorf("scheduler: queue length %s: %w", platform, err)
	}
	if queueLen > 0 {
		return false, nil
	}

	running, err := s.locks.GetRunningJob(ctx, platform)
	if err != nil {
		return false, fmt.Errorf("scheduler: running job %s: %w", platform, err)
	}
	if running != nil {
		return false, nil
	}

	cooldownDone, err := s.state.IsPlatformCooldownComplete(ctx, platform, now, s.cfg.SamePlatformCooldown)
	if err != nil {
		return false, fmt.Errorf("scheduler: platform cooldown %s: %w", platform, err)
	}
	return cooldownDone, nil
}

func (s *Scheduler) enqueuePlatformJob(ctx context.Context, platform string, now time.Time) error {
	saleStatus, err := s.state.NextSaleStatus(ctx, platform)
	if err != nil {
		return fmt.Errorf("scheduler: next sale status %s: %w", platform, err)
	}

	job := &jobs.Job{
		ID:         jobs.NewID("job"),
		WorkflowID: fmt.Sprintf("%s-update-v2", platform),
		Platform:   platform,
		Priority:   jobs.PriorityMedium,
		Status:     jobs.StatusPending,
		CreatedAt:  now,
		Params: map[string]interface{}{
			"platform":          platform,
			"link_url_pattern":  fmt.Sprintf("%s-{id}", platform),
			"sale_status":       string(saleStatus),
			"limit":             s.cfg.DefaultLimit,
			"batch_size":        s.cfg.DefaultBatchSize,
			"concurrency":       s.cfg.DefaultConcurrency,
			"update_sale_status": true,
		},
	}

	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("scheduler: enqueue %s: %w", platform, err)
	}
	if err := s.state.SetLastEnqueueAt(ctx, now); err != nil {
		return fmt.Errorf("scheduler: set last enqueue at: %w", err)
	}
	if err := s.state.IncrementOnSaleCounter(ctx, platform, saleStatus); err != nil {
		return fmt.Errorf("scheduler: increment on-sale counter %s: %w", platform, err)
	}
	if _, err := s.state.IncrementScheduledJobs(ctx); err != nil {
		return fmt.Errorf("scheduler: increment scheduled jobs: %w", err)
	}

	s.log.Info().
		Str("platform", platform).
		Str("job_id", job.ID).
		Str("sale_status", string(saleStatus)).
		Msg("enqueued platform update job")

	if s.bus != nil {
		s.bus.Emit(events.JobEnqueued, "scheduler", map[string]interface{}{
			"job_id":      job.ID,
			"platform":    platform,
			"sale_status": string(saleStatus),
		})
	}
	return nil
}
