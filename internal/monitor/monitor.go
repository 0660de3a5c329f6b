// Package monitor implements the Monitor Loop (spec §4.7): the scheduler's
// skeleton run independently per configured task, each enqueuing into its
// own queue when its cooldown is complete.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/hoststats"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/monitorstate"
)

// Task describes one periodic content-surface check.
type Task struct {
	ID       string
	Name     string
	URL      string
	Interval time.Duration
	Cron     string
}

// Monitor is the Monitor Loop.
type Monitor struct {
	tasks []Task
	jobs  *jobs.Repository
	state *monitorstate.Repository
	log   zerolog.Logger

	checkInterval time.Duration
	bus           *events.Bus

	mu      sync.Mutex
	stop    chan struct{}
	started bool
	stopped bool
}

// WithBus attaches an event bus the monitor publishes enqueue events to.
func (m *Monitor) WithBus(bus *events.Bus) *Monitor {
	m.bus = bus
	return m
}

// New wires a Monitor over the configured tasks.
func New(tasks []Task, checkInterval time.Duration, jobRepo *jobs.Repository, state *monitorstate.Repository, log zerolog.Logger) *Monitor {
	return &Monitor{
		tasks:         tasks,
		jobs:          jobRepo,
		state:         state,
		checkInterval: checkInterval,
		log:           log.With().Str("component", "monitor").Logger(),
		stop:          make(chan struct{}),
	}
}

// Start runs the tick loop in a background goroutine until Stop is called
// or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started && !m.stopped {
		m.mu.Unlock()
		m.log.Warn().Msg("monitor already started, ignoring")
		return
	}
	if m.stopped {
		m.stop = make(chan struct{})
		m.stopped = false
	}
	m.started = true
	m.mu.Unlock()

	m.log.Info().Int("tasks", len(m.tasks)).Msg("monitor started")

	go func() {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if err := m.tick(ctx); err != nil {
					m.log.Error().Err(err).Msg("monitor tick failed")
				}
			}
		}
	}()
}

// Stop terminates the loop at its next tick.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		close(m.stop)
		m.stopped = true
		m.started = false
		m.log.Info().Msg("monitor stopped")
	}
}

func (m *Monitor) tick(ctx context.Context) error {
	now := time.Now()

	if err := m.state.Heartbeat(ctx, monitorstate.Heartbeat{At: now, Host: hoststats.Read()}); err != nil {
		return fmt.Errorf("monitor: heartbeat: %w", err)
	}

	for _, task := range m.tasks {
		if err := m.tickTask(ctx, task, now); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) tickTask(ctx context.Context, task Task, now time.Time) error {
	enabled, err := m.state.IsEnabled(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("monitor: is enabled %s: %w", task.ID, err)
	}
	if !enabled {
		return nil
	}

	due, err := m.state.IsCooldownComplete(ctx, task.ID, now, task.Interval, task.Cron)
	if err != nil {
		return fmt.Errorf("monitor: cooldown %s: %w", task.ID, err)
	}
	if !due {
		return nil
	}

	job := &jobs.Job{
		ID:         jobs.NewID("monitor"),
		WorkflowID: fmt.Sprintf("monitor-%s", task.ID),
		Platform:   task.ID,
		Priority:   jobs.PriorityLow,
		Status:     jobs.StatusPending,
		CreatedAt:  now,
		Params: map[string]interface{}{
			"task_id":   task.ID,
			"task_name": task.Name,
			"url":       task.URL,
		},
	}

	if err := m.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("monitor: enqueue %s: %w", task.ID, err)
	}

	// last-completed-at is written by the executing node on success, not
	// here: enqueuing only means the check is scheduled, not done.
	m.log.Info().Str("task_id", task.ID).Str("job_id", job.ID).Msg("enqueued monitor job")

	if m.bus != nil {
		m.bus.Emit(events.JobEnqueued, "monitor", map[string]interface{}{
			"job_id":  job.ID,
			"task_id": task.ID,
		})
	}
	return nil
}
