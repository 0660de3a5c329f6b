// Package worker implements the per-platform Worker loop (spec §4.10):
// acquire the platform lock, dequeue, execute via the engine, release,
// repeat, observing a runtime kill signal.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
)

// Executor is the subset of *engine.Engine a Worker needs, an interface so
// tests can substitute a fake without building a real workflow definition.
type Executor interface {
	Execute(ctx context.Context, job *jobs.Job) error
}

// Config tunes the idle-sleep cadence between lock/dequeue attempts.
type Config struct {
	Platform  string
	IdleSleep time.Duration
}

// Worker runs one platform's single-job-at-a-time loop.
type Worker struct {
	cfg        Config
	jobs       *jobs.Repository
	locks      *lock.Lock
	schedState *schedulerstate.Repository
	engine     Executor
	log        zerolog.Logger
	bus        *events.Bus

	stop chan struct{}
	done chan struct{}
}

// WithBus attaches an event bus the worker publishes lifecycle events to.
func (w *Worker) WithBus(bus *events.Bus) *Worker {
	w.bus = bus
	return w
}

func (w *Worker) emit(eventType events.EventType, data map[string]interface{}) {
	if w.bus != nil {
		w.bus.Emit(eventType, "worker", data)
	}
}

// New wires a Worker for one platform. schedState records when the
// platform's last job finished, the signal the scheduler's per-platform
// cooldown reads (spec §4.4/§4.10).
func New(cfg Config, jobRepo *jobs.Repository, locks *lock.Lock, schedState *schedulerstate.Repository, engine Executor, log zerolog.Logger) *Worker {
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = 500 * time.Millisecond
	}
	return &Worker{
		cfg:        cfg,
		jobs:       jobRepo,
		locks:      locks,
		schedState: schedState,
		engine:     engine,
		log:        log.With().Str("component", "worker").Str("platform", cfg.Platform).Logger(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run executes the loop until ctx is cancelled, Stop is called, or the
// platform's kill flag is observed. It blocks until the loop exits.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopping: context cancelled")
			return
		case <-w.stop:
			w.log.Info().Msg("worker stopping: stop requested")
			return
		default:
		}

		killed, err := w.locks.IsKillFlagSet(ctx, w.cfg.Platform)
		if err != nil {
			w.log.Error().Err(err).Msg("check kill flag")
			time.Sleep(w.cfg.IdleSleep)
			continue
		}
		if killed {
			w.log.Warn().Msg("kill flag set, exiting")
			return
		}

		if w.tick(ctx) {
			continue
		}
		time.Sleep(w.cfg.IdleSleep)
	}
}

// Stop requests that Run return at its next loop iteration.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// Done reports when the Run loop has actually exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// tick performs one acquire/dequeue/execute/release pass. It returns true
// when a job was found and processed (so the caller can loop immediately
// instead of idling).
func (w *Worker) tick(ctx context.Context) bool {
	acquired, err := w.locks.Acquire(ctx, w.cfg.Platform)
	if err != nil {
		w.log.Error().Err(err).Msg("acquire lock")
		return false
	}
	if !acquired {
		return false
	}
	w.emit(events.LockAcquired, map[string]interface{}{"platform": w.cfg.Platform})

	job, err := w.jobs.Dequeue(ctx, w.cfg.Platform)
	if err != nil {
		w.log.Error().Err(err).Msg("dequeue")
		w.releaseLock(ctx)
		return false
	}
	if job == nil {
		w.releaseLock(ctx)
		return false
	}

	w.runJob(ctx, job)
	return true
}

func (w *Worker) runJob(ctx context.Context, job *jobs.Job) {
	logger := w.log.With().Str("job_id", job.ID).Str("workflow_id", job.WorkflowID).Logger()

	now := time.Now()
	job.Status = jobs.StatusRunning
	job.StartedAt = &now
	if err := w.jobs.Update(ctx, job); err != nil {
		logger.Error().Err(err).Msg("persist running status")
	}
	w.emit(events.JobStarted, map[string]interface{}{"job_id": job.ID, "platform": w.cfg.Platform})

	if err := w.locks.SetRunningJob(ctx, w.cfg.Platform, lock.RunningJob{
		JobID:      job.ID,
		WorkflowID: job.WorkflowID,
		StartedAt:  now,
	}); err != nil {
		logger.Error().Err(err).Msg("record running job")
	}

	execErr := w.engine.Execute(ctx, job)

	killed, killErr := w.locks.IsKillFlagSet(ctx, w.cfg.Platform)
	if killErr == nil && killed {
		job.Status = jobs.StatusFailed
		job.Error = &jobs.JobError{
			Message:   "worker restart requested",
			NodeID:    job.CurrentNode,
			Timestamp: time.Now(),
		}
		if err := w.jobs.Update(ctx, job); err != nil {
			logger.Error().Err(err).Msg("persist kill-flag failure")
		}
		w.emit(events.JobFailed, map[string]interface{}{"job_id": job.ID, "platform": w.cfg.Platform, "reason": "worker restart requested"})
		w.finishJob(ctx, logger)
		return
	}

	if execErr != nil {
		logger.Error().Err(execErr).Msg("job execution failed")
		w.emit(events.JobFailed, map[string]interface{}{"job_id": job.ID, "platform": w.cfg.Platform, "reason": execErr.Error()})
	} else {
		logger.Info().Msg("job completed")
		w.emit(events.JobCompleted, map[string]interface{}{"job_id": job.ID, "platform": w.cfg.Platform})
	}

	w.finishJob(ctx, logger)
}

func (w *Worker) finishJob(ctx context.Context, logger zerolog.Logger) {
	if err := w.locks.ClearRunningJob(ctx, w.cfg.Platform); err != nil {
		logger.Error().Err(err).Msg("clear running job")
	}
	if err := w.schedState.SetLastCompletedAt(ctx, w.cfg.Platform, time.Now()); err != nil {
		logger.Error().Err(err).Msg("record last completed at")
	}
	w.releaseLock(ctx)
}

func (w *Worker) releaseLock(ctx context.Context) {
	if err := w.locks.Release(ctx, w.cfg.Platform); err != nil {
		w.log.Error().Err(err).Msg("release lock")
	}
	w.emit(events.LockReleased, map[string]interface{}{"platform": w.cfg.Platform})
}
