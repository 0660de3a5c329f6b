package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(cfg Config) (*Scheduler, store.Store) {
	s := store.NewMemoryStore()
	jobRepo := jobs.NewRepository(s)
	state := schedulerstate.New(s, 4)
	locks := lock.New(s, time.Hour)
	return New(cfg, jobRepo, state, locks, zerolog.Nop()), s
}

func TestScheduler_SinglePlatformEnqueuesOncePerTick(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Platforms:            []string{"A"},
		InterPlatformDelay:   time.Minute,
		SamePlatformCooldown: time.Minute,
		DefaultLimit:         100,
		DefaultBatchSize:     20,
		DefaultConcurrency:   4,
	}
	sched, _ := newTestScheduler(cfg)

	require.NoError(t, sched.tick(ctx))

	n, err := sched.jobs.QueueLength(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	scheduled, err := sched.state.GetScheduledJobs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, scheduled)

	// A second tick immediately after must not enqueue again: the queue
	// already has a job for platform A.
	require.NoError(t, sched.tick(ctx))
	n, err = sched.jobs.QueueLength(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	scheduled, err = sched.state.GetScheduledJobs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, scheduled, "a skipped tick must not advance the counter")
}

func TestScheduler_GlobalCooldownBlocksSecondPlatform(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Platforms:            []string{"A", "B"},
		InterPlatformDelay:   time.Hour,
		SamePlatformCooldown: time.Minute,
		DefaultLimit:         1,
		DefaultBatchSize:     1,
		DefaultConcurrency:   1,
	}
	sched, _ := newTestScheduler(cfg)

	require.NoError(t, sched.tick(ctx))
	an, _ := sched.jobs.QueueLength(ctx, "A")
	bn, _ := sched.jobs.QueueLength(ctx, "B")
	assert.EqualValues(t, 1, an+bn, "exactly one platform enqueues per tick")

	// Drain the queue so platformEligible's "queue length > 0" check
	// doesn't mask the global cooldown we're testing.
	_, _ = sched.jobs.Dequeue(ctx, "A")
	_, _ = sched.jobs.Dequeue(ctx, "B")

	require.NoError(t, sched.tick(ctx))
	an2, _ := sched.jobs.QueueLength(ctx, "A")
	bn2, _ := sched.jobs.QueueLength(ctx, "B")
	assert.EqualValues(t, 0, an2+bn2, "global cooldown blocks any further enqueue")
}

func TestScheduler_PlatformSkippedWhileRunningJobExists(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Platforms:            []string{"A"},
		InterPlatformDelay:   0,
		SamePlatformCooldown: 0,
	}
	sched, _ := newTestScheduler(cfg)

	require.NoError(t, sched.locks.SetRunningJob(ctx, "A", lock.RunningJob{JobID: "job-1"}))

	require.NoError(t, sched.tick(ctx))

	n, err := sched.jobs.QueueLength(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestScheduler_PlatformSkippedDuringCooldown(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Platforms:            []string{"A"},
		InterPlatformDelay:   0,
		SamePlatformCooldown: time.Hour,
	}
	sched, _ := newTestScheduler(cfg)

	now := time.Now()
	require.NoError(t, sched.state.SetLastCompletedAt(ctx, "A", now))

	require.NoError(t, sched.tick(ctx))

	n, err := sched.jobs.QueueLength(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "platform still within cooldown must not be enqueued")
}

func TestScheduler_JobParamsIncludeRotationStatus(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		Platforms:            []string{"A"},
		InterPlatformDelay:   0,
		SamePlatformCooldown: 0,
		DefaultLimit:         50,
		DefaultBatchSize:     10,
		DefaultConcurrency:   2,
	}
	sched, _ := newTestScheduler(cfg)

	require.NoError(t, sched.tick(ctx))

	job, err := sched.jobs.Dequeue(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "A-update-v2", job.WorkflowID)
	assert.Equal(t, "on-sale", job.Params["sale_status"])
	assert.EqualValues(t, 50, job.Params["limit"])
}

func TestScheduler_StartStopIsIdempotent(t *testing.T) {
	cfg := Config{Platforms: []string{"A"}, CheckInterval: time.Minute}
	sched, _ := newTestScheduler(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	sched.Start(ctx) // warns, does not panic or double-start
	sched.Stop()
	sched.Stop() // no-op, does not panic
}
