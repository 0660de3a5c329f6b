package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo() *Repository {
	return NewRepository(store.NewMemoryStore())
}

func TestRepository_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	job := &Job{ID: "job-1", Platform: "coupang", Priority: PriorityHigh, CreatedAt: time.Now()}
	require.NoError(t, repo.Enqueue(ctx, job))

	n, err := repo.QueueLength(ctx, "coupang")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.Dequeue(ctx, "coupang")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-1", got.ID)

	n, err = repo.QueueLength(ctx, "coupang")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRepository_Dequeue_EmptyReturnsNilNoError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	got, err := repo.Dequeue(ctx, "coupang")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	base := time.Now()
	low := &Job{ID: "low", Platform: "p", Priority: PriorityLow, CreatedAt: base}
	high := &Job{ID: "high", Platform: "p", Priority: PriorityHigh, CreatedAt: base.Add(time.Millisecond)}
	critical := &Job{ID: "critical", Platform: "p", Priority: PriorityCritical, CreatedAt: base.Add(2 * time.Millisecond)}
	medium := &Job{ID: "medium", Platform: "p", Priority: PriorityMedium, CreatedAt: base.Add(3 * time.Millisecond)}

	for _, j := range []*Job{low, high, critical, medium} {
		require.NoError(t, repo.Enqueue(ctx, j))
	}

	order := []string{}
	for i := 0; i < 4; i++ {
		j, err := repo.Dequeue(ctx, "p")
		require.NoError(t, err)
		require.NotNil(t, j)
		order = append(order, j.ID)
	}
	assert.Equal(t, []string{"critical", "high", "medium", "low"}, order)
}

func TestRepository_FIFOWithinSamePriority(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	base := time.Now()
	first := &Job{ID: "first", Platform: "p", Priority: PriorityMedium, CreatedAt: base}
	second := &Job{ID: "second", Platform: "p", Priority: PriorityMedium, CreatedAt: base.Add(time.Millisecond)}

	require.NoError(t, repo.Enqueue(ctx, second))
	require.NoError(t, repo.Enqueue(ctx, first))

	got, err := repo.Dequeue(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)
}

func TestRepository_UpdateRefreshesStatusAndTTL(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	job := &Job{ID: "job-1", Platform: "coupang", Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, repo.Enqueue(ctx, job))

	job.Status = StatusRunning
	require.NoError(t, repo.Update(ctx, job))

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestRepository_DeleteRemovesFromQueueAndRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	job := &Job{ID: "job-1", Platform: "coupang", CreatedAt: time.Now()}
	require.NoError(t, repo.Enqueue(ctx, job))

	require.NoError(t, repo.Delete(ctx, "job-1"))

	n, err := repo.QueueLength(ctx, "coupang")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_ClearQueue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	for i := 0; i < 3; i++ {
		job := &Job{ID: NewID("job"), Platform: "coupang", CreatedAt: time.Now()}
		require.NoError(t, repo.Enqueue(ctx, job))
	}

	count, err := repo.ClearQueue(ctx, "coupang")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	n, err := repo.QueueLength(ctx, "coupang")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRepository_TwoWorkersRacingOnSameQueueEntry(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewRepository(s)

	job := &Job{ID: "job-1", Platform: "p", CreatedAt: time.Now()}
	require.NoError(t, repo.Enqueue(ctx, job))

	// Simulate a racing worker removing the queue entry directly.
	removed, err := s.ZRem(ctx, queueKey("p"), "job-1")
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := repo.Dequeue(ctx, "p")
	require.NoError(t, err)
	assert.Nil(t, got)
}
