package jobs

import (
	"context"
	"fmt"

	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/vmihailenco/msgpack/v5"
)

const dataField = "data"

func queueKey(platform string) string {
	return fmt.Sprintf("workflow:queue:platform:%s", platform)
}

func jobKey(id string) string {
	return fmt.Sprintf("workflow:job:%s", id)
}

// Repository is the Job Queue Repository of spec §4.2.
type Repository struct {
	store store.Store
}

// NewRepository wires a Repository atop a Store.
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// score orders a platform's sorted set by priority descending, then by
// creation time ascending (FIFO within a priority tier) — spec §5(a).
func score(j *Job) float64 {
	return float64(j.Priority)*1e15 - float64(j.CreatedAt.UnixNano()%1e15)
}

// Enqueue writes the job record with the pending TTL, then adds job to its
// platform's ordered set. The two writes are separate store calls, not one
// atomic step.
func (r *Repository) Enqueue(ctx context.Context, job *Job) error {
	if job.Platform == "" {
		return fmt.Errorf("jobs: platform is required to enqueue job %s", job.ID)
	}
	if job.Status == "" {
		job.Status = StatusPending
	}

	if err := r.writeRecord(ctx, job); err != nil {
		return err
	}
	if err := r.store.ZAdd(ctx, queueKey(job.Platform), job.ID, score(job)); err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue removes and returns the highest-priority job for platform, or nil
// if the queue is empty. It never blocks. A race with another worker that
// already removed the id is reported as "no job" rather than an error.
func (r *Repository) Dequeue(ctx context.Context, platform string) (*Job, error) {
	candidates, err := r.store.ZRevRangeByScore(ctx, queueKey(platform), 1)
	if err != nil {
		return nil, fmt.Errorf("jobs: dequeue %s: %w", platform, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	id := candidates[0].Member
	removed, err := r.store.ZRem(ctx, queueKey(platform), id)
	if err != nil {
		return nil, fmt.Errorf("jobs: dequeue %s: %w", platform, err)
	}
	if !removed {
		// Another worker raced us to this id.
		return nil, nil
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Get fetches a job record by id, returning nil if it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Job, error) {
	raw, ok, err := r.store.HGet(ctx, jobKey(id), dataField)
	if err != nil {
		return nil, fmt.Errorf("jobs: get %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	var job Job
	if err := msgpack.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("jobs: decode %s: %w", id, err)
	}
	return &job, nil
}

// Update rewrites the job record, refreshing its TTL for the new status.
func (r *Repository) Update(ctx context.Context, job *Job) error {
	return r.writeRecord(ctx, job)
}

func (r *Repository) writeRecord(ctx context.Context, job *Job) error {
	raw, err := msgpack.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: encode %s: %w", job.ID, err)
	}
	key := jobKey(job.ID)
	if err := r.store.HSet(ctx, key, dataField, string(raw)); err != nil {
		return fmt.Errorf("jobs: write %s: %w", job.ID, err)
	}
	if err := r.store.Expire(ctx, key, TTLForStatus(job.Status)); err != nil {
		return fmt.Errorf("jobs: set ttl for %s: %w", job.ID, err)
	}
	return nil
}

// Delete removes a job from its platform's queue and deletes its record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if job != nil {
		if _, err := r.store.ZRem(ctx, queueKey(job.Platform), id); err != nil {
			return fmt.Errorf("jobs: delete %s: %w", id, err)
		}
	}
	if err := r.store.Delete(ctx, jobKey(id)); err != nil {
		return fmt.Errorf("jobs: delete %s: %w", id, err)
	}
	return nil
}

// QueueLength returns the number of pending jobs for platform.
func (r *Repository) QueueLength(ctx context.Context, platform string) (int64, error) {
	n, err := r.store.ZCard(ctx, queueKey(platform))
	if err != nil {
		return 0, fmt.Errorf("jobs: queue length %s: %w", platform, err)
	}
	return n, nil
}

// QueuedJobs returns up to limit pending jobs for platform, highest
// priority first, without dequeuing them.
func (r *Repository) QueuedJobs(ctx context.Context, platform string, limit int) ([]*Job, error) {
	members, err := r.store.ZRevRangeByScore(ctx, queueKey(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("jobs: queued jobs %s: %w", platform, err)
	}
	out := make([]*Job, 0, len(members))
	for _, m := range members {
		job, err := r.Get(ctx, m.Member)
		if err != nil {
			return nil, err
		}
		if job != nil {
			out = append(out, job)
		}
	}
	return out, nil
}

// ClearQueue removes all queued ids and their records for platform,
// returning the count removed.
func (r *Repository) ClearQueue(ctx context.Context, platform string) (int, error) {
	members, err := r.store.ZRevRangeByScore(ctx, queueKey(platform), 0)
	if err != nil {
		return 0, fmt.Errorf("jobs: clear queue %s: %w", platform, err)
	}
	count := 0
	for _, m := range members {
		removed, err := r.store.ZRem(ctx, queueKey(platform), m.Member)
		if err != nil {
			return count, fmt.Errorf("jobs: clear queue %s: %w", platform, err)
		}
		if removed {
			_ = r.store.Delete(ctx, jobKey(m.Member))
			count++
		}
	}
	return count, nil
}
