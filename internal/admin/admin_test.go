package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/monitorstate"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
	"github.com/scoutgrid/orchestrator/internal/store"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	s := store.NewMemoryStore()
	bus := events.NewBus(zerolog.Nop())

	cfg := Config{
		Platforms: []string{"shopA", "shopB"},
		MonitorTasks: []MonitorTaskInfo{
			{ID: "banner-check", Name: "Banner link check"},
		},
		Jobs:           jobs.NewRepository(s),
		Locks:          lock.New(s, 30*time.Second),
		SchedulerState: schedulerstate.New(s, 4),
		MonitorState:   monitorstate.New(s),
		Bus:            bus,
	}
	return New(cfg, zerolog.Nop()), bus
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleStatus_ReportsEveryConfiguredPlatform(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out statusResponse
	decodeJSON(t, resp, &out)
	require.Len(t, out.Platforms, 2)
}

func TestHandleSchedulerEnableDisable_RoundTrips(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/scheduler/disable", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/admin/scheduler/status")
	require.NoError(t, err)
	var status map[string]interface{}
	decodeJSON(t, resp, &status)
	require.Equal(t, false, status["enabled"])

	resp, err = http.Post(srv.URL+"/admin/scheduler/enable", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/admin/scheduler/status")
	require.NoError(t, err)
	decodeJSON(t, resp, &status)
	require.Equal(t, true, status["enabled"])
}

func TestHandleMonitorEnableDisable_PerTask(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/monitor/banner-check/disable", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/admin/monitor/status")
	require.NoError(t, err)
	var status map[string]interface{}
	decodeJSON(t, resp, &status)
	tasks := status["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	task := tasks[0].(map[string]interface{})
	require.Equal(t, "banner-check", task["task_id"])
	require.Equal(t, false, task["enabled"])
}

func TestHandlePlatformQueue_ListsEnqueuedJobs(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	job := &jobs.Job{
		ID:         jobs.NewID("job"),
		WorkflowID: "shopA-update-v2",
		Platform:   "shopA",
		Priority:   jobs.PriorityMedium,
		Status:     jobs.StatusPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.cfg.Jobs.Enqueue(ctx, job))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/platform/shopA/queue")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []*jobs.Job
	decodeJSON(t, resp, &out)
	require.Len(t, out, 1)
	require.Equal(t, job.ID, out[0].ID)
}

func TestHandleQueueClear_EmptiesQueueAndEmitsEvent(t *testing.T) {
	s, bus := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.cfg.Jobs.Enqueue(ctx, &jobs.Job{
		ID: jobs.NewID("job"), WorkflowID: "wf", Platform: "shopA",
		Priority: jobs.PriorityMedium, Status: jobs.StatusPending, CreatedAt: time.Now(),
	}))

	received := make(chan *events.Event, 1)
	bus.Subscribe(events.QueueCleared, func(ev *events.Event) { received <- ev })

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/platform/shopA/queue/clear", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]int
	decodeJSON(t, resp, &out)
	require.Equal(t, 1, out["cleared"])

	select {
	case ev := <-received:
		require.Equal(t, "shopA", ev.Data["platform"])
	case <-time.After(time.Second):
		t.Fatal("expected queue_cleared event")
	}

	n, err := s.cfg.Jobs.QueueLength(ctx, "shopA")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestHandleForceRelease_ReportsWhetherJobWasRunning(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/platform/shopA/force-release", "application/json", nil)
	require.NoError(t, err)
	var out map[string]bool
	decodeJSON(t, resp, &out)
	require.False(t, out["had_running_job"])

	acquired, err := s.cfg.Locks.Acquire(ctx, "shopB")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, s.cfg.Locks.SetRunningJob(ctx, "shopB", lock.RunningJob{JobID: "job-1", WorkflowID: "wf", StartedAt: time.Now()}))

	resp, err = http.Post(srv.URL+"/admin/platform/shopB/force-release", "application/json", nil)
	require.NoError(t, err)
	decodeJSON(t, resp, &out)
	require.True(t, out["had_running_job"])

	locked, err := s.cfg.Locks.IsLocked(ctx, "shopB")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestHandleForceRelease_MarksTheStuckJobFailed(t *testing.T) {
	s, bus := newTestServer(t)
	ctx := context.Background()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	require.NoError(t, s.cfg.Jobs.Enqueue(ctx, &jobs.Job{
		ID: "job-1", Platform: "shopB", WorkflowID: "wf", Status: jobs.StatusRunning, CreatedAt: time.Now(),
	}))
	acquired, err := s.cfg.Locks.Acquire(ctx, "shopB")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, s.cfg.Locks.SetRunningJob(ctx, "shopB", lock.RunningJob{JobID: "job-1", WorkflowID: "wf", StartedAt: time.Now()}))

	received := make(chan *events.Event, 1)
	bus.Subscribe(events.JobFailed, func(ev *events.Event) { received <- ev })

	resp, err := http.Post(srv.URL+"/admin/platform/shopB/force-release", "application/json", nil)
	require.NoError(t, err)
	var out map[string]bool
	decodeJSON(t, resp, &out)
	require.True(t, out["had_running_job"])

	job, err := s.cfg.Jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	require.Equal(t, "Force released via API — stuck job detected", job.Error.Message)

	select {
	case ev := <-received:
		require.Equal(t, "job-1", ev.Data["job_id"])
	case <-time.After(time.Second):
		t.Fatal("expected a JobFailed event")
	}
}

func TestHandleWorkerRestart_SetsKillFlag(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/platform/shopA/restart", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	killed, err := s.cfg.Locks.IsKillFlagSet(context.Background(), "shopA")
	require.NoError(t, err)
	require.True(t, killed)
}

func TestHandleRunningJob_ReturnsElapsedSeconds(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	startedAt := time.Now().Add(-2 * time.Second)
	require.NoError(t, s.cfg.Locks.SetRunningJob(ctx, "shopA", lock.RunningJob{JobID: "job-1", WorkflowID: "wf", StartedAt: startedAt}))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/platform/shopA/running")
	require.NoError(t, err)
	var out runningJobResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, "job-1", out.JobID)
	require.GreaterOrEqual(t, out.ElapsedSeconds, 2.0)
}

func TestHandleRunningJob_EmptyWhenNoneRunning(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/platform/shopA/running")
	require.NoError(t, err)
	var out runningJobResponse
	decodeJSON(t, resp, &out)
	require.Empty(t, out.JobID)
}
