package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/jobs"
)

const forceReleaseMessage = "Force released via API — stuck job detected"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusResponse struct {
	Platforms []platformStatus `json:"platforms"`
}

type platformStatus struct {
	Platform     string `json:"platform"`
	QueueLength  int64  `json:"queue_length"`
	Locked       bool   `json:"locked"`
	RunningJobID string `json:"running_job_id,omitempty"`
}

// handleStatus introspects every configured platform's queue length and
// lock/running-job state in one call, the payload the Admin TUI polls.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	out := statusResponse{}
	for _, platform := range s.cfg.Platforms {
		ps := platformStatus{Platform: platform}

		n, err := s.cfg.Jobs.QueueLength(ctx, platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		ps.QueueLength = n

		locked, err := s.cfg.Locks.IsLocked(ctx, platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		ps.Locked = locked

		running, err := s.cfg.Locks.GetRunningJob(ctx, platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if running != nil {
			ps.RunningJobID = running.JobID
		}

		out.Platforms = append(out.Platforms, ps)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchedulerEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.SchedulerState.SetEnabled(r.Context(), true); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.SchedulerTick, map[string]interface{}{"enabled": true})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleSchedulerDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.SchedulerState.SetEnabled(r.Context(), false); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.SchedulerTick, map[string]interface{}{"enabled": false})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	enabled, err := s.cfg.SchedulerState.IsEnabled(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hb, err := s.cfg.SchedulerState.GetHeartbeat(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": enabled, "heartbeat": hb})
}

func (s *Server) handleMonitorEnable(w http.ResponseWriter, r *http.Request) {
	task := chi.URLParam(r, "task")
	if err := s.cfg.MonitorState.SetEnabled(r.Context(), task, true); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.MonitorTick, map[string]interface{}{"task_id": task, "enabled": true})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleMonitorDisable(w http.ResponseWriter, r *http.Request) {
	task := chi.URLParam(r, "task")
	if err := s.cfg.MonitorState.SetEnabled(r.Context(), task, false); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.MonitorTick, map[string]interface{}{"task_id": task, "enabled": false})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

type monitorTaskStatus struct {
	TaskID        string `json:"task_id"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	TotalExecuted int64  `json:"total_executed"`
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make([]monitorTaskStatus, 0, len(s.cfg.MonitorTasks))

	for _, task := range s.cfg.MonitorTasks {
		enabled, err := s.cfg.MonitorState.IsEnabled(ctx, task.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		total, err := s.cfg.MonitorState.GetTotalExecuted(ctx, task.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, monitorTaskStatus{TaskID: task.ID, Name: task.Name, Enabled: enabled, TotalExecuted: total})
	}

	hb, err := s.cfg.MonitorState.GetHeartbeat(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": out, "heartbeat": hb})
}

func (s *Server) handlePlatformQueue(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	jobsList, err := s.cfg.Jobs.QueuedJobs(r.Context(), platform, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobsList)
}

func (s *Server) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	n, err := s.cfg.Jobs.ClearQueue(r.Context(), platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.QueueCleared, map[string]interface{}{"platform": platform, "count": n})
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *Server) handleForceRelease(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	ctx := r.Context()

	running, err := s.cfg.Locks.GetRunningJob(ctx, platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if running != nil {
		if err := s.failStuckJob(ctx, running.JobID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.publish(events.JobFailed, map[string]interface{}{"job_id": running.JobID, "platform": platform, "reason": forceReleaseMessage})
	}

	had, err := s.cfg.Locks.ForceRelease(ctx, platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.LockForced, map[string]interface{}{"platform": platform, "had_running_job": had})
	writeJSON(w, http.StatusOK, map[string]bool{"had_running_job": had})
}

// failStuckJob marks a force-released job failed (spec §7 scenario 4). A
// job already gone or already terminal is left alone.
func (s *Server) failStuckJob(ctx context.Context, jobID string) error {
	job, err := s.cfg.Jobs.Get(ctx, jobID)
	if err != nil || job == nil {
		return err
	}
	if job.Status == jobs.StatusCompleted || job.Status == jobs.StatusFailed || job.Status == jobs.StatusCancelled {
		return nil
	}
	job.Status = jobs.StatusFailed
	job.Error = &jobs.JobError{
		Message:   forceReleaseMessage,
		NodeID:    job.CurrentNode,
		Timestamp: time.Now(),
	}
	return s.cfg.Jobs.Update(ctx, job)
}

func (s *Server) handleWorkerRestart(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	if err := s.cfg.Locks.SetKillFlag(r.Context(), platform); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publish(events.LockForced, map[string]interface{}{"platform": platform, "kill_requested": true})
	writeJSON(w, http.StatusOK, map[string]bool{"kill_requested": true})
}

type runningJobResponse struct {
	JobID          string  `json:"job_id,omitempty"`
	WorkflowID     string  `json:"workflow_id,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (s *Server) handleRunningJob(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	running, err := s.cfg.Locks.GetRunningJob(r.Context(), platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if running == nil {
		writeJSON(w, http.StatusOK, runningJobResponse{})
		return
	}
	writeJSON(w, http.StatusOK, runningJobResponse{
		JobID:          running.JobID,
		WorkflowID:     running.WorkflowID,
		ElapsedSeconds: elapsedSeconds(running.StartedAt),
	})
}
