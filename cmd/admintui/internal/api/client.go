// Package api is a thin HTTP client over the Admin Control Surface,
// adapted from the teacher's sentinel-tui-go API client: one struct
// wrapping a base URL and *http.Client, one method per introspection
// endpoint, JSON-decoded into plain structs the UI model renders.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one orchestrator's Admin Control Surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient wires a Client against baseURL (e.g. "http://localhost:8090").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 5 * time.Second}}
}

// PlatformStatus mirrors internal/admin's platformStatus response shape.
type PlatformStatus struct {
	Platform     string `json:"platform"`
	QueueLength  int64  `json:"queue_length"`
	Locked       bool   `json:"locked"`
	RunningJobID string `json:"running_job_id,omitempty"`
}

// Status is the decoded /admin/status response.
type Status struct {
	Platforms []PlatformStatus `json:"platforms"`
}

// MonitorTaskStatus mirrors internal/admin's monitorTaskStatus.
type MonitorTaskStatus struct {
	TaskID        string `json:"task_id"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	TotalExecuted int64  `json:"total_executed"`
}

// RunningJob mirrors internal/admin's runningJobResponse.
type RunningJob struct {
	JobID          string  `json:"job_id,omitempty"`
	WorkflowID     string  `json:"workflow_id,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (c *Client) get(path string, v interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("api: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: get %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(path string) error {
	resp, err := c.http.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("api: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api: post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// Status fetches every configured platform's queue/lock state.
func (c *Client) Status() (Status, error) {
	var out Status
	err := c.get("/admin/status", &out)
	return out, err
}

// MonitorStatus fetches every monitor task's enable flag and counter.
func (c *Client) MonitorStatus() ([]MonitorTaskStatus, error) {
	var out struct {
		Tasks []MonitorTaskStatus `json:"tasks"`
	}
	err := c.get("/admin/monitor/status", &out)
	return out.Tasks, err
}

// SchedulerStatus reports the scheduler's enable flag.
func (c *Client) SchedulerStatus() (bool, error) {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	err := c.get("/admin/scheduler/status", &out)
	return out.Enabled, err
}

// RunningJob reports the job currently running under a platform's lock,
// if any.
func (c *Client) RunningJob(platform string) (RunningJob, error) {
	var out RunningJob
	err := c.get("/admin/platform/"+platform+"/running", &out)
	return out, err
}

// ForceRelease force-releases a stuck platform lock.
func (c *Client) ForceRelease(platform string) error {
	return c.post("/admin/platform/" + platform + "/force-release")
}

// RestartWorker requests the platform's worker exit at its next tick.
func (c *Client) RestartWorker(platform string) error {
	return c.post("/admin/platform/" + platform + "/restart")
}
