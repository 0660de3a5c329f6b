// Package ui is the Admin TUI's bubbletea model, adapted from the
// teacher's sentinel-tui-go dashboard: poll an HTTP API on a ticker,
// render the decoded payloads into a bubbles table.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/scoutgrid/orchestrator/cmd/admintui/internal/api"
)

const pollInterval = 3 * time.Second

// Model is the Admin TUI's bubbletea model.
type Model struct {
	client *api.Client

	schedulerEnabled bool
	platforms        []api.PlatformStatus
	runningJobs      map[string]api.RunningJob
	monitorTasks     []api.MonitorTaskStatus
	lastError        error

	width  int
	height int
	ready  bool
	table  table.Model
}

// NewModel wires a Model against an already-constructed API client.
func NewModel(client *api.Client) Model {
	return Model{
		client:      client,
		runningJobs: make(map[string]api.RunningJob),
		table:       table.New(table.WithFocused(true)),
	}
}

// Init kicks off the first poll and the recurring tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchAll(m.client), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type tickMsg time.Time

type statusMsg struct {
	status api.Status
	err    error
}

type schedulerMsg struct {
	enabled bool
	err     error
}

type monitorMsg struct {
	tasks []api.MonitorTaskStatus
	err   error
}

type runningJobMsg struct {
	platform string
	job      api.RunningJob
	err      error
}

type actionDoneMsg struct {
	err error
}

func fetchAll(client *api.Client) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			status, err := client.Status()
			return statusMsg{status: status, err: err}
		},
		func() tea.Msg {
			enabled, err := client.SchedulerStatus()
			return schedulerMsg{enabled: enabled, err: err}
		},
		func() tea.Msg {
			tasks, err := client.MonitorStatus()
			return monitorMsg{tasks: tasks, err: err}
		},
	)
}

func fetchRunningJobs(client *api.Client, platforms []api.PlatformStatus) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(platforms))
	for _, p := range platforms {
		platform := p.Platform
		cmds = append(cmds, func() tea.Msg {
			job, err := client.RunningJob(platform)
			return runningJobMsg{platform: platform, job: job, err: err}
		})
	}
	return tea.Batch(cmds...)
}
