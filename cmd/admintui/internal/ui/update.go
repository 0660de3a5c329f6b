package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.table.SetWidth(m.width)
		m.table.SetHeight(m.height - 4)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, fetchAll(m.client)
		case key.Matches(msg, keys.Release):
			if platform := m.selectedPlatform(); platform != "" {
				return m, releaseCmd(m.client, platform)
			}
		case key.Matches(msg, keys.Restart):
			if platform := m.selectedPlatform(); platform != "" {
				return m, restartCmd(m.client, platform)
			}
		}

	case tickMsg:
		return m, tea.Batch(fetchAll(m.client), tickCmd())

	case statusMsg:
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.platforms = msg.status.Platforms
		m.rebuildTable()
		return m, fetchRunningJobs(m.client, m.platforms)

	case schedulerMsg:
		if msg.err == nil {
			m.schedulerEnabled = msg.enabled
		}

	case monitorMsg:
		if msg.err == nil {
			m.monitorTasks = msg.tasks
		}

	case runningJobMsg:
		if msg.err == nil {
			m.runningJobs[msg.platform] = msg.job
			m.rebuildTable()
		}

	case actionDoneMsg:
		if msg.err != nil {
			m.lastError = msg.err
		}
		return m, fetchAll(m.client)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) selectedPlatform() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func (m *Model) rebuildTable() {
	columns := []table.Column{
		{Title: "Platform", Width: 16},
		{Title: "Queue", Width: 8},
		{Title: "Locked", Width: 8},
		{Title: "Running Job", Width: 24},
		{Title: "Elapsed", Width: 10},
	}

	rows := make([]table.Row, 0, len(m.platforms))
	for _, p := range m.platforms {
		job := m.runningJobs[p.Platform]
		locked := "no"
		if p.Locked {
			locked = "yes"
		}
		elapsed := ""
		if job.JobID != "" {
			elapsed = formatSeconds(job.ElapsedSeconds)
		}
		rows = append(rows, table.Row{p.Platform, itoa(p.QueueLength), locked, job.JobID, elapsed})
	}

	m.table.SetColumns(columns)
	m.table.SetRows(rows)
}

func releaseCmd(client interface{ ForceRelease(string) error }, platform string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: client.ForceRelease(platform)}
	}
}

func restartCmd(client interface{ RestartWorker(string) error }, platform string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: client.RestartWorker(platform)}
	}
}
