package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "\n  Loading...\n"
	}

	statusStyle := lipgloss.NewStyle().Foreground(activeTheme.Primary).Bold(true)
	schedulerLabel := "disabled"
	schedulerStyle := lipgloss.NewStyle().Foreground(activeTheme.Error)
	if m.schedulerEnabled {
		schedulerLabel = "enabled"
		schedulerStyle = lipgloss.NewStyle().Foreground(activeTheme.Success)
	}

	header := statusStyle.Render("orchestrator admin") + "  scheduler: " + schedulerStyle.Render(schedulerLabel)

	footer := lipgloss.NewStyle().Foreground(activeTheme.Text).Faint(true).
		Render("r refresh · f force-release · x restart worker · q quit")

	body := m.table.View()

	errLine := ""
	if m.lastError != nil {
		errLine = lipgloss.NewStyle().Foreground(activeTheme.Error).Render(m.lastError.Error())
	}

	monitorLine := m.viewMonitorTasks()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, monitorLine, errLine, footer)
}

func (m Model) viewMonitorTasks() string {
	if len(m.monitorTasks) == 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(activeTheme.Text).Faint(true)
	out := "monitors:"
	for _, t := range m.monitorTasks {
		state := "on"
		if !t.Enabled {
			state = "off"
		}
		out += fmt.Sprintf(" %s[%s,n=%d]", t.Name, state, t.TotalExecuted)
	}
	return style.Render(out)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.0fs", s)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
