package ui

import "github.com/charmbracelet/lipgloss"

// theme mirrors the teacher's Theme struct in miniature: one fixed
// palette rather than a switchable set, since the admin surface has no
// equivalent of the portfolio dashboard's per-user theming.
type theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Text    lipgloss.Color
}

var activeTheme = theme{
	Primary: lipgloss.Color("#00afff"),
	Success: lipgloss.Color("#00ff88"),
	Error:   lipgloss.Color("#ff4444"),
	Warning: lipgloss.Color("#ffaa00"),
	Text:    lipgloss.Color("#ffffff"),
}
