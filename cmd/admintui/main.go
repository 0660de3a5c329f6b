package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/scoutgrid/orchestrator/cmd/admintui/internal/api"
	"github.com/scoutgrid/orchestrator/cmd/admintui/internal/ui"
)

func main() {
	adminURL := flag.String("admin-url", "http://localhost:8090", "Admin Control Surface base URL")
	flag.Parse()

	client := api.NewClient(*adminURL)
	m := ui.NewModel(client)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "admintui: %v\n", err)
		os.Exit(1)
	}
}
