package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
	Release key.Binding
	Restart key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Release: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "force-release selected")),
	Restart: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "restart selected")),
}
