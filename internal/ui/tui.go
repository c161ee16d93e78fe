// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the key-driven control channels
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user requests from the TUI back to the pipeline owner
type Controls struct {
	Cancel chan struct{}
	Quit   chan struct{}
}

// NewControls creates a control handler
func NewControls() *Controls {
	return &Controls{
		Cancel: make(chan struct{}, 1),
		Quit:   make(chan struct{}, 1),
	}
}

func (c *Controls) cancel() {
	if c == nil {
		return
	}
	select {
	case c.Cancel <- struct{}{}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls) Model {
	return Model{
		controls: ctrl,
	}
}

// Run creates the TUI program; the caller starts it with p.Run
func Run(ctrl *Controls) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
