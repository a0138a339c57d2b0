// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the engine UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hushtone/hushtone-go/internal/engine"
)

// Run starts the TUI and blocks until the user quits.
func Run(controller *engine.Controller) error {
	p := tea.NewProgram(NewModel(controller), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
