package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/uploadwiz/internal/upload"
)

// Layout.
const (
	defaultWidth  = 80
	defaultHeight = 24

	// chromeHeight is the number of lines around the item rows.
	chromeHeight = 8
	barPadding   = 4
	idWidth      = 12
	labelWidth   = 14
)

// Styles shared by the interactive view.
var (
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	LabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle    = lipgloss.NewStyle().Bold(true)
	SubtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	SelectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	CompleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	AbortedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// StateStyle returns the style used for items in state s.
func StateStyle(s upload.State) lipgloss.Style {
	switch s {
	case upload.StateTransitioning:
		return ActiveStyle
	case upload.StateComplete:
		return CompleteStyle
	case upload.StateError:
		return ErrorStyle
	case upload.StateAborted:
		return AbortedStyle
	default:
		return SubtleStyle
	}
}

// StateIcon returns a one-character marker for s.
func StateIcon(s upload.State) string {
	switch s {
	case upload.StateTransitioning:
		return "↑"
	case upload.StateComplete:
		return "✓"
	case upload.StateError:
		return "✗"
	case upload.StateAborted:
		return "⊘"
	default:
		return "·"
	}
}
