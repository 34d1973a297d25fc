package tui

import (
	"os"

	"golang.org/x/term"
)

// OutputMode selects how pipeline progress is shown.
type OutputMode int

const (
	// OutputModePlain writes unstyled lines.
	OutputModePlain OutputMode = iota
	// OutputModeStyled writes lines with color.
	OutputModeStyled
	// OutputModeInteractive runs the Bubble Tea view.
	OutputModeInteractive
)

// String returns the mode name.
func (m OutputMode) String() string {
	switch m {
	case OutputModeStyled:
		return "styled"
	case OutputModeInteractive:
		return "interactive"
	default:
		return "plain"
	}
}

// DetectOutputMode inspects stdout and the environment. plain forces plain
// output, noColor disables styling, forceColor enables styling off a TTY.
func DetectOutputMode(forceColor, noColor, plain bool) OutputMode {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	return detectOutputMode(isTTY, os.Getenv, forceColor, noColor, plain)
}

func detectOutputMode(isTTY bool, getenv func(string) string, forceColor, noColor, plain bool) OutputMode {
	if plain || getenv("TERM") == "dumb" {
		return OutputModePlain
	}
	if noColor || getenv("NO_COLOR") != "" {
		return OutputModePlain
	}
	if !isTTY || getenv("CI") != "" {
		if forceColor {
			return OutputModeStyled
		}
		return OutputModePlain
	}
	return OutputModeInteractive
}
