package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/uploadwiz/internal/upload"
)

// View implements tea.Model.
func (m UploadModel) View() string {
	sections := []string{m.renderHeader(), m.bar.ViewAs(m.Overall()), ""}

	if len(m.rows) == 0 {
		sections = append(sections, SubtleStyle.Render("Waiting for items..."))
	} else {
		sections = append(sections, m.window.View(m.renderRow))
		if hidden := m.window.Hidden(); hidden > 0 {
			sections = append(sections, SubtleStyle.Render(fmt.Sprintf("  ... %d more (↑/↓ to scroll)", hidden)))
		}
	}

	if len(m.summaries) > 0 {
		sections = append(sections, "")
		for _, s := range m.summaries {
			sections = append(sections, renderSummary(s))
		}
	}

	sections = append(sections, "", m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m UploadModel) renderHeader() string {
	stageName := "starting"
	if m.entered {
		stageName = m.kind.String()
	}
	return HeaderStyle.Render(m.title) + LabelStyle.Render("  stage: ") + ValueStyle.Render(stageName)
}

func (m UploadModel) renderRow(i int, selected bool) string {
	r := m.rows[i]
	style := StateStyle(r.State)

	detail := r.Label
	switch {
	case r.State == upload.StateError && r.Error != "":
		detail = r.Error
	case r.State == upload.StateTransitioning && r.Progress == upload.ProgressIndeterminate:
		detail = strings.TrimSpace(detail + " …")
	case r.State == upload.StateTransitioning:
		detail = fmt.Sprintf("%-*s %3.0f%%", labelWidth, detail, r.Progress*100)
	}

	line := fmt.Sprintf("%s %-*s %s", style.Render(StateIcon(r.State)), idWidth, truncate(r.ID, idWidth), detail)
	if width := m.width - barPadding; width > 0 {
		line = lipgloss.NewStyle().MaxWidth(width).Render(line)
	}
	if selected {
		return SelectedStyle.Render(line)
	}
	return line
}

func (m UploadModel) renderHelp() string {
	switch {
	case m.done:
		return SubtleStyle.Render("done · q to quit")
	case m.aborting:
		return AbortedStyle.Render("aborting...")
	default:
		return SubtleStyle.Render("↑/↓ scroll · ctrl+c abort")
	}
}

func renderSummary(s StageSummary) string {
	text := fmt.Sprintf("%-8s %d complete, %d failed, %d aborted in %s",
		s.Kind, s.Summary.Completed, s.Summary.Failed, s.Summary.Aborted, s.Summary.Duration.Round(10*time.Millisecond))
	if s.Summary.Failed > 0 || s.Summary.Aborted > 0 {
		return ErrorStyle.Render(text)
	}
	return CompleteStyle.Render(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
