package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/stage"
	listview "github.com/rshade/uploadwiz/internal/tui/list"
	"github.com/rshade/uploadwiz/internal/upload"
)

// StageSummary is one settled stage as shown in the footer.
type StageSummary struct {
	Kind    stage.Kind
	Summary batch.Summary
}

// UploadModel is the Bubble Tea model for a running upload pipeline.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type UploadModel struct {
	title string

	kind    stage.Kind
	entered bool
	rows    []upload.Status
	index   map[string]int
	window  *listview.Window
	bar     progress.Model

	summaries []StageSummary

	// onAbort is called once when the user interrupts a running pipeline.
	onAbort  func()
	aborting bool
	done     bool

	width  int
	height int
}

// NewUploadModel creates a model titled title. onAbort may be nil.
func NewUploadModel(title string, onAbort func()) UploadModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = defaultWidth - barPadding
	return UploadModel{
		title:   title,
		index:   map[string]int{},
		window:  listview.NewWindow(0, defaultHeight-chromeHeight),
		bar:     bar,
		onAbort: onAbort,
		width:   defaultWidth,
		height:  defaultHeight,
	}
}

// Init implements tea.Model.
func (m UploadModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-barPadding, 10)
		m.window.SetHeight(msg.Height - chromeHeight)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StageEnteredMsg:
		m.kind = msg.Kind
		m.entered = true
		for _, status := range msg.Items {
			m.upsert(status)
		}
		return m, nil

	case ItemUpdatedMsg:
		m.upsert(msg.Status)
		return m, nil

	case BatchSettledMsg:
		m.summaries = append(m.summaries, StageSummary(msg))
		return m, nil

	case StageLeftMsg:
		return m, nil

	case PipelineDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m UploadModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.done {
			return m, tea.Quit
		}
		if !m.aborting {
			m.aborting = true
			if m.onAbort != nil {
				abort := m.onAbort
				return m, func() tea.Msg {
					abort()
					return nil
				}
			}
		}
		return m, nil
	}
	m.window.Update(msg)
	return m, nil
}

func (m *UploadModel) upsert(status upload.Status) {
	if i, ok := m.index[status.ID]; ok {
		m.rows[i] = status
		return
	}
	m.index[status.ID] = len(m.rows)
	m.rows = append(m.rows, status)
	m.window.SetCount(len(m.rows))
}

// Overall returns the pipeline progress for the current stage in [0, 1].
// Settled items count as done; indeterminate transfers count as not started.
func (m UploadModel) Overall() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range m.rows {
		switch {
		case r.State.IsTerminal():
			sum++
		case r.State == upload.StateTransitioning && r.Progress > 0:
			sum += r.Progress
		}
	}
	return sum / float64(len(m.rows))
}

// Rows returns the latest status of every item seen so far.
func (m UploadModel) Rows() []upload.Status {
	return append([]upload.Status(nil), m.rows...)
}

// Summaries returns the settled stages in order.
func (m UploadModel) Summaries() []StageSummary {
	return append([]StageSummary(nil), m.summaries...)
}

// Aborting reports whether the user asked to stop.
func (m UploadModel) Aborting() bool {
	return m.aborting
}
