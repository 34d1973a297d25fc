package listview

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// halfViewportDivisor is used to center the cursor in the window.
const halfViewportDivisor = 2

// RenderFunc renders row i. selected reports whether the cursor is on it.
type RenderFunc func(i int, selected bool) string

// Window tracks a cursor and the visible range over count rows. It does not
// own the rows; callers render them through a RenderFunc.
type Window struct {
	count    int
	selected int
	height   int
	from     int
	to       int

	// follow keeps the window pinned to the newest rows until the user moves
	// the cursor.
	follow bool
}

// NewWindow creates a window of height rows over count rows.
func NewWindow(count, height int) *Window {
	w := &Window{count: count, height: max(height, 1), follow: true}
	w.updateVisibleRange()
	return w
}

// SetCount changes the number of rows, keeping the cursor in bounds.
func (w *Window) SetCount(count int) {
	w.count = max(count, 0)
	switch {
	case w.count == 0:
		w.selected = 0
	case w.follow || w.selected >= w.count:
		w.selected = w.count - 1
	}
	w.updateVisibleRange()
}

// SetHeight changes the number of visible rows.
func (w *Window) SetHeight(height int) {
	w.height = max(height, 1)
	w.updateVisibleRange()
}

// Update moves the cursor on navigation keys.
func (w *Window) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok || w.count == 0 {
		return nil
	}

	switch key.String() {
	case "up", "k":
		w.moveTo(w.selected - 1)
	case "down", "j":
		w.moveTo(w.selected + 1)
	case "pgup":
		w.moveTo(w.selected - w.height)
	case "pgdown":
		w.moveTo(w.selected + w.height)
	case "home", "g":
		w.moveTo(0)
	case "end", "G":
		w.moveTo(w.count - 1)
		w.follow = true
	}
	return nil
}

func (w *Window) moveTo(index int) {
	w.selected = min(max(index, 0), w.count-1)
	w.follow = false
	w.updateVisibleRange()
}

// updateVisibleRange centers the cursor where possible, clamped to the rows.
func (w *Window) updateVisibleRange() {
	if w.count == 0 {
		w.from, w.to = 0, 0
		return
	}

	from := w.selected - w.height/halfViewportDivisor
	if from+w.height > w.count {
		from = w.count - w.height
	}
	from = max(from, 0)

	w.from = from
	w.to = min(from+w.height, w.count)
}

// View renders the visible rows.
func (w *Window) View(render RenderFunc) string {
	if w.count == 0 {
		return ""
	}

	var b strings.Builder
	for i := w.from; i < w.to; i++ {
		if i > w.from {
			b.WriteByte('\n')
		}
		b.WriteString(render(i, i == w.selected))
	}
	return b.String()
}

// Selected returns the cursor index.
func (w *Window) Selected() int {
	return w.selected
}

// Range returns the visible rows as [from, to).
func (w *Window) Range() (int, int) {
	return w.from, w.to
}

// Hidden returns how many rows lie outside the window.
func (w *Window) Hidden() int {
	return w.count - (w.to - w.from)
}
