package tui

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/stage"
	"github.com/rshade/uploadwiz/internal/upload"
)

// PlainPresenter implements stage.Presenter with one line per item state or
// label change. Byte-level progress is not printed.
type PlainPresenter struct {
	mu      sync.Mutex
	w       io.Writer
	printer *message.Printer
	styled  bool
	kind    stage.Kind
	last    map[string]upload.Status
}

var _ stage.Presenter = (*PlainPresenter)(nil)

// NewPlainPresenter writes to w. styled colors state names.
func NewPlainPresenter(w io.Writer, styled bool) *PlainPresenter {
	return &PlainPresenter{
		w:       w,
		printer: message.NewPrinter(language.English),
		styled:  styled,
		last:    map[string]upload.Status{},
	}
}

// StageEntered implements stage.Presenter.
func (p *PlainPresenter) StageEntered(kind stage.Kind, items []*upload.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.kind = kind
	p.printer.Fprintf(p.w, "==> %s (%d items)\n", kind, len(snapshots(items)))
}

// ItemUpdated implements stage.Presenter.
func (p *PlainPresenter) ItemUpdated(status upload.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, seen := p.last[status.ID]
	p.last[status.ID] = status
	if seen && prev.State == status.State && prev.Label == status.Label {
		return
	}

	state := status.State.String()
	if p.styled {
		state = StateStyle(status.State).Render(state)
	}
	line := fmt.Sprintf("[%s] %s %s", p.kind, status.ID, state)
	if status.Label != "" {
		line += " (" + status.Label + ")"
	}
	if status.Error != "" {
		line += ": " + status.Error
	}
	_, _ = fmt.Fprintln(p.w, line)
}

// BatchSettled implements stage.Presenter.
func (p *PlainPresenter) BatchSettled(kind stage.Kind, summary batch.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printer.Fprintf(p.w, "<== %s: %d of %d complete, %d failed, %d aborted\n",
		kind, summary.Completed, summary.Total, summary.Failed, summary.Aborted)
}

// StageLeft implements stage.Presenter.
func (p *PlainPresenter) StageLeft(stage.Kind) {}
