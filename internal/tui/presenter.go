package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/stage"
	"github.com/rshade/uploadwiz/internal/upload"
)

// ProgramPresenter implements stage.Presenter by forwarding events to a
// running Bubble Tea program.
type ProgramPresenter struct {
	program *tea.Program

	once  sync.Once
	done  chan struct{}
	final UploadModel
	err   error
}

var _ stage.Presenter = (*ProgramPresenter)(nil)

// NewProgramPresenter creates a presenter for model. Call Start before the
// pipeline runs and Finish after it returns.
func NewProgramPresenter(model UploadModel, opts ...tea.ProgramOption) *ProgramPresenter {
	return &ProgramPresenter{
		program: tea.NewProgram(model, opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (p *ProgramPresenter) Start() {
	p.once.Do(func() {
		go func() {
			defer close(p.done)
			m, err := p.program.Run()
			p.err = err
			if um, ok := m.(UploadModel); ok {
				p.final = um
			}
		}()
	})
}

// StageEntered implements stage.Presenter.
func (p *ProgramPresenter) StageEntered(kind stage.Kind, items []*upload.Item) {
	p.program.Send(StageEnteredMsg{Kind: kind, Items: snapshots(items)})
}

// ItemUpdated implements stage.Presenter.
func (p *ProgramPresenter) ItemUpdated(status upload.Status) {
	p.program.Send(ItemUpdatedMsg{Status: status})
}

// BatchSettled implements stage.Presenter.
func (p *ProgramPresenter) BatchSettled(kind stage.Kind, summary batch.Summary) {
	p.program.Send(BatchSettledMsg{Kind: kind, Summary: summary})
}

// StageLeft implements stage.Presenter.
func (p *ProgramPresenter) StageLeft(kind stage.Kind) {
	p.program.Send(StageLeftMsg{Kind: kind})
}

// Finish ends the view and waits for the program to exit. It returns the
// model's final state.
func (p *ProgramPresenter) Finish() (UploadModel, error) {
	p.Start()
	p.program.Send(PipelineDoneMsg{})
	<-p.done
	return p.final, p.err
}
