package stage

import (
	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

// Presenter displays pipeline activity. Implementations must be safe for
// concurrent use: ItemUpdated is called from transfer goroutines.
type Presenter interface {
	// StageEntered is called before the stage's transition starts.
	StageEntered(kind Kind, items []*upload.Item)

	// ItemUpdated reports a change to one item's state, progress or label.
	ItemUpdated(status upload.Status)

	// BatchSettled is called once the stage's transition has resolved.
	BatchSettled(kind Kind, summary batch.Summary)

	// StageLeft is called when the sequencer moves off the stage.
	StageLeft(kind Kind)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) StageEntered(Kind, []*upload.Item) {}
func (NopPresenter) ItemUpdated(upload.Status)         {}
func (NopPresenter) BatchSettled(Kind, batch.Summary)  {}
func (NopPresenter) StageLeft(Kind)                    {}

// observer forwards scheduler events to a Presenter as item updates.
type observer struct {
	presenter Presenter
}

func (o observer) ItemStarted(_ string, item *upload.Item) {
	o.presenter.ItemUpdated(item.Snapshot())
}

func (o observer) ItemSettled(_ string, item *upload.Item, _ upload.State) {
	o.presenter.ItemUpdated(item.Snapshot())
}
