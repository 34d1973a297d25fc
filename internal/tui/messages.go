package tui

import (
	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/stage"
	"github.com/rshade/uploadwiz/internal/upload"
)

// StageEnteredMsg is sent when the pipeline enters a stage.
type StageEnteredMsg struct {
	Kind  stage.Kind
	Items []upload.Status
}

// ItemUpdatedMsg carries one item's latest status.
type ItemUpdatedMsg struct {
	Status upload.Status
}

// BatchSettledMsg is sent when a stage's transition resolves.
type BatchSettledMsg struct {
	Kind    stage.Kind
	Summary batch.Summary
}

// StageLeftMsg is sent when the pipeline leaves a stage.
type StageLeftMsg struct {
	Kind stage.Kind
}

// PipelineDoneMsg ends the view.
type PipelineDoneMsg struct{}

func snapshots(items []*upload.Item) []upload.Status {
	out := make([]upload.Status, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, item.Snapshot())
		}
	}
	return out
}
