package stage

import (
	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

// PipelineConfig supplies the operations behind the default pipeline. A nil
// factory leaves that stage without a transition.
type PipelineConfig struct {
	Stash   batch.OperationFactory
	Details batch.OperationFactory
	Record  batch.OperationFactory
}

// DefaultPipeline returns File, Deed, Details and Thanks in that order.
func DefaultPipeline(cfg PipelineConfig) []Stage {
	transition := func(name string, canRun upload.Predicate, hook upload.AdmissionHook, f batch.OperationFactory) *batch.Transition {
		if f == nil {
			return nil
		}
		return &batch.Transition{Name: name, CanRun: canRun, BeforeAdmit: hook, NewOperation: f}
	}

	return []Stage{
		{Kind: KindFile},
		{Kind: KindDeed, Enter: transition("stash", upload.Awaiting, ThirdPartyDeed, cfg.Stash)},
		{Kind: KindDetails, Enter: transition("details", upload.Stashed, nil, cfg.Details)},
		{Kind: KindThanks, Enter: transition("record", upload.Stashed, nil, cfg.Record)},
	}
}

// ThirdPartyDeed re-initializes the deed of items taken from a URL as a
// third-party deed crediting that URL, keeping the license ID. Items from
// local files are left alone.
func ThirdPartyDeed(item *upload.Item) {
	if !item.FromURL {
		return
	}
	item.SetDeed(upload.Deed{
		ID:         item.Deed().ID,
		Source:     item.Source,
		ThirdParty: true,
	})
}
