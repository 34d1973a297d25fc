package stage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

// Sequencer errors.
var (
	ErrNoStages       = errors.New("pipeline has no stages")
	ErrUnknownStage   = errors.New("stage is not part of the pipeline")
	ErrDuplicateStage = errors.New("stage appears twice in the pipeline")
)

// Stage is one step of the pipeline.
type Stage struct {
	Kind Kind

	// Enter runs over the item collection when the stage is entered. Nil
	// means entering the stage only changes what is displayed.
	Enter *batch.Transition
}

// Result is the outcome of entering one stage.
type Result struct {
	Kind Kind

	// Ran is false for stages without a transition.
	Ran bool

	Summary batch.Summary
}

// Option configures a Sequencer.
type Option func(*options)

type options struct {
	maxConcurrent int
	logger        zerolog.Logger
	schedulerOpts []batch.Option
}

// WithMaxConcurrent sets the scheduler's concurrency ceiling.
func WithMaxConcurrent(k int) Option {
	return func(o *options) { o.maxConcurrent = k }
}

// WithLogger sets the logger used by the sequencer and its scheduler.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSchedulerOptions passes extra options to the batch scheduler.
func WithSchedulerOptions(opts ...batch.Option) Option {
	return func(o *options) { o.schedulerOpts = append(o.schedulerOpts, opts...) }
}

// Sequencer moves an item collection through a fixed, ordered set of stages.
// Each stage is either idle or active; at most one is active at a time.
type Sequencer struct {
	stages    []Stage
	scheduler *batch.Scheduler
	presenter Presenter
	logger    zerolog.Logger

	mu      sync.Mutex
	current int
	active  bool
}

// NewSequencer builds a sequencer over stages. A nil presenter discards
// all display calls.
func NewSequencer(stages []Stage, presenter Presenter, opts ...Option) (*Sequencer, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	seen := map[Kind]bool{}
	for _, st := range stages {
		if seen[st.Kind] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, st.Kind)
		}
		seen[st.Kind] = true
	}

	o := options{maxConcurrent: batch.DefaultMaxConcurrent, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if presenter == nil {
		presenter = NopPresenter{}
	}

	schedOpts := append([]batch.Option{
		batch.WithLogger(o.logger),
		batch.WithObserver(observer{presenter: presenter}),
	}, o.schedulerOpts...)
	scheduler, err := batch.NewScheduler(o.maxConcurrent, schedOpts...)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		stages:    slices.Clone(stages),
		scheduler: scheduler,
		presenter: presenter,
		logger:    o.logger.With().Str("component", "sequencer").Logger(),
	}, nil
}

// Stages returns the pipeline in order.
func (s *Sequencer) Stages() []Stage {
	return slices.Clone(s.stages)
}

// Current returns the most recently entered stage and whether it is active.
func (s *Sequencer) Current() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[s.current].Kind, s.active
}

func (s *Sequencer) index(kind Kind) int {
	return slices.IndexFunc(s.stages, func(st Stage) bool { return st.Kind == kind })
}

// MoveTo leaves the active stage, if any, enters kind and runs its transition
// over items. Items completed by an earlier stage are returned to pending
// first so the new stage may admit them. Per-item failures never make MoveTo
// fail; they are visible in the Result summary and on the items themselves.
func (s *Sequencer) MoveTo(ctx context.Context, kind Kind, items []*upload.Item) (Result, error) {
	idx := s.index(kind)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStage, kind)
	}

	s.MoveFrom()
	s.mu.Lock()
	s.current, s.active = idx, true
	s.mu.Unlock()

	st := s.stages[idx]
	res := Result{Kind: kind}
	s.presenter.StageEntered(kind, items)
	if st.Enter == nil {
		s.logger.Debug().Str("stage", kind.String()).Msg("entered stage without transition")
		return res, nil
	}

	for _, item := range items {
		if item != nil {
			item.ResetForStage()
		}
	}

	b, err := s.scheduler.Run(ctx, items, *st.Enter)
	if err != nil {
		return res, fmt.Errorf("running %s stage: %w", kind, err)
	}
	res.Ran = true
	res.Summary = b.Summary()
	s.presenter.BatchSettled(kind, res.Summary)

	s.logger.Info().
		Str("stage", kind.String()).
		Int("eligible", res.Summary.Total).
		Int("completed", res.Summary.Completed).
		Int("failed", res.Summary.Failed).
		Int("aborted", res.Summary.Aborted).
		Msg("stage settled")
	return res, nil
}

// MoveFrom marks the active stage idle. It is a no-op when no stage is active.
func (s *Sequencer) MoveFrom() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	kind := s.stages[s.current].Kind
	s.mu.Unlock()

	s.presenter.StageLeft(kind)
}

// Advance walks items through every stage in order and leaves the last stage
// idle. A stage with no eligible items still completes and the walk goes on.
func (s *Sequencer) Advance(ctx context.Context, items []*upload.Item) ([]Result, error) {
	results := make([]Result, 0, len(s.stages))
	for _, st := range s.stages {
		res, err := s.MoveTo(ctx, st.Kind, items)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	s.MoveFrom()
	return results, nil
}
