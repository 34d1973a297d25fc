package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/uploadwiz/internal/upload"
)

// Default scheduler configuration.
const (
	// DefaultMaxConcurrent is the default number of operations in flight.
	DefaultMaxConcurrent = 3

	// MinConcurrent is the minimum allowed concurrency ceiling.
	MinConcurrent = 1

	// MaxConcurrent is the maximum allowed concurrency ceiling.
	MaxConcurrent = 64
)

// Common scheduler errors.
var (
	ErrInvalidConcurrency = fmt.Errorf(
		"max concurrent operations must be between %d and %d", MinConcurrent, MaxConcurrent)
	ErrNilOperationFactory = errors.New("transition operation factory cannot be nil")
	ErrNilOperation        = errors.New("operation factory returned nil")
)

// Operation performs one item's asynchronous unit of work. A nil return
// settles the item as complete; any error settles it as error, or as aborted
// when the error matches upload.ErrUserAborted.
type Operation func(ctx context.Context) error

// OperationFactory builds the operation for a single item.
type OperationFactory func(item *upload.Item) Operation

// Transition describes one pipeline stage change applied to a batch of items.
type Transition struct {
	// Name labels the transition in logs (e.g. "stash").
	Name string

	// CanRun is the eligibility predicate. Nil means upload.Awaiting.
	CanRun upload.Predicate

	// BeforeAdmit runs once per eligible item immediately before it is enqueued.
	BeforeAdmit upload.AdmissionHook

	// NewOperation builds each admitted item's operation.
	NewOperation OperationFactory
}

func (t Transition) predicate() upload.Predicate {
	if t.CanRun != nil {
		return t.CanRun
	}
	return upload.Awaiting
}

// ProgressCallback is an optional callback invoked after each settlement.
type ProgressCallback func(snapshot ProgressSnapshot)

// Observer receives item-level scheduling events. Calls are made from the
// batch coordinator goroutine in scheduling order and must not block.
type Observer interface {
	ItemStarted(batchID string, item *upload.Item)
	ItemSettled(batchID string, item *upload.Item, state upload.State)
}

// Scheduler runs transitions with at most maxConcurrent operations in flight.
type Scheduler struct {
	// maxConcurrent is K, the concurrency ceiling.
	maxConcurrent int

	// onProgress is an optional callback for progress updates.
	onProgress ProgressCallback

	// observer is an optional sink for item start/settle events.
	observer Observer

	logger zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithProgressCallback sets a callback invoked after every settlement.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(s *Scheduler) { s.onProgress = callback }
}

// WithObserver sets an observer for item start and settle events.
func WithObserver(observer Observer) Option {
	return func(s *Scheduler) { s.observer = observer }
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a scheduler with concurrency ceiling maxConcurrent.
func NewScheduler(maxConcurrent int, opts ...Option) (*Scheduler, error) {
	if maxConcurrent < MinConcurrent || maxConcurrent > MaxConcurrent {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrent)
	}

	s := &Scheduler{
		maxConcurrent: maxConcurrent,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSchedulerWithDefaults creates a scheduler with DefaultMaxConcurrent.
func NewSchedulerWithDefaults(opts ...Option) *Scheduler {
	s, _ := NewScheduler(DefaultMaxConcurrent, opts...)
	return s
}

// MaxConcurrent returns the configured concurrency ceiling.
func (s *Scheduler) MaxConcurrent() int {
	return s.maxConcurrent
}

// Admit returns the items eligible for tr in original order. Nil entries are
// dropped. The admission hook runs once for each admitted item.
func (s *Scheduler) Admit(items []*upload.Item, tr Transition) []*upload.Item {
	canRun := tr.predicate()
	admitted := make([]*upload.Item, 0, len(items))
	for _, item := range items {
		if item == nil || !canRun(item) {
			continue
		}
		if tr.BeforeAdmit != nil {
			tr.BeforeAdmit(item)
		}
		admitted = append(admitted, item)
	}
	return admitted
}

// Start admits items and begins running tr in the background. The returned
// Batch resolves once every admitted item has settled; with no eligible items
// it is already resolved. ctx is handed to every operation; cancelling it does
// not stop scheduling.
func (s *Scheduler) Start(ctx context.Context, items []*upload.Item, tr Transition) (*Batch, error) {
	if tr.NewOperation == nil {
		return nil, ErrNilOperationFactory
	}

	eligible := s.Admit(items, tr)
	b := &Batch{
		ID:         ulid.Make().String(),
		Transition: tr.Name,
		items:      eligible,
		progress:   NewProgress(len(eligible)),
		done:       make(chan struct{}),
	}

	logger := s.logger.With().
		Str("component", "batch").
		Str("batch_id", b.ID).
		Str("transition", tr.Name).
		Logger()
	logger.Info().
		Int("items", len(items)).
		Int("eligible", len(eligible)).
		Int("max_concurrent", s.maxConcurrent).
		Msg("batch started")

	if len(eligible) == 0 {
		b.finish(logger)
		return b, nil
	}

	go s.coordinate(ctx, b, tr.NewOperation, logger)
	return b, nil
}

// Run starts tr and waits for the batch to resolve.
func (s *Scheduler) Run(ctx context.Context, items []*upload.Item, tr Transition) (*Batch, error) {
	b, err := s.Start(ctx, items, tr)
	if err != nil {
		return nil, err
	}
	if waitErr := b.Wait(ctx); waitErr != nil {
		return b, waitErr
	}
	return b, nil
}

// RunOne forces tr on a single item. It returns upload.ErrIneligibleItem
// without starting anything when the predicate rejects the item; otherwise it
// waits for the item to settle and returns its LastError.
func (s *Scheduler) RunOne(ctx context.Context, item *upload.Item, tr Transition) error {
	if item == nil || !tr.predicate()(item) {
		id := ""
		if item != nil {
			id = item.ID
		}
		return upload.NewError(upload.KindIneligible, id, tr.Name, nil)
	}
	if _, err := s.Run(ctx, []*upload.Item{item}, tr); err != nil {
		return err
	}
	return item.LastError()
}

// settlement carries one operation's outcome back to the coordinator.
type settlement struct {
	item *upload.Item
	err  error
}

// coordinate owns the queue cursor and slot accounting for b. Every refill
// happens before the next settlement is read, so a freed slot never idles
// while eligible work remains.
func (s *Scheduler) coordinate(
	ctx context.Context,
	b *Batch,
	newOp OperationFactory,
	logger zerolog.Logger,
) {
	n := len(b.items)
	results := make(chan settlement, n)
	cursor, active, settled := 0, 0, 0

	fill := func() {
		for active < s.maxConcurrent && cursor < n {
			item := b.items[cursor]
			cursor++

			if !item.Begin() {
				// Aborted while queued, or claimed elsewhere: settles at its
				// turn without taking a slot.
				state := item.State()
				settled++
				logger.Debug().Str("item_id", item.ID).Str("state", state.String()).
					Msg("item settled before start")
				s.settled(b, item, state, false)
				continue
			}

			active++
			b.progress.AddStarted()
			logger.Debug().Str("item_id", item.ID).Int("active", active).Msg("item started")
			if s.observer != nil {
				s.observer.ItemStarted(b.ID, item)
			}
			go runOperation(ctx, item, newOp, results)
		}
	}

	fill()
	for settled < n {
		r := <-results
		state := r.item.Settle(r.err)
		active--
		settled++

		event := logger.Debug()
		if state == upload.StateError {
			event = logger.Warn().Err(r.err)
		}
		event.Str("item_id", r.item.ID).Str("state", state.String()).
			Int("settled", settled).Int("eligible", n).Msg("item settled")

		s.settled(b, r.item, state, true)
		fill()
	}

	b.finish(logger)
}

func (s *Scheduler) settled(b *Batch, item *upload.Item, state upload.State, ranOperation bool) {
	b.progress.AddSettled(state, ranOperation)
	if s.observer != nil {
		s.observer.ItemSettled(b.ID, item, state)
	}
	if s.onProgress != nil {
		s.onProgress(b.progress.Snapshot())
	}
}

// runOperation runs one operation and always delivers exactly one settlement,
// converting a panic into an error.
func runOperation(ctx context.Context, item *upload.Item, newOp OperationFactory, results chan<- settlement) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
		results <- settlement{item: item, err: err}
	}()

	op := newOp(item)
	if op == nil {
		err = ErrNilOperation
		return
	}
	err = op(ctx)
}

// Batch is the aggregate future of one transition run.
type Batch struct {
	// ID uniquely identifies the run in logs.
	ID string

	// Transition is the name of the transition being run.
	Transition string

	items    []*upload.Item
	progress *Progress
	done     chan struct{}
	duration time.Duration
}

func (b *Batch) finish(logger zerolog.Logger) {
	b.duration = b.progress.ElapsedTime()
	snap := b.progress.Snapshot()
	logger.Info().
		Int("completed", snap.CompletedItems).
		Int("failed", snap.FailedItems).
		Int("aborted", snap.AbortedItems).
		Dur("duration", b.duration).
		Msg("batch settled")
	close(b.done)
}

// Done returns a channel closed once every eligible item has settled.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch resolves or ctx is done. Returning early on ctx
// does not stop the batch.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Items returns the admitted items in admission order.
func (b *Batch) Items() []*upload.Item {
	return append([]*upload.Item(nil), b.items...)
}

// Progress returns the current progress snapshot.
func (b *Batch) Progress() ProgressSnapshot {
	return b.progress.Snapshot()
}

// Summary tallies outcomes of a resolved batch.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Aborted   int
	Duration  time.Duration
}

// Summary returns outcome counts. It is only meaningful after Done is closed.
func (b *Batch) Summary() Summary {
	snap := b.progress.Snapshot()
	return Summary{
		Total:     snap.TotalItems,
		Completed: snap.CompletedItems,
		Failed:    snap.FailedItems,
		Aborted:   snap.AbortedItems,
		Duration:  b.duration,
	}
}
