package batch

import (
	"sync"
	"time"

	"github.com/rshade/uploadwiz/internal/upload"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks settlements within one batch run.
// It provides thread-safe access to progress metrics for UI updates.
type Progress struct {
	// TotalItems is the number of eligible items in the batch.
	TotalItems int

	// ActiveItems is the number of operations currently in flight.
	ActiveItems int

	// SettledItems is the number of items that reached a terminal state.
	SettledItems int

	// CompletedItems, FailedItems and AbortedItems split SettledItems by outcome.
	CompletedItems int
	FailedItems    int
	AbortedItems   int

	// StartTime is when the batch started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// NewProgress creates a new progress tracker for total eligible items.
func NewProgress(totalItems int) *Progress {
	now := time.Now()
	return &Progress{
		TotalItems:     totalItems,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddStarted records an operation taking a slot.
func (p *Progress) AddStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ActiveItems++
	p.LastUpdateTime = time.Now()
}

// AddSettled records an item reaching state. ranOperation reports whether the
// item held a slot that is now released.
func (p *Progress) AddSettled(state upload.State, ranOperation bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ranOperation && p.ActiveItems > 0 {
		p.ActiveItems--
	}
	p.SettledItems++
	switch state {
	case upload.StateComplete:
		p.CompletedItems++
	case upload.StateAborted:
		p.AbortedItems++
	default:
		p.FailedItems++
	}
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the settled percentage (0-100).
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.percentCompleteUnsafe()
}

// IsComplete returns true if every eligible item has settled.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.SettledItems >= p.TotalItems
}

// ElapsedTime returns the time elapsed since the batch started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.StartTime)
}

// EstimatedTimeRemaining estimates the remaining time from the settlement rate so far.
// Returns 0 if nothing has settled yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.SettledItems == 0 {
		return 0
	}

	elapsed := time.Since(p.StartTime)
	avgTimePerItem := elapsed / time.Duration(p.SettledItems)
	remainingItems := p.TotalItems - p.SettledItems

	return avgTimePerItem * time.Duration(remainingItems)
}

// ItemsPerSecond returns the settlement rate in items per second.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.itemsPerSecondUnsafe()
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalItems:      p.TotalItems,
		ActiveItems:     p.ActiveItems,
		SettledItems:    p.SettledItems,
		CompletedItems:  p.CompletedItems,
		FailedItems:     p.FailedItems,
		AbortedItems:    p.AbortedItems,
		StartTime:       p.StartTime,
		LastUpdateTime:  p.LastUpdateTime,
		PercentComplete: p.percentCompleteUnsafe(),
		ElapsedTime:     time.Since(p.StartTime),
		ItemsPerSecond:  p.itemsPerSecondUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems      int
	ActiveItems     int
	SettledItems    int
	CompletedItems  int
	FailedItems     int
	AbortedItems    int
	StartTime       time.Time
	LastUpdateTime  time.Time
	PercentComplete float64
	ElapsedTime     time.Duration
	ItemsPerSecond  float64
}

// percentCompleteUnsafe calculates percent complete without locking.
// Should only be called when already holding the lock.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalItems == 0 {
		return percentMultiplier
	}
	return (float64(p.SettledItems) / float64(p.TotalItems)) * percentMultiplier
}

// itemsPerSecondUnsafe calculates items per second without locking.
// Should only be called when already holding the lock.
func (p *Progress) itemsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.SettledItems) / elapsed
}
