package upload

import (
	"errors"
	"maps"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProgressIndeterminate is reported by Progress while the transfer size is unknown.
const ProgressIndeterminate = -1.0

// Deed is the licensing declaration attached to an item before its details are applied.
type Deed struct {
	// ID is the license identifier (e.g. "cc-by-sa-4.0").
	ID string `json:"id" yaml:"id"`

	// Author is credited in the metadata; empty means the uploader.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`

	// Source is where a third-party work was obtained.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// ThirdParty marks works that are not the uploader's own.
	ThirdParty bool `json:"third_party" yaml:"third_party"`
}

// Receipt records where a stashed payload landed.
type Receipt struct {
	Key         string    `json:"key"`
	Bucket      string    `json:"bucket"`
	ETag        string    `json:"etag"`
	Digest      string    `json:"digest"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StashedAt   time.Time `json:"stashed_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Item is one upload moving through the pipeline.
type Item struct {
	// ID identifies the item within a batch.
	ID string

	// Source is a local path or an http(s) URL.
	Source string

	// FromURL marks items taken from the URL input path rather than a local file.
	FromURL bool

	mu        sync.Mutex
	state     State
	progress  float64
	label     string
	lastError error
	startedAt time.Time
	deed      Deed
	metadata  map[string]string
	receipt   *Receipt
}

// NewItem creates a pending item for source. An empty id is replaced with a ULID.
func NewItem(id, source string) *Item {
	if id == "" {
		id = ulid.Make().String()
	}
	return &Item{
		ID:       id,
		Source:   source,
		FromURL:  isURL(source),
		state:    StatePending,
		metadata: map[string]string{},
	}
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// State returns the current lifecycle state.
func (i *Item) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// IsAborted reports whether the item has been aborted.
func (i *Item) IsAborted() bool {
	return i.State() == StateAborted
}

// Progress returns the advisory progress fraction in [0,1], or
// ProgressIndeterminate while the size is unknown.
func (i *Item) Progress() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.progress
}

// SetProgress records a progress fraction. Values are clamped to [0,1] and
// ignored unless the item is transitioning or when they would move progress
// backwards.
func (i *Item) SetProgress(fraction float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateTransitioning {
		return
	}
	fraction = min(max(fraction, 0), 1)
	if fraction < i.progress {
		return
	}
	i.progress = fraction
}

// SetIndeterminate marks progress as unknown until the next determinate update.
func (i *Item) SetIndeterminate() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == StateTransitioning && i.progress <= 0 {
		i.progress = ProgressIndeterminate
	}
}

// Label returns the user-visible status label.
func (i *Item) Label() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.label
}

// SetLabel replaces the user-visible status label.
func (i *Item) SetLabel(label string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.label = label
}

// LastError returns the failure recorded when the item settled as error.
func (i *Item) LastError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastError
}

// StartedAt returns when transmission began, or the zero time.
func (i *Item) StartedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.startedAt
}

// MarkStarted sets the began-transmitting marker.
func (i *Item) MarkStarted(t time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startedAt = t
}

// Deed returns the item's deed.
func (i *Item) Deed() Deed {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deed
}

// SetDeed replaces the item's deed.
func (i *Item) SetDeed(d Deed) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deed = d
}

// Metadata returns a copy of the item's custom metadata.
func (i *Item) Metadata() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return maps.Clone(i.metadata)
}

// SetMetadata sets a single metadata entry.
func (i *Item) SetMetadata(key, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.metadata == nil {
		i.metadata = map[string]string{}
	}
	i.metadata[key] = value
}

// Receipt returns the stash receipt, or nil if the item has not been stashed.
func (i *Item) Receipt() *Receipt {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.receipt == nil {
		return nil
	}
	r := *i.receipt
	return &r
}

// SetReceipt stores the stash receipt.
func (i *Item) SetReceipt(r Receipt) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.receipt = &r
}

// Abort marks a non-terminal item as aborted. It returns false when the item
// had already settled.
func (i *Item) Abort() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state.IsTerminal() {
		return false
	}
	i.state = StateAborted
	i.label = StateAborted.String()
	return true
}

// Begin moves a pending item to transitioning. It returns false if the item
// is in any other state, which keeps an item from running twice at once.
func (i *Item) Begin() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StatePending {
		return false
	}
	i.state = StateTransitioning
	i.progress = 0
	i.lastError = nil
	return true
}

// Settle applies an operation outcome and returns the terminal state.
// An abort always wins: an item aborted while running settles as aborted even
// if its operation went on to succeed or fail.
func (i *Item) Settle(err error) State {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch {
	case i.state == StateAborted:
	case errors.Is(err, ErrUserAborted):
		i.state = StateAborted
		i.label = StateAborted.String()
	case err != nil:
		i.state = StateError
		i.lastError = err
	default:
		i.state = StateComplete
		i.progress = 1
	}
	return i.state
}

// ResetForStage returns a complete item to pending so the next stage may
// admit it. Error and aborted items stay terminal.
func (i *Item) ResetForStage() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateComplete {
		return false
	}
	i.state = StatePending
	i.progress = 0
	i.startedAt = time.Time{}
	return true
}

// Status is a point-in-time copy of an item's observable fields.
type Status struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	State    State   `json:"state"`
	Progress float64 `json:"progress"`
	Label    string  `json:"label,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Snapshot returns the item's current Status.
func (i *Item) Snapshot() Status {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := Status{
		ID:       i.ID,
		Source:   i.Source,
		State:    i.state,
		Progress: i.progress,
		Label:    i.label,
	}
	if i.lastError != nil {
		s.Error = i.lastError.Error()
	}
	return s
}
