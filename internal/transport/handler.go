package transport

import (
	"context"
	"errors"
	"maps"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

// DefaultExpiry is how long a stashed payload is kept before the store may
// discard it.
const DefaultExpiry = 48 * time.Hour

// Item labels reported to the progress sink.
const (
	LabelAcquiringToken = "acquiring token"
	LabelStashing       = "stashing"
	LabelStashed        = "stashed"
	LabelApplying       = "applying details"
	LabelApplied        = "details applied"
)

// Metadata keys written with every stashed object.
const (
	MetaItemID         = "uploadwiz-item"
	MetaDeedID         = "deed-id"
	MetaDeedAuthor     = "deed-author"
	MetaDeedSource     = "deed-source"
	MetaDeedThirdParty = "deed-third-party"
)

// Handler errors.
var (
	ErrNilTokenProvider = errors.New("token provider cannot be nil")
	ErrNilStasher       = errors.New("stasher cannot be nil")
	ErrNotStashed       = errors.New("item has no stash receipt")

	errAbortRequested = errors.New("abort requested")
)

// ProgressSink observes per-item progress and label changes.
type ProgressSink interface {
	ItemUpdated(status upload.Status)
}

// Handler stashes items and applies their details. It is safe for concurrent
// use by many operations at once.
type Handler struct {
	tokens  TokenProvider
	stasher Stasher
	sources Opener
	sink    ProgressSink
	expiry  time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu       sync.Mutex
	inflight map[*upload.Item]context.CancelCauseFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOpener replaces the default source opener.
func WithOpener(o Opener) HandlerOption {
	return func(h *Handler) { h.sources = o }
}

// WithProgressSink sets the sink notified on every progress or label change.
func WithProgressSink(sink ProgressSink) HandlerOption {
	return func(h *Handler) { h.sink = sink }
}

// WithExpiry sets the stash expiry recorded in receipts.
func WithExpiry(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.expiry = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler returns a handler stashing through stasher with tokens from tokens.
func NewHandler(tokens TokenProvider, stasher Stasher, opts ...HandlerOption) (*Handler, error) {
	if tokens == nil {
		return nil, ErrNilTokenProvider
	}
	if stasher == nil {
		return nil, ErrNilStasher
	}
	h := &Handler{
		tokens:   tokens,
		stasher:  stasher,
		sources:  NewSourceOpener(nil),
		expiry:   DefaultExpiry,
		now:      time.Now,
		logger:   zerolog.Nop(),
		inflight: map[*upload.Item]context.CancelCauseFunc{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "transport").Logger()
	return h, nil
}

// track registers item as abortable and returns its transfer context.
func (h *Handler) track(ctx context.Context, item *upload.Item) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	h.mu.Lock()
	h.inflight[item] = cancel
	h.mu.Unlock()

	return ctx, func() {
		h.mu.Lock()
		delete(h.inflight, item)
		h.mu.Unlock()
		cancel(nil)
	}
}

// Abort marks item aborted and terminates its in-flight token request or
// transfer. It is idempotent and a no-op for items the handler is not running.
func (h *Handler) Abort(item *upload.Item) {
	if item == nil {
		return
	}
	item.Abort()

	h.mu.Lock()
	cancel, ok := h.inflight[item]
	h.mu.Unlock()
	if ok {
		cancel(errAbortRequested)
	}
}

func aborted(ctx context.Context, item *upload.Item) bool {
	return item.IsAborted() || errors.Is(context.Cause(ctx), errAbortRequested)
}

func (h *Handler) notify(item *upload.Item) {
	if h.sink != nil {
		h.sink.ItemUpdated(item.Snapshot())
	}
}

func (h *Handler) acquire(ctx context.Context, item *upload.Item, op string) (Token, error) {
	item.SetLabel(LabelAcquiringToken)
	h.notify(item)

	tok, err := h.tokens.Token(ctx)
	switch {
	case aborted(ctx, item):
		return Token{}, upload.NewError(upload.KindUserAborted, item.ID, op, nil)
	case err != nil:
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("token acquisition failed")
		return Token{}, upload.NewError(upload.KindTokenAcquisition, item.ID, op, err)
	}
	return tok, nil
}

// Submit stashes item's source. The token is acquired before anything is
// read, and the item's start time is set only once the token is in hand.
// Outcomes are distinguishable with upload.KindOf.
func (h *Handler) Submit(ctx context.Context, item *upload.Item) error {
	const op = "stash"
	ctx, release := h.track(ctx, item)
	defer release()

	if aborted(ctx, item) {
		return upload.NewError(upload.KindUserAborted, item.ID, op, nil)
	}

	tok, err := h.acquire(ctx, item, op)
	if err != nil {
		return err
	}
	item.MarkStarted(h.now())

	payload, err := h.sources.Open(ctx, item)
	if err != nil {
		if aborted(ctx, item) {
			return upload.NewError(upload.KindUserAborted, item.ID, op, nil)
		}
		return upload.NewError(upload.KindTransport, item.ID, op, err)
	}
	defer func() { _ = payload.Close() }()

	item.SetLabel(LabelStashing)
	if payload.Size < 0 {
		item.SetIndeterminate()
	}
	h.notify(item)

	onProgress := func(sent int64) {
		if item.IsAborted() {
			h.Abort(item)
			return
		}
		if payload.Size > 0 {
			item.SetProgress(float64(sent) / float64(payload.Size))
		}
		h.notify(item)
	}

	res, err := h.stasher.Stash(ctx, StashRequest{
		Key:         path.Join(item.ID, payload.Name),
		Body:        payload,
		Size:        payload.Size,
		ContentType: payload.ContentType,
		Metadata:    map[string]string{MetaItemID: item.ID},
		Token:       tok,
	}, onProgress)
	if err != nil {
		if aborted(ctx, item) {
			h.logger.Info().Str("item_id", item.ID).Msg("stash aborted")
			return upload.NewError(upload.KindUserAborted, item.ID, op, nil)
		}
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("stash failed")
		return upload.NewError(upload.KindTransport, item.ID, op, err)
	}

	now := h.now()
	item.SetReceipt(upload.Receipt{
		Key:         res.Key,
		Bucket:      res.Bucket,
		ETag:        res.ETag,
		Digest:      payload.Digest().String(),
		ContentType: payload.ContentType,
		Size:        res.Size,
		StashedAt:   now,
		ExpiresAt:   now.Add(h.expiry),
	})
	item.SetLabel(LabelStashed)
	h.notify(item)

	h.logger.Info().
		Str("item_id", item.ID).
		Str("key", res.Key).
		Int64("size", res.Size).
		Dur("elapsed", now.Sub(item.StartedAt())).
		Msg("stashed")
	return nil
}

// ApplyMetadata writes the item's deed and custom metadata onto its stashed
// object with a freshly acquired token.
func (h *Handler) ApplyMetadata(ctx context.Context, item *upload.Item) error {
	const op = "details"
	ctx, release := h.track(ctx, item)
	defer release()

	receipt := item.Receipt()
	if receipt == nil {
		return upload.NewError(upload.KindIneligible, item.ID, op, ErrNotStashed)
	}
	if aborted(ctx, item) {
		return upload.NewError(upload.KindUserAborted, item.ID, op, nil)
	}

	tok, err := h.acquire(ctx, item, op)
	if err != nil {
		return err
	}
	item.MarkStarted(h.now())
	item.SetLabel(LabelApplying)
	item.SetIndeterminate()
	h.notify(item)

	if err := h.stasher.UpdateMetadata(ctx, receipt.Key, DetailsMetadata(item), tok); err != nil {
		if aborted(ctx, item) {
			return upload.NewError(upload.KindUserAborted, item.ID, op, nil)
		}
		h.logger.Warn().Err(err).Str("item_id", item.ID).Msg("applying details failed")
		return upload.NewError(upload.KindTransport, item.ID, op, err)
	}

	item.SetLabel(LabelApplied)
	h.notify(item)
	return nil
}

// DetailsMetadata is the object metadata written for item: its custom
// metadata overlaid with the deed fields.
func DetailsMetadata(item *upload.Item) map[string]string {
	meta := map[string]string{MetaItemID: item.ID}
	maps.Copy(meta, item.Metadata())

	deed := item.Deed()
	if deed.ID != "" {
		meta[MetaDeedID] = deed.ID
	}
	if deed.Author != "" {
		meta[MetaDeedAuthor] = deed.Author
	}
	if deed.Source != "" {
		meta[MetaDeedSource] = deed.Source
	}
	meta[MetaDeedThirdParty] = strconv.FormatBool(deed.ThirdParty)
	return meta
}

// Operation adapts Submit for the batch scheduler.
func (h *Handler) Operation(item *upload.Item) batch.Operation {
	return func(ctx context.Context) error {
		return h.Submit(ctx, item)
	}
}

// MetadataOperation adapts ApplyMetadata for the batch scheduler.
func (h *Handler) MetadataOperation(item *upload.Item) batch.Operation {
	return func(ctx context.Context) error {
		return h.ApplyMetadata(ctx, item)
	}
}
