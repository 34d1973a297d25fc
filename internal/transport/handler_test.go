package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/upload"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestHandler(t *testing.T, tokens TokenProvider, st Stasher, opts ...HandlerOption) *Handler {
	t.Helper()
	opts = append([]HandlerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	h, err := NewHandler(tokens, st, opts...)
	require.NoError(t, err)
	return h
}

func runningItem(id, source string) *upload.Item {
	item := upload.NewItem(id, source)
	item.Begin()
	return item
}

func TestNewHandler_RequiresCollaborators(t *testing.T) {
	_, err := NewHandler(nil, &fakeStasher{})
	require.ErrorIs(t, err, ErrNilTokenProvider)

	_, err = NewHandler(staticTokens(), nil)
	require.ErrorIs(t, err, ErrNilStasher)
}

func TestHandler_SubmitSuccess(t *testing.T) {
	data := []byte("hello stash\n")
	st := &fakeStasher{steps: []int64{4, 8, int64(len(data))}}
	sink := &recordingSink{}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"photo.txt": data}}),
		WithProgressSink(sink),
		WithExpiry(2*time.Hour),
	)

	item := runningItem("A", "photo.txt")
	require.NoError(t, h.Submit(context.Background(), item))

	require.Len(t, st.requests, 1)
	req := st.requests[0]
	assert.Equal(t, "A/photo.txt", req.Key)
	assert.Equal(t, int64(len(data)), req.Size)
	assert.Equal(t, testToken, req.Token)
	assert.Equal(t, "A", req.Metadata[MetaItemID])
	assert.Equal(t, data, st.bodies[0])

	receipt := item.Receipt()
	require.NotNil(t, receipt)
	assert.Equal(t, "stash/A/photo.txt", receipt.Key)
	assert.Equal(t, "test-bucket", receipt.Bucket)
	assert.Equal(t, digest.FromBytes(data).String(), receipt.Digest)
	assert.Equal(t, "text/plain; charset=utf-8", receipt.ContentType)
	assert.Equal(t, fixedNow, receipt.StashedAt)
	assert.Equal(t, fixedNow.Add(2*time.Hour), receipt.ExpiresAt)

	assert.Equal(t, fixedNow, item.StartedAt())
	assert.InDelta(t, 1.0, item.Progress(), 0.0001)
	assert.Equal(t, []string{LabelAcquiringToken, LabelStashing, LabelStashed}, sink.labels())
}

func TestHandler_ProgressIsMonotonic(t *testing.T) {
	st := &fakeStasher{steps: []int64{6, 3, 10}}
	sink := &recordingSink{}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"f": make([]byte, 10)}}),
		WithProgressSink(sink),
	)

	require.NoError(t, h.Submit(context.Background(), runningItem("A", "f")))

	last := -1.0
	for _, s := range sink.statuses {
		if s.Label != LabelStashing {
			continue
		}
		assert.GreaterOrEqual(t, s.Progress, last)
		last = s.Progress
	}
	assert.InDelta(t, 1.0, last, 0.0001)
}

func TestHandler_UnknownSizeIsIndeterminate(t *testing.T) {
	st := &fakeStasher{steps: []int64{3}}
	var seen []float64
	sink := sinkFunc(func(s upload.Status) {
		if s.Label == LabelStashing {
			seen = append(seen, s.Progress)
		}
	})
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"u": []byte("abc")}, unknownSize: true}),
		WithProgressSink(sink),
	)

	require.NoError(t, h.Submit(context.Background(), runningItem("A", "u")))
	require.NotEmpty(t, seen)
	for _, p := range seen {
		assert.InDelta(t, upload.ProgressIndeterminate, p, 0.0001)
	}
}

type sinkFunc func(upload.Status)

func (f sinkFunc) ItemUpdated(s upload.Status) { f(s) }

func TestHandler_TokenFailure(t *testing.T) {
	tokenErr := errors.New("issuer unavailable")
	st := &fakeStasher{}
	h := newTestHandler(t,
		TokenProviderFunc(func(context.Context) (Token, error) { return Token{}, tokenErr }),
		st,
		WithOpener(&memOpener{}),
	)

	item := runningItem("A", "f")
	err := h.Submit(context.Background(), item)

	require.ErrorIs(t, err, upload.ErrTokenAcquisition)
	require.ErrorIs(t, err, tokenErr)
	assert.NotErrorIs(t, err, upload.ErrTransport)
	assert.Empty(t, st.requests, "nothing is transmitted without a token")
	assert.True(t, item.StartedAt().IsZero(), "start marker waits for the token")
}

func TestHandler_TransportFailure(t *testing.T) {
	netErr := errors.New("connection reset")
	st := &fakeStasher{steps: []int64{1}, err: netErr}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"f": []byte("xy")}}))

	item := runningItem("A", "f")
	err := h.Submit(context.Background(), item)

	require.ErrorIs(t, err, upload.ErrTransport)
	require.ErrorIs(t, err, netErr)
	assert.Equal(t, upload.KindTransport, upload.KindOf(err))
	assert.Nil(t, item.Receipt())
	assert.False(t, item.StartedAt().IsZero())
}

func TestHandler_OpenFailureIsTransport(t *testing.T) {
	h := newTestHandler(t, staticTokens(), &fakeStasher{},
		WithOpener(&memOpener{err: errors.New("no such file")}))

	err := h.Submit(context.Background(), runningItem("A", "missing"))
	require.ErrorIs(t, err, upload.ErrTransport)
}

func TestHandler_AbortObservedAtProgress(t *testing.T) {
	item := runningItem("A", "f")
	st := &fakeStasher{
		steps: []int64{2, 4, 6, 8},
		stepHook: func(step int) {
			if step == 2 {
				item.Abort()
			}
		},
	}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"f": make([]byte, 8)}}))

	err := h.Submit(context.Background(), item)

	require.ErrorIs(t, err, upload.ErrUserAborted)
	assert.NotErrorIs(t, err, upload.ErrTransport)
	assert.InDelta(t, 0.5, item.Progress(), 0.0001, "no progress processed after the abort")
	assert.Nil(t, item.Receipt())
}

func TestHandler_AbortDuringTokenAcquisition(t *testing.T) {
	waiting := make(chan struct{})
	tokens := TokenProviderFunc(func(ctx context.Context) (Token, error) {
		close(waiting)
		<-ctx.Done()
		return Token{}, ctx.Err()
	})
	st := &fakeStasher{}
	h := newTestHandler(t, tokens, st, WithOpener(&memOpener{}))
	item := runningItem("A", "f")

	errc := make(chan error, 1)
	go func() { errc <- h.Submit(context.Background(), item) }()

	<-waiting
	h.Abort(item)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, upload.ErrUserAborted)
		assert.NotErrorIs(t, err, upload.ErrTokenAcquisition)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not settle after abort")
	}
	assert.Empty(t, st.requests)
	assert.Equal(t, upload.StateAborted, item.State())
}

func TestHandler_AbortDuringTransfer(t *testing.T) {
	started := make(chan struct{})
	st := &fakeStasher{block: true, started: started}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"f": []byte("x")}}))
	item := runningItem("A", "f")

	errc := make(chan error, 1)
	go func() { errc <- h.Submit(context.Background(), item) }()

	<-started
	h.Abort(item)
	h.Abort(item)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, upload.ErrUserAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not settle after abort")
	}
}

func TestHandler_AbortUnknownItemIsNoop(t *testing.T) {
	h := newTestHandler(t, staticTokens(), &fakeStasher{})
	assert.NotPanics(t, func() {
		h.Abort(nil)
		h.Abort(upload.NewItem("stray", "x"))
	})
}

func TestHandler_AbortedBeforeStart(t *testing.T) {
	st := &fakeStasher{}
	called := false
	tokens := TokenProviderFunc(func(context.Context) (Token, error) {
		called = true
		return testToken, nil
	})
	h := newTestHandler(t, tokens, st)

	item := runningItem("A", "f")
	item.Abort()
	require.ErrorIs(t, h.Submit(context.Background(), item), upload.ErrUserAborted)
	assert.False(t, called)
}

// A batch whose single item is aborted mid-transmission settles as aborted
// and still resolves.
func TestHandler_AbortThroughScheduler(t *testing.T) {
	var item *upload.Item
	st := &fakeStasher{
		steps: []int64{1, 2, 3, 4},
		stepHook: func(step int) {
			if step == 1 {
				item.Abort()
			}
		},
	}
	h := newTestHandler(t, staticTokens(), st,
		WithOpener(&memOpener{data: map[string][]byte{"f": make([]byte, 4)}}))

	item = upload.NewItem("A", "f")
	s, err := batch.NewScheduler(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := s.Run(ctx, []*upload.Item{item}, batch.Transition{Name: "stash", NewOperation: h.Operation})
	require.NoError(t, err)

	assert.Equal(t, upload.StateAborted, item.State())
	assert.Equal(t, 1, b.Summary().Aborted)
}

func TestHandler_ApplyMetadata(t *testing.T) {
	t.Run("requires receipt", func(t *testing.T) {
		h := newTestHandler(t, staticTokens(), &fakeStasher{})
		err := h.ApplyMetadata(context.Background(), runningItem("A", "f"))
		require.ErrorIs(t, err, upload.ErrIneligibleItem)
		require.ErrorIs(t, err, ErrNotStashed)
	})

	t.Run("writes deed and metadata", func(t *testing.T) {
		st := &fakeStasher{}
		h := newTestHandler(t, staticTokens(), st)

		item := upload.NewItem("A", "https://example.org/cat.jpg")
		item.SetReceipt(upload.Receipt{Key: "stash/A/cat.jpg"})
		item.SetDeed(upload.Deed{ID: "cc-by-4.0", Source: "https://example.org/cat.jpg", ThirdParty: true})
		item.SetMetadata("caption", "a cat")
		item.Begin()

		require.NoError(t, h.ApplyMetadata(context.Background(), item))
		require.Len(t, st.metaCalls, 1)
		call := st.metaCalls[0]
		assert.Equal(t, "stash/A/cat.jpg", call.key)
		assert.Equal(t, testToken, call.token)
		assert.Equal(t, map[string]string{
			MetaItemID:         "A",
			MetaDeedID:         "cc-by-4.0",
			MetaDeedSource:     "https://example.org/cat.jpg",
			MetaDeedThirdParty: "true",
			"caption":          "a cat",
		}, call.metadata)
		assert.Equal(t, LabelApplied, item.Label())
	})

	t.Run("transport failure", func(t *testing.T) {
		st := &fakeStasher{metaErr: errors.New("403")}
		h := newTestHandler(t, staticTokens(), st)
		item := runningItem("A", "f")
		item.SetReceipt(upload.Receipt{Key: "k"})
		require.ErrorIs(t, h.ApplyMetadata(context.Background(), item), upload.ErrTransport)
	})
}
