package transport

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/rshade/uploadwiz/internal/upload"
)

var testToken = Token{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret", SessionToken: "session"}

func staticTokens() TokenProvider {
	return TokenProviderFunc(func(context.Context) (Token, error) { return testToken, nil })
}

// memOpener serves payloads from memory keyed by item source.
type memOpener struct {
	data        map[string][]byte
	unknownSize bool
	err         error
}

func (o *memOpener) Open(_ context.Context, item *upload.Item) (*Payload, error) {
	if o.err != nil {
		return nil, o.err
	}
	data := o.data[item.Source]
	size := int64(len(data))
	if o.unknownSize {
		size = -1
	}
	r := bytes.NewReader(data)
	return newPayload(item.Source, size, r, io.NopCloser(r))
}

type metaCall struct {
	key      string
	metadata map[string]string
	token    Token
}

// fakeStasher drains the body, then replays steps as progress reports.
type fakeStasher struct {
	steps    []int64
	stepHook func(step int)
	block    bool
	err      error
	metaErr  error
	started  chan struct{}

	mu        sync.Mutex
	requests  []StashRequest
	bodies    [][]byte
	metaCalls []metaCall
}

func (f *fakeStasher) Bucket() string { return "test-bucket" }

func (f *fakeStasher) Stash(ctx context.Context, req StashRequest, progress ProgressFunc) (StashResult, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return StashResult{}, err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, data)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	for i, sent := range f.steps {
		if f.stepHook != nil {
			f.stepHook(i)
		}
		if err := ctx.Err(); err != nil {
			return StashResult{}, err
		}
		progress(sent)
	}
	if f.block {
		<-ctx.Done()
		return StashResult{}, ctx.Err()
	}
	if f.err != nil {
		return StashResult{}, f.err
	}
	return StashResult{Bucket: f.Bucket(), Key: "stash/" + req.Key, ETag: "etag-1", Size: int64(len(data))}, nil
}

func (f *fakeStasher) UpdateMetadata(_ context.Context, key string, metadata map[string]string, tok Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls = append(f.metaCalls, metaCall{key: key, metadata: metadata, token: tok})
	return f.metaErr
}

// recordingSink keeps every status it is sent.
type recordingSink struct {
	mu       sync.Mutex
	statuses []upload.Status
}

func (s *recordingSink) ItemUpdated(status upload.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, st := range s.statuses {
		if len(out) == 0 || out[len(out)-1] != st.Label {
			out = append(out, st.Label)
		}
	}
	return out
}
