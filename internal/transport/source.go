package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opencontainers/go-digest"

	"github.com/rshade/uploadwiz/internal/upload"
)

// sniffLen is how many leading bytes are inspected for content detection.
const sniffLen = 3072

// ErrSourceStatus is returned when a URL source answers with a non-2xx status.
var ErrSourceStatus = errors.New("unexpected source status")

// Payload is an opened item source.
type Payload struct {
	// Name is the base name used in the object key.
	Name string

	// Size is the payload length, or -1 when unknown.
	Size int64

	ContentType string

	body     io.Reader
	closer   io.Closer
	digester digest.Digester
}

// Read reads from the source while feeding the digest.
func (p *Payload) Read(b []byte) (int, error) {
	return p.body.Read(b)
}

// Close releases the underlying source.
func (p *Payload) Close() error {
	return p.closer.Close()
}

// Digest returns the sha256 digest of everything read so far.
func (p *Payload) Digest() digest.Digest {
	return p.digester.Digest()
}

// Opener opens the payload behind an item.
type Opener interface {
	Open(ctx context.Context, item *upload.Item) (*Payload, error)
}

// SourceOpener opens local files and http(s) URLs.
type SourceOpener struct {
	client *http.Client
}

// NewSourceOpener returns an opener. A nil client uses http.DefaultClient.
func NewSourceOpener(client *http.Client) *SourceOpener {
	if client == nil {
		client = http.DefaultClient
	}
	return &SourceOpener{client: client}
}

// Open dispatches on item.FromURL.
func (o *SourceOpener) Open(ctx context.Context, item *upload.Item) (*Payload, error) {
	if item.FromURL {
		return o.openURL(ctx, item.Source)
	}
	return openFile(item.Source)
}

func openFile(name string) (*Payload, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return newPayload(filepath.Base(name), info.Size(), f, f)
}

func (o *SourceOpener) openURL(ctx context.Context, raw string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", raw, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", raw, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrSourceStatus, raw, resp.Status)
	}
	return newPayload(urlBase(raw), resp.ContentLength, resp.Body, resp.Body)
}

func urlBase(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "download"
	}
	return path.Base(u.Path)
}

// newPayload sniffs the content type and tees everything read into a sha256
// digester.
func newPayload(name string, size int64, r io.Reader, c io.Closer) (*Payload, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		_ = c.Close()
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	d := digest.Canonical.Digester()
	return &Payload{
		Name:        name,
		Size:        size,
		ContentType: mimetype.Detect(head).String(),
		body:        io.TeeReader(br, d.Hash()),
		closer:      c,
		digester:    d,
	}, nil
}
