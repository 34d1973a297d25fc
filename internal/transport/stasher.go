package transport

import (
	"context"
	"io"
	"path"
	"strings"
)

// Stash backends accepted in configuration.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

const (
	// MinPartSize is the smallest part size object stores accept for all but
	// the last part of a multipart upload.
	MinPartSize int64 = 5 * 1024 * 1024

	// DefaultPartConcurrency bounds the parts of one object in flight.
	DefaultPartConcurrency = 4
)

// StashRequest describes one payload to stash.
type StashRequest struct {
	// Key is the object key relative to the stasher's prefix.
	Key string

	// Body is read exactly once.
	Body io.Reader

	// Size is the payload length, or -1 when unknown.
	Size int64

	ContentType string
	Metadata    map[string]string

	// Token authorizes this request only.
	Token Token
}

// StashResult is where the payload landed.
type StashResult struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

// ProgressFunc receives the cumulative number of bytes sent. Calls are
// serialized and the count never decreases.
type ProgressFunc func(sent int64)

// Stasher stores payloads in object storage.
type Stasher interface {
	// Stash uploads req.Body. Cancelling ctx terminates the transfer.
	Stash(ctx context.Context, req StashRequest, progress ProgressFunc) (StashResult, error)

	// UpdateMetadata replaces the metadata of an already stashed object.
	UpdateMetadata(ctx context.Context, key string, metadata map[string]string, tok Token) error

	// Bucket returns the destination bucket.
	Bucket() string
}

// objectKey joins a stasher prefix and a request key.
func objectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
