package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAPI is the subset of the MinIO client used by MinioStasher.
type MinioAPI interface {
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)

	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
}

// MinioClientFactory builds a client authorized by tok.
type MinioClientFactory func(tok Token) (MinioAPI, error)

// MinioOptions configures a MinioStasher.
type MinioOptions struct {
	Bucket   string
	Prefix   string
	Endpoint string
	Region   string
	UseSSL   bool
	PartSize int64
}

// MinioStasher stashes payloads through minio-go. A client is built per call
// from that call's token; minio clients are cheap and hold no connections of
// their own beyond the shared transport.
type MinioStasher struct {
	newClient MinioClientFactory
	opts      MinioOptions
}

// NewMinioStasher returns a stasher using newClient. A nil factory uses
// NewMinioClientFactory(opts).
func NewMinioStasher(newClient MinioClientFactory, opts MinioOptions) *MinioStasher {
	if opts.PartSize < MinPartSize {
		opts.PartSize = MinPartSize
	}
	if newClient == nil {
		newClient = NewMinioClientFactory(opts)
	}
	return &MinioStasher{newClient: newClient, opts: opts}
}

// NewMinioClientFactory returns a factory for real minio clients.
func NewMinioClientFactory(opts MinioOptions) MinioClientFactory {
	return func(tok Token) (MinioAPI, error) {
		client, err := minio.New(opts.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(tok.AccessKeyID, tok.SecretAccessKey, tok.SessionToken),
			Secure: opts.UseSSL,
			Region: opts.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("creating minio client for %s: %w", opts.Endpoint, err)
		}
		return client, nil
	}
}

// Bucket returns the destination bucket.
func (s *MinioStasher) Bucket() string {
	return s.opts.Bucket
}

// Stash streams req.Body with PutObject. minio-go reads from the progress
// reader as bytes go out, which is where ProgressFunc is called.
func (s *MinioStasher) Stash(ctx context.Context, req StashRequest, progress ProgressFunc) (StashResult, error) {
	client, err := s.newClient(req.Token)
	if err != nil {
		return StashResult{}, err
	}

	key := objectKey(s.opts.Prefix, req.Key)
	opts := minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
		PartSize:     uint64(s.opts.PartSize),
	}
	if progress != nil {
		opts.Progress = &progressReader{report: progress, limit: req.Size}
	}

	info, err := client.PutObject(ctx, s.opts.Bucket, key, req.Body, req.Size, opts)
	if err != nil {
		return StashResult{}, classifyMinio("PutObject", err)
	}
	return StashResult{Bucket: info.Bucket, Key: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

// UpdateMetadata replaces the object's user metadata via a self-copy.
func (s *MinioStasher) UpdateMetadata(ctx context.Context, key string, metadata map[string]string, tok Token) error {
	client, err := s.newClient(tok)
	if err != nil {
		return err
	}
	_, err = client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          s.opts.Bucket,
			Object:          key,
			UserMetadata:    metadata,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: s.opts.Bucket, Object: key},
	)
	if err != nil {
		return classifyMinio("CopyObject", err)
	}
	return nil
}

func classifyMinio(op string, err error) error {
	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		return fmt.Errorf("%s: %s: %w", op, resp.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// progressReader counts the bytes minio-go reports as sent. Retried parts are
// counted again, so the total is capped at limit when the size is known.
type progressReader struct {
	mu     sync.Mutex
	report ProgressFunc
	sent   int64
	limit  int64
}

func (r *progressReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent += int64(len(p))
	if r.limit >= 0 && r.sent > r.limit {
		r.sent = r.limit
	}
	r.report(r.sent)
	return len(p), nil
}
