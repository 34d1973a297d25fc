package transport

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

// S3API is the subset of the S3 client used by S3Stasher.
type S3API interface {
	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	UploadPart(
		ctx context.Context,
		params *s3.UploadPartInput,
		optFns ...func(*s3.Options),
	) (*s3.UploadPartOutput, error)

	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)

	CopyObject(
		ctx context.Context,
		params *s3.CopyObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.CopyObjectOutput, error)
}

// S3Options configures an S3Stasher.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	PartSize        int64
	PartConcurrency int
}

// S3Stasher stashes payloads with S3 multipart uploads.
type S3Stasher struct {
	api  S3API
	opts S3Options
}

// NewS3Stasher wraps api. Part size is raised to MinPartSize when smaller.
func NewS3Stasher(api S3API, opts S3Options) *S3Stasher {
	if opts.PartSize < MinPartSize {
		opts.PartSize = MinPartSize
	}
	if opts.PartConcurrency <= 0 {
		opts.PartConcurrency = DefaultPartConcurrency
	}
	return &S3Stasher{api: api, opts: opts}
}

// NewS3Client builds an S3 client for opts. Credentials are not loaded here;
// every request carries the token it was issued for.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Bucket returns the destination bucket.
func (s *S3Stasher) Bucket() string {
	return s.opts.Bucket
}

func withToken(tok Token) func(*s3.Options) {
	return func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(
			tok.AccessKeyID, tok.SecretAccessKey, tok.SessionToken)
	}
}

// Stash uploads req.Body in parts of PartSize, at most PartConcurrency at a
// time. Any failure aborts the multipart upload.
func (s *S3Stasher) Stash(ctx context.Context, req StashRequest, progress ProgressFunc) (StashResult, error) {
	key := objectKey(s.opts.Prefix, req.Key)
	creds := withToken(req.Token)

	input := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(s.opts.Bucket),
		Key:      aws.String(key),
		Metadata: req.Metadata,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	created, err := s.api.CreateMultipartUpload(ctx, input, creds)
	if err != nil {
		return StashResult{}, classifyS3("CreateMultipartUpload", err)
	}
	uploadID := created.UploadId

	parts, size, err := s.uploadParts(ctx, key, uploadID, req, progress)
	if err != nil {
		// The transfer context may already be cancelled.
		_, abortErr := s.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.opts.Bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		}, creds)
		return StashResult{}, errors.Join(err, classifyS3("AbortMultipartUpload", abortErr))
	}

	done, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.opts.Bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: parts},
	}, creds)
	if err != nil {
		return StashResult{}, classifyS3("CompleteMultipartUpload", err)
	}

	return StashResult{
		Bucket: s.opts.Bucket,
		Key:    key,
		ETag:   aws.ToString(done.ETag),
		Size:   size,
	}, nil
}

// uploadParts reads the body sequentially and ships each part on its own
// goroutine. g.Go blocks at the limit, so at most PartConcurrency+1 part
// buffers are live.
func (s *S3Stasher) uploadParts(
	ctx context.Context,
	key string,
	uploadID *string,
	req StashRequest,
	progress ProgressFunc,
) ([]s3types.CompletedPart, int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.PartConcurrency)

	var (
		mu    sync.Mutex
		parts []s3types.CompletedPart
		sent  int64
		total int64
	)

	for partNumber := int32(1); ; partNumber++ {
		buf := make([]byte, s.opts.PartSize)
		n, readErr := io.ReadFull(req.Body, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
			_ = g.Wait()
			return nil, 0, fmt.Errorf("reading part %d: %w", partNumber, readErr)
		}
		// An empty payload still needs one (empty) part.
		if n == 0 && partNumber > 1 {
			break
		}
		total += int64(n)

		body := buf[:n]
		num := partNumber
		g.Go(func() error {
			out, err := s.api.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        aws.String(s.opts.Bucket),
				Key:           aws.String(key),
				UploadId:      uploadID,
				PartNumber:    aws.Int32(num),
				Body:          bytes.NewReader(body),
				ContentLength: aws.Int64(int64(len(body))),
			}, withToken(req.Token))
			if err != nil {
				return classifyS3(fmt.Sprintf("UploadPart %d", num), err)
			}

			mu.Lock()
			defer mu.Unlock()
			parts = append(parts, s3types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(num)})
			sent += int64(len(body))
			if progress != nil {
				progress(sent)
			}
			return nil
		})

		if readErr != nil || gctx.Err() != nil {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	slices.SortFunc(parts, func(a, b s3types.CompletedPart) int {
		return cmp.Compare(aws.ToInt32(a.PartNumber), aws.ToInt32(b.PartNumber))
	})
	return parts, total, nil
}

// UpdateMetadata rewrites an object's metadata in place via CopyObject.
func (s *S3Stasher) UpdateMetadata(ctx context.Context, key string, metadata map[string]string, tok Token) error {
	source := url.PathEscape(s.opts.Bucket) + "/" + (&url.URL{Path: key}).EscapedPath()
	_, err := s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.opts.Bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(source),
		Metadata:          metadata,
		MetadataDirective: s3types.MetadataDirectiveReplace,
	}, withToken(tok))
	if err != nil {
		return classifyS3("CopyObject", err)
	}
	return nil
}

// classifyS3 annotates err with the S3 operation and, for API errors, the
// service error code.
func classifyS3(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
