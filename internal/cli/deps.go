package cli

import (
	"context"
	"fmt"

	"github.com/rshade/uploadwiz/internal/awsutil"
	"github.com/rshade/uploadwiz/internal/config"
	"github.com/rshade/uploadwiz/internal/ledger"
	"github.com/rshade/uploadwiz/internal/transport"
)

// backends builds the collaborators an upload needs from configuration.
// Tests replace the constructors with fakes.
type backends struct {
	tokens  func(ctx context.Context, cfg *config.Config) (transport.TokenProvider, error)
	stasher func(ctx context.Context, cfg *config.Config) (transport.Stasher, error)
	ledger  func(cfg *config.Config) (*ledger.FileStore, error)
	opener  transport.Opener
}

func defaultBackends() backends {
	return backends{
		tokens:  newTokenProvider,
		stasher: newStasher,
		ledger:  openLedger,
	}
}

// newTokenProvider returns the provider selected by token.source. A Secrets
// Manager client uses token.region, then the region in the secret ARN, then
// stash.region.
func newTokenProvider(ctx context.Context, cfg *config.Config) (transport.TokenProvider, error) {
	switch cfg.Token.Source {
	case transport.TokenSourceStatic:
		return transport.NewStaticTokenProvider(transport.Token{
			AccessKeyID:     cfg.Token.AccessKeyID,
			SecretAccessKey: cfg.Token.SecretAccessKey,
			SessionToken:    cfg.Token.SessionToken,
		}), nil
	case transport.TokenSourceEnv, "":
		return transport.NewEnvTokenProvider(), nil
	case transport.TokenSourceSecretsManager:
		region := cfg.Token.Region
		if region == "" {
			region = awsutil.RegionFromARN(cfg.Token.SecretID)
		}
		if region == "" {
			region = cfg.Stash.Region
		}
		client, err := transport.NewSecretsManagerClient(ctx, region, cfg.Token.Endpoint)
		if err != nil {
			return nil, err
		}
		return transport.NewSecretsManagerTokenProvider(client, cfg.Token.SecretID), nil
	default:
		return nil, fmt.Errorf("unknown token source %q", cfg.Token.Source)
	}
}

// newStasher returns the stasher selected by stash.backend.
func newStasher(ctx context.Context, cfg *config.Config) (transport.Stasher, error) {
	switch cfg.Stash.Backend {
	case transport.BackendMinio:
		return transport.NewMinioStasher(nil, transport.MinioOptions{
			Bucket:   awsutil.BucketName(cfg.Stash.Bucket),
			Prefix:   cfg.Stash.Prefix,
			Endpoint: cfg.Stash.Endpoint,
			Region:   cfg.Stash.Region,
			UseSSL:   cfg.Stash.UseSSL,
			PartSize: cfg.PartSize(),
		}), nil
	case transport.BackendS3, "":
		opts := transport.S3Options{
			Bucket:          awsutil.BucketName(cfg.Stash.Bucket),
			Prefix:          cfg.Stash.Prefix,
			Region:          cfg.Stash.Region,
			Endpoint:        cfg.Stash.Endpoint,
			PathStyle:       cfg.Stash.PathStyle,
			PartSize:        cfg.PartSize(),
			PartConcurrency: cfg.Upload.PartConcurrency,
		}
		client, err := transport.NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return transport.NewS3Stasher(client, opts), nil
	default:
		return nil, fmt.Errorf("unknown stash backend %q", cfg.Stash.Backend)
	}
}

// openLedger opens the receipt store at the configured directory.
func openLedger(cfg *config.Config) (*ledger.FileStore, error) {
	dir, err := cfg.LedgerDir()
	if err != nil {
		return nil, err
	}
	store, err := ledger.NewFileStore(dir, cfg.Ledger.Enabled)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	return store, nil
}
