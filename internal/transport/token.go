package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// Token sources accepted in configuration.
const (
	TokenSourceStatic         = "static"
	TokenSourceEnv            = "env"
	TokenSourceSecretsManager = "secretsmanager"
)

// Secrets Manager error codes that map to package sentinels.
const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"
)

// Token errors.
var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenIncomplete = errors.New("token is missing access key or secret")
	ErrSecretNotFound  = errors.New("token secret not found")
	ErrAccessDenied    = errors.New("access denied reading token secret")
	ErrSecretEmpty     = errors.New("token secret is empty")
)

// Token is a short-lived credential used for one transfer.
type Token struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
}

// Validate reports whether the token can be used at now.
func (t Token) Validate(now time.Time) error {
	if t.AccessKeyID == "" || t.SecretAccessKey == "" {
		return ErrTokenIncomplete
	}
	if !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, t.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// TokenProvider returns a freshly valid token on every call.
type TokenProvider interface {
	Token(ctx context.Context) (Token, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (Token, error)

// Token calls f.
func (f TokenProviderFunc) Token(ctx context.Context) (Token, error) {
	return f(ctx)
}

// StaticTokenProvider always returns the same token.
type StaticTokenProvider struct {
	token Token
}

// NewStaticTokenProvider returns a provider for a fixed token.
func NewStaticTokenProvider(tok Token) *StaticTokenProvider {
	return &StaticTokenProvider{token: tok}
}

// Token returns the configured token if it is still valid.
func (p *StaticTokenProvider) Token(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	if err := p.token.Validate(time.Now()); err != nil {
		return Token{}, err
	}
	return p.token, nil
}

// EnvTokenProvider reads credentials from the environment on every call, so a
// token rotated by an external agent is picked up by the next transfer.
// UPLOADWIZ_* variables take precedence over the standard AWS_* ones.
type EnvTokenProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvTokenProvider returns a provider backed by os.LookupEnv.
func NewEnvTokenProvider() *EnvTokenProvider {
	return &EnvTokenProvider{lookup: os.LookupEnv}
}

func (p *EnvTokenProvider) first(names ...string) string {
	for _, name := range names {
		if v, ok := p.lookup(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// Token assembles a token from the environment.
func (p *EnvTokenProvider) Token(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	tok := Token{
		AccessKeyID:     p.first("UPLOADWIZ_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"),
		SecretAccessKey: p.first("UPLOADWIZ_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"),
		SessionToken:    p.first("UPLOADWIZ_SESSION_TOKEN", "AWS_SESSION_TOKEN"),
	}
	if raw := p.first("UPLOADWIZ_TOKEN_EXPIRES_AT"); raw != "" {
		exp, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Token{}, fmt.Errorf("parsing UPLOADWIZ_TOKEN_EXPIRES_AT: %w", err)
		}
		tok.ExpiresAt = exp
	}
	if err := tok.Validate(time.Now()); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerTokenProvider fetches a JSON-encoded Token from AWS Secrets
// Manager on every call. The secret is expected to be rotated by the issuer.
type SecretsManagerTokenProvider struct {
	api      SecretsManagerAPI
	secretID string
	now      func() time.Time
}

// NewSecretsManagerTokenProvider wraps an existing Secrets Manager client.
func NewSecretsManagerTokenProvider(api SecretsManagerAPI, secretID string) *SecretsManagerTokenProvider {
	return &SecretsManagerTokenProvider{api: api, secretID: secretID, now: time.Now}
}

// NewSecretsManagerClient builds a Secrets Manager client from the default AWS
// credential chain. endpoint overrides the service endpoint when non-empty.
func NewSecretsManagerClient(ctx context.Context, region, endpoint string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Token reads and decodes the secret.
func (p *SecretsManagerTokenProvider) Token(ctx context.Context) (Token, error) {
	out, err := p.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case resourceNotFoundException:
				return Token{}, fmt.Errorf("%w: %s", ErrSecretNotFound, p.secretID)
			case accessDeniedException:
				return Token{}, fmt.Errorf("%w: %s", ErrAccessDenied, p.secretID)
			}
			return Token{}, fmt.Errorf("GetSecretValue: %s: %w", apiErr.ErrorCode(), err)
		}
		return Token{}, fmt.Errorf("GetSecretValue: %w", err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" && len(out.SecretBinary) > 0 {
		raw = string(out.SecretBinary)
	}
	if raw == "" {
		return Token{}, fmt.Errorf("%w: %s", ErrSecretEmpty, p.secretID)
	}

	var tok Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return Token{}, fmt.Errorf("decoding token secret %s: %w", p.secretID, err)
	}
	if err := tok.Validate(p.now()); err != nil {
		return Token{}, err
	}
	return tok, nil
}
