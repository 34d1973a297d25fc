package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		token   Token
		wantErr error
	}{
		{name: "valid no expiry", token: Token{AccessKeyID: "a", SecretAccessKey: "b"}},
		{name: "valid future expiry", token: Token{AccessKeyID: "a", SecretAccessKey: "b", ExpiresAt: now.Add(time.Minute)}},
		{name: "expired", token: Token{AccessKeyID: "a", SecretAccessKey: "b", ExpiresAt: now.Add(-time.Second)}, wantErr: ErrTokenExpired},
		{name: "missing secret", token: Token{AccessKeyID: "a"}, wantErr: ErrTokenIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.token.Validate(now)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider(testToken)
	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testToken, tok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Token(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnvTokenProvider(t *testing.T) {
	env := map[string]string{
		"AWS_ACCESS_KEY_ID":          "aws-id",
		"AWS_SECRET_ACCESS_KEY":      "aws-secret",
		"UPLOADWIZ_ACCESS_KEY_ID":    "wiz-id",
		"UPLOADWIZ_TOKEN_EXPIRES_AT": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"UPLOADWIZ_SESSION_TOKEN":    "",
		"AWS_SESSION_TOKEN":          "aws-session",
	}
	p := &EnvTokenProvider{lookup: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wiz-id", tok.AccessKeyID, "UPLOADWIZ_ wins over AWS_")
	assert.Equal(t, "aws-secret", tok.SecretAccessKey)
	assert.Equal(t, "aws-session", tok.SessionToken, "empty values fall through")
	assert.False(t, tok.ExpiresAt.IsZero())

	env["UPLOADWIZ_TOKEN_EXPIRES_AT"] = "tomorrow"
	_, err = p.Token(context.Background())
	require.Error(t, err)

	delete(env, "UPLOADWIZ_TOKEN_EXPIRES_AT")
	delete(env, "AWS_SECRET_ACCESS_KEY")
	_, err = p.Token(context.Background())
	require.ErrorIs(t, err, ErrTokenIncomplete)
}

type fakeSecrets struct {
	out   *secretsmanager.GetSecretValueOutput
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(
	_ context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.out
	out.Name = params.SecretId
	return &out, nil
}

func TestSecretsManagerTokenProvider(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		api     *fakeSecrets
		want    Token
		wantErr error
	}{
		{
			name: "string secret",
			api: &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"access_key_id":"id","secret_access_key":"s","expires_at":"2026-01-02T04:00:00Z"}`),
			}},
			want: Token{AccessKeyID: "id", SecretAccessKey: "s", ExpiresAt: time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC)},
		},
		{
			name: "binary secret",
			api: &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
				SecretBinary: []byte(`{"access_key_id":"id","secret_access_key":"s","session_token":"t"}`),
			}},
			want: Token{AccessKeyID: "id", SecretAccessKey: "s", SessionToken: "t"},
		},
		{
			name: "expired secret",
			api: &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"access_key_id":"id","secret_access_key":"s","expires_at":"2026-01-02T03:00:00Z"}`),
			}},
			wantErr: ErrTokenExpired,
		},
		{
			name:    "empty secret",
			api:     &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}},
			wantErr: ErrSecretEmpty,
		},
		{
			name:    "not found",
			api:     &fakeSecrets{err: &smithy.GenericAPIError{Code: resourceNotFoundException, Message: "nope"}},
			wantErr: ErrSecretNotFound,
		},
		{
			name:    "access denied",
			api:     &fakeSecrets{err: &smithy.GenericAPIError{Code: accessDeniedException}},
			wantErr: ErrAccessDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSecretsManagerTokenProvider(tt.api, "uploadwiz/token")
			p.now = func() time.Time { return now }

			tok, err := p.Token(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok)
		})
	}

	t.Run("other api error keeps code", func(t *testing.T) {
		api := &fakeSecrets{err: &smithy.GenericAPIError{Code: "ThrottlingException"}}
		_, err := NewSecretsManagerTokenProvider(api, "x").Token(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ThrottlingException")

		var apiErr smithy.APIError
		assert.True(t, errors.As(err, &apiErr))
	})

	t.Run("fetches on every call", func(t *testing.T) {
		api := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
			SecretString: aws.String(`{"access_key_id":"id","secret_access_key":"s"}`),
		}}
		p := NewSecretsManagerTokenProvider(api, "x")
		_, _ = p.Token(context.Background())
		_, _ = p.Token(context.Background())
		assert.Equal(t, 2, api.calls)
	})
}
