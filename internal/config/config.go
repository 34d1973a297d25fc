package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/ledger"
	"github.com/rshade/uploadwiz/internal/logging"
	"github.com/rshade/uploadwiz/internal/transport"
)

// Config file layout.
const (
	// CurrentVersion is written by config init.
	CurrentVersion = "1.0.0"

	// SupportedVersions is the semver constraint a config file must satisfy.
	SupportedVersions = "^1.0"

	configFileName = "config.yaml"
	dirName        = ".uploadwiz"

	defaultChunkSizeMB = 5
	defaultDeed        = "cc-by-sa-4.0"
	defaultRegion      = "us-east-1"
	mebibyte           = 1024 * 1024
)

// Environment overrides.
const (
	EnvHome          = "UPLOADWIZ_HOME"
	EnvProjectDir    = "UPLOADWIZ_PROJECT_DIR"
	EnvMaxConcurrent = "UPLOADWIZ_MAX_CONCURRENT"
	EnvBucket        = "UPLOADWIZ_BUCKET"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the uploadwiz configuration file.
type Config struct {
	Version string        `yaml:"version"`
	Upload  UploadConfig  `yaml:"upload"`
	Stash   StashConfig   `yaml:"stash"`
	Token   TokenConfig   `yaml:"token"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Logging LoggingConfig `yaml:"logging"`

	configPath string
}

// UploadConfig controls how batches are scheduled.
type UploadConfig struct {
	// MaxConcurrent is the number of items transferred at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// ChunkSizeMB is the multipart part size.
	ChunkSizeMB int `yaml:"chunk_size_mb"`

	// PartConcurrency bounds the parts of a single object in flight.
	PartConcurrency int `yaml:"part_concurrency"`

	// Deed is the deed applied to items that do not carry their own.
	Deed string `yaml:"deed"`
}

// StashConfig selects and addresses the object store.
type StashConfig struct {
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	PathStyle   bool   `yaml:"path_style,omitempty"`
	UseSSL      bool   `yaml:"use_ssl,omitempty"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

// TokenConfig selects where upload credentials come from.
type TokenConfig struct {
	Source          string `yaml:"source"`
	SecretID        string `yaml:"secret_id,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
}

// LedgerConfig controls the local stash receipt ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir,omitempty"`
}

// Default returns a configuration holding only built-in defaults.
func Default() *Config {
	cfg := &Config{
		Version: CurrentVersion,
		Upload: UploadConfig{
			MaxConcurrent:   batch.DefaultMaxConcurrent,
			ChunkSizeMB:     defaultChunkSizeMB,
			PartConcurrency: transport.DefaultPartConcurrency,
			Deed:            defaultDeed,
		},
		Stash: StashConfig{
			Backend:     transport.BackendS3,
			Region:      defaultRegion,
			ExpiryHours: int(ledger.DefaultExpiry / time.Hour),
		},
		Token: TokenConfig{
			Source: transport.TokenSourceEnv,
		},
		Ledger: LedgerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}

	if dir, err := GetConfigDir(); err == nil {
		cfg.configPath = filepath.Join(dir, configFileName)
	}
	return cfg
}

// New returns the effective global configuration: defaults, then the global
// config file if it exists, then environment overrides. An unreadable config
// file leaves the defaults in place.
func New() *Config {
	cfg := Default()
	if path := cfg.ConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			_ = ShallowMergeYAML(cfg, path)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg
}

// Load reads path over the defaults and applies environment overrides. Unlike
// New it reports read and parse errors.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.configPath = path
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ConfigPath returns the file Save writes to.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file Save writes to.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the configuration as YAML, creating its directory if needed.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("no config path set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.configPath, err)
	}
	return nil
}

// ApplyEnv applies environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvMaxConcurrent); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upload.MaxConcurrent = n
		}
	}
	if v, ok := lookup(EnvBucket); ok && v != "" {
		c.Stash.Bucket = v
	}
	if v, ok := lookup(logging.EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(logging.EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
}

// Expiry returns the configured stash expiry.
func (c *Config) Expiry() time.Duration {
	return time.Duration(c.Stash.ExpiryHours) * time.Hour
}

// LedgerDir returns the ledger directory, defaulting to ledger/ under the
// config directory.
func (c *Config) LedgerDir() (string, error) {
	if c.Ledger.Dir != "" {
		return c.Ledger.Dir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledger"), nil
}

// PartSize returns the multipart part size in bytes.
func (c *Config) PartSize() int64 {
	return int64(c.Upload.ChunkSizeMB) * mebibyte
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if err := validateVersion(c.Version); err != nil {
		errs = append(errs, err)
	}

	if c.Upload.MaxConcurrent < batch.MinConcurrent || c.Upload.MaxConcurrent > batch.MaxConcurrent {
		add("upload.max_concurrent must be between %d and %d, got %d",
			batch.MinConcurrent, batch.MaxConcurrent, c.Upload.MaxConcurrent)
	}
	if c.PartSize() < transport.MinPartSize {
		add("upload.chunk_size_mb must be at least %d, got %d",
			transport.MinPartSize/mebibyte, c.Upload.ChunkSizeMB)
	}
	if c.Upload.PartConcurrency < 1 {
		add("upload.part_concurrency must be positive, got %d", c.Upload.PartConcurrency)
	}

	switch c.Stash.Backend {
	case transport.BackendS3:
	case transport.BackendMinio:
		if c.Stash.Endpoint == "" {
			add("stash.endpoint is required for the minio backend")
		}
	default:
		add("stash.backend must be %q or %q, got %q", transport.BackendS3, transport.BackendMinio, c.Stash.Backend)
	}
	if c.Stash.Bucket == "" {
		add("stash.bucket is required")
	}
	if err := ledger.ValidateExpiry(c.Expiry()); err != nil {
		add("stash.expiry_hours: %w", err)
	}

	switch c.Token.Source {
	case transport.TokenSourceEnv:
	case transport.TokenSourceStatic:
		if c.Token.AccessKeyID == "" || c.Token.SecretAccessKey == "" {
			add("token.access_key_id and token.secret_access_key are required for static tokens")
		}
	case transport.TokenSourceSecretsManager:
		if c.Token.SecretID == "" {
			add("token.secret_id is required for secretsmanager tokens")
		}
	default:
		add("token.source must be one of %q, %q or %q, got %q",
			transport.TokenSourceStatic, transport.TokenSourceEnv, transport.TokenSourceSecretsManager, c.Token.Source)
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			add("logging.level: %w", err)
		}
	}
	switch c.Logging.Format {
	case "", logging.FormatJSON, logging.FormatConsole, logging.FormatText:
	default:
		add("logging.format must be json, console or text, got %q", c.Logging.Format)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validateVersion(version string) error {
	if version == "" {
		return errors.New("version is required")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("parsing supported versions: %w", err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("version %s is not supported (want %s)", v, SupportedVersions)
	}
	return nil
}
