package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/uploadwiz/internal/config"
)

// redacted replaces secrets in config show output.
const redacted = "********"

// NewConfigValidateCmd creates the config validate command.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration (global file, project overlay and
environment overrides) for syntax and semantic correctness.

This includes:
- Config version compatibility
- Concurrency and multipart part size bounds
- Stash backend, bucket and endpoint
- Token source and its required settings
- Stash expiry range
- Logging level and format`,
		Example: `  # Validate current configuration
  uploadwiz config validate

  # Validate and show detailed information
  uploadwiz config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.ConfigPath())
	if dir := config.GetResolvedProjectDir(); dir != "" {
		cmd.Printf("  Project directory: %s\n", dir)
	}
	cmd.Printf("  Max concurrent: %d\n", cfg.Upload.MaxConcurrent)
	cmd.Printf("  Part size: %d MiB x %d\n", cfg.Upload.ChunkSizeMB, cfg.Upload.PartConcurrency)
	cmd.Printf("  Stash: %s bucket %q", cfg.Stash.Backend, cfg.Stash.Bucket)
	if cfg.Stash.Endpoint != "" {
		cmd.Printf(" at %s", cfg.Stash.Endpoint)
	}
	cmd.Println()
	cmd.Printf("  Stash expiry: %s\n", cfg.Expiry())
	cmd.Printf("  Token source: %s\n", cfg.Token.Source)
	if cfg.Ledger.Enabled {
		dir, _ := cfg.LedgerDir()
		cmd.Printf("  Ledger: %s\n", dir)
	} else {
		cmd.Println("  Ledger: disabled")
	}
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	}
}

// NewConfigShowCmd creates the config show command.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Prints the effective configuration as YAML. Credentials are redacted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *config.GetGlobalConfig()
			if cfg.Token.SecretAccessKey != "" {
				cfg.Token.SecretAccessKey = redacted
			}
			if cfg.Token.SessionToken != "" {
				cfg.Token.SessionToken = redacted
			}

			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return fmt.Errorf("marshalling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
