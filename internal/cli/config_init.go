package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/uploadwiz/internal/config"
)

// NewConfigInitCmd creates the config init command. Inside a project (a
// directory tree with .uploadwiz/, or --project-dir) it writes project-local
// config.yaml and .gitignore; otherwise, or with --global, it writes the
// global ~/.uploadwiz/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force   bool
		global  bool
		backend string
		bucket  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

Inside a project, creates project-local configuration at
$PROJECT/.uploadwiz/config.yaml with a .gitignore that keeps stash receipts
and logs out of version control. Use --global to initialize the global
configuration even inside a project.`,
		Example: `  # Create global configuration for a MinIO bucket
  uploadwiz config init --global --backend minio --bucket media

  # Create project-local configuration
  uploadwiz --project-dir . config init

  # Create configuration, overwriting existing
  uploadwiz config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if backend != "" {
				cfg.Stash.Backend = backend
			}
			cfg.Stash.Bucket = bucket

			projectDir := config.GetResolvedProjectDir()
			if projectDir != "" && !global {
				return initProjectConfig(cmd, cfg, projectDir, force)
			}

			return initGlobalConfig(cmd, cfg, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "initialize global configuration even inside a project")
	cmd.Flags().StringVar(&backend, "backend", "", "stash backend: s3 or minio")
	cmd.Flags().StringVar(&bucket, "bucket", "", "stash bucket name")

	return cmd
}

// initProjectConfig creates project-local config at projectDir/config.yaml with .gitignore.
func initProjectConfig(cmd *cobra.Command, cfg *config.Config, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")

	// Check if config already exists and force isn't set
	if !force {
		_, err := os.Stat(configPath)
		if err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", configPath, err)
		}
	}

	// Ensure the project .uploadwiz/ directory exists
	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return fmt.Errorf("failed to create project config directory: %w", err)
	}

	cfg.SetConfigPath(configPath)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Create .gitignore (never overwrites existing)
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep stash receipts and logs untracked\n")
	}

	return nil
}

// initGlobalConfig creates global config at ~/.uploadwiz/config.yaml.
func initGlobalConfig(cmd *cobra.Command, cfg *config.Config, force bool) error {
	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(cfg.ConfigPath()); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", cfg.ConfigPath(), err)
		}
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())

	return nil
}
