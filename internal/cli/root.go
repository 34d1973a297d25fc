package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/uploadwiz/internal/config"
	"github.com/rshade/uploadwiz/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger = zerolog.Nop() //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the uploadwiz CLI. It wires
// project discovery, logging and trace IDs, and the upload, stash and config
// subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		projectDir string
	)

	cmd := &cobra.Command{
		Use:           "uploadwiz",
		Short:         "Stage, stash and describe media uploads",
		Long:          "uploadwiz: upload batches of files and URLs to an object store with bounded concurrency",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			wd, err := os.Getwd()
			if err != nil {
				wd = "."
			}
			config.SetResolvedProjectDir(config.ResolveProjectDir(cmd.Context(), projectDir, wd))

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&projectDir, "project-dir", "",
		"project directory holding .uploadwiz/ (default: nearest ancestor with one)")
	cmd.AddCommand(newUploadCmd(), newStashCmd(), newConfigCmd())

	return cmd
}

const rootCmdExample = `  # Upload two files and a URL, three at a time
  uploadwiz upload cat.jpg dog.jpg https://example.org/owl.png

  # Upload with a custom deed and extra metadata
  uploadwiz upload --deed cc-by-4.0 --meta caption="Harbour at dusk" harbour.jpg

  # List stashed uploads, largest first
  uploadwiz stash list --sort size:desc

  # Remove expired stash receipts
  uploadwiz stash prune

  # Initialize configuration
  uploadwiz config init`

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd(), NewConfigShowCmd())
	return cmd
}
