package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/uploadwiz/internal/cli/pagination"
	"github.com/rshade/uploadwiz/internal/config"
	"github.com/rshade/uploadwiz/internal/ledger"
)

// Output formats for stash listings.
const (
	outputTable = "table"
	outputJSON  = "json"
)

// ErrUnknownOutput is returned for unsupported --output values.
var ErrUnknownOutput = errors.New("output must be table or json")

func newStashCmd() *cobra.Command {
	return newStashCmdWith(defaultBackends())
}

func newStashCmdWith(deps backends) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stash",
		Short: "Inspect stash receipts recorded by uploads",
		Long: `Every payload an upload stashes is recorded in the ledger together with
the time its stash expires. These commands read and clean that ledger.`,
	}
	cmd.AddCommand(newStashListCmd(deps), newStashShowCmd(deps), newStashPruneCmd(deps))
	return cmd
}

func newStashListCmd(deps backends) *cobra.Command {
	params := pagination.NewPaginationParams()
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stash receipts",
		Example: `  # Everything, oldest first
  uploadwiz stash list

  # Second page of ten, largest first
  uploadwiz stash list --page 2 --page-size 10 --sort size:desc

  # JSON for scripting
  uploadwiz stash list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.Resolve(cmd); err != nil {
				return err
			}
			return runStashList(cmd, deps, *params, output)
		},
	}

	params.AddFlags(cmd, pagination.NewEntrySorter().GetValidFields())
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")

	return cmd
}

// stashListOutput is the JSON shape of stash list.
type stashListOutput struct {
	Entries    []ledger.Entry            `json:"entries"`
	Pagination pagination.PaginationMeta `json:"pagination"`
}

func runStashList(cmd *cobra.Command, deps backends, params pagination.PaginationParams, output string) error {
	if output != outputTable && output != outputJSON {
		return fmt.Errorf("%w: %q", ErrUnknownOutput, output)
	}

	field := params.SortField
	sorter := pagination.NewEntrySorter()
	if field != "" && !sorter.IsValidField(field) {
		return fmt.Errorf("%w: %q (valid: %v)", pagination.ErrInvalidSortField, field, sorter.GetValidFields())
	}

	store, err := deps.ledger(config.GetGlobalConfig())
	if err != nil {
		return err
	}
	ptrs, err := store.List()
	if err != nil {
		return err
	}

	entries := make([]ledger.Entry, 0, len(ptrs))
	for _, e := range ptrs {
		entries = append(entries, *e)
	}
	if field != "" {
		entries = sorter.Sort(entries, field, params.SortOrder)
	}
	total := len(entries)
	page := pagination.Apply(params, entries)

	logger.Debug().Int("total", total).Int("shown", len(page)).Str("sort", field).Msg("listing stash receipts")

	if output == outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stashListOutput{
			Entries:    page,
			Pagination: pagination.NewPaginationMeta(params, total, len(page)),
		})
	}
	return renderEntryTable(cmd.OutOrStdout(), page, total)
}

func renderEntryTable(w io.Writer, entries []ledger.Entry, total int) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No stash receipts.")
		return err
	}

	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tSIZE\tSTASHED\tEXPIRES\tSOURCE")
	for _, e := range entries {
		expires := ledger.FormatDuration(e.TimeUntilExpiration())
		if e.IsExpired() {
			expires = "expired"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Key,
			p.Sprintf("%d", e.Size),
			e.StashedAt.Local().Format(time.DateTime),
			expires,
			e.Source,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(entries) < total {
		p.Fprintf(w, "\nShowing %d of %d receipts\n", len(entries), total)
	}
	return nil
}

func newStashShowCmd(deps backends) *cobra.Command {
	return &cobra.Command{
		Use:   "show KEY",
		Short: "Show one stash receipt as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.ledger(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			entry, err := store.Get(args[0])
			if err != nil && !errors.Is(err, ledger.ErrEntryExpired) {
				return err
			}
			if errors.Is(err, ledger.ErrEntryExpired) {
				cmd.PrintErrf("Warning: stash for %s has expired\n", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
}

func newStashPruneCmd(deps backends) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove receipts whose stash has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := deps.ledger(config.GetGlobalConfig())
			if err != nil {
				return err
			}
			removed, err := store.CleanupExpired()
			if err != nil {
				return err
			}
			logger.Info().Int("removed", removed).Msg("pruned expired stash receipts")
			message.NewPrinter(language.English).Fprintf(cmd.OutOrStdout(), "Removed %d expired receipts\n", removed)
			return nil
		},
	}
}
