package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/uploadwiz/internal/config"
	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/stage"
	"github.com/rshade/uploadwiz/internal/transport"
	"github.com/rshade/uploadwiz/internal/tui"
	"github.com/rshade/uploadwiz/internal/upload"
)

// ErrInvalidMeta is returned for --meta values not in key=value form.
var ErrInvalidMeta = errors.New("metadata must be key=value")

type uploadFlags struct {
	concurrency int
	deed        string
	author      string
	meta        []string
	noTUI       bool
	noColor     bool
}

func newUploadCmd() *cobra.Command {
	return newUploadCmdWith(defaultBackends())
}

func newUploadCmdWith(deps backends) *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "upload SOURCE...",
		Short: "Upload files and URLs",
		Long: `Uploads each SOURCE (a local file or an http(s) URL) through the
file, deed, details and thanks stages. At most --concurrency transfers run at
once; a freed slot is refilled immediately with the next waiting item.

Press q or ctrl+c to abort every pending and running item. The command exits
with status 2 when any item failed or was aborted.`,
		Example: `  # Upload with the configured concurrency
  uploadwiz upload a.jpg b.jpg c.jpg

  # Five at a time, plain output
  uploadwiz upload --concurrency 5 --no-tui photos/*.jpg

  # Credit an author and attach metadata
  uploadwiz upload --author "A. Photographer" --meta caption=Harbour harbour.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, deps, flags, args)
		},
	}

	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "k", 0,
		fmt.Sprintf("maximum transfers in flight (%d-%d, default from config)", batch.MinConcurrent, batch.MaxConcurrent))
	cmd.Flags().StringVar(&flags.deed, "deed", "", "deed (license) ID applied to every item (default from config)")
	cmd.Flags().StringVar(&flags.author, "author", "", "author credited in the deed")
	cmd.Flags().StringArrayVar(&flags.meta, "meta", nil, "extra metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.noTUI, "no-tui", false, "print plain progress lines instead of the interactive view")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runUpload(cmd *cobra.Command, deps backends, flags uploadFlags, sources []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := *config.GetGlobalConfig()
	if cmd.Flags().Changed("concurrency") {
		cfg.Upload.MaxConcurrent = flags.concurrency
	}
	if flags.deed != "" {
		cfg.Upload.Deed = flags.deed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	meta, err := parseMeta(flags.meta)
	if err != nil {
		return err
	}
	items := buildItems(sources, upload.Deed{ID: cfg.Upload.Deed, Author: flags.author}, meta)

	tokens, err := deps.tokens(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("creating token provider: %w", err)
	}
	stasher, err := deps.stasher(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("creating stasher: %w", err)
	}
	store, err := deps.ledger(&cfg)
	if err != nil {
		return err
	}

	ab := &aborter{items: items}
	mode := tui.DetectOutputMode(false, flags.noColor, flags.noTUI)
	presenter, finish := newPresenter(cmd.OutOrStdout(), mode, ab.abortAll)

	handlerOpts := []transport.HandlerOption{
		transport.WithProgressSink(presenter),
		transport.WithExpiry(cfg.Expiry()),
		transport.WithHandlerLogger(logger),
	}
	if deps.opener != nil {
		handlerOpts = append(handlerOpts, transport.WithOpener(deps.opener))
	}
	handler, err := transport.NewHandler(tokens, stasher, handlerOpts...)
	if err != nil {
		return err
	}
	ab.handler = handler

	pipeline := stage.PipelineConfig{
		Stash:   ab.guard(handler.Operation),
		Details: ab.guard(handler.MetadataOperation),
	}
	if store.IsEnabled() {
		pipeline.Record = ab.guard(store.Operation)
	}
	seq, err := stage.NewSequencer(stage.DefaultPipeline(pipeline), presenter,
		stage.WithMaxConcurrent(cfg.Upload.MaxConcurrent),
		stage.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	stopSignals := watchInterrupt(ctx, mode, ab.abortAll)
	defer stopSignals()

	start := time.Now()
	logger.Info().Int("items", len(items)).Int("max_concurrent", cfg.Upload.MaxConcurrent).
		Str("backend", cfg.Stash.Backend).Msg("upload started")
	_, runErr := seq.Advance(ctx, items)
	if finishErr := finish(); finishErr != nil {
		logger.Warn().Err(finishErr).Msg("progress view exited with error")
	}
	if runErr != nil {
		return runErr
	}

	tally := tallyItems(items)
	printUploadSummary(cmd.OutOrStdout(), items, tally, time.Since(start))
	logger.Info().Int("completed", tally.Completed).Int("failed", tally.Failed).
		Int("aborted", tally.Aborted).Msg("upload finished")

	if tally.Failed > 0 || tally.Aborted > 0 {
		return &BatchExitError{ExitCode: ExitCodeIncomplete, Failed: tally.Failed, Aborted: tally.Aborted}
	}
	return nil
}

// parseMeta splits key=value pairs.
func parseMeta(pairs []string) (map[string]string, error) {
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMeta, pair)
		}
		meta[key] = value
	}
	return meta, nil
}

func buildItems(sources []string, deed upload.Deed, meta map[string]string) []*upload.Item {
	items := make([]*upload.Item, 0, len(sources))
	for _, src := range sources {
		item := upload.NewItem("", src)
		item.SetDeed(deed)
		for k, v := range meta {
			item.SetMetadata(k, v)
		}
		items = append(items, item)
	}
	return items
}

// presenter is what the pipeline and the transport handler report to.
type presenter interface {
	stage.Presenter
	transport.ProgressSink
}

// newPresenter picks the interactive view or plain lines. finish stops the
// view once the pipeline returns.
func newPresenter(w io.Writer, mode tui.OutputMode, onAbort func()) (presenter, func() error) {
	if mode == tui.OutputModeInteractive {
		p := tui.NewProgramPresenter(tui.NewUploadModel("uploadwiz", onAbort), tea.WithOutput(w))
		p.Start()
		return p, func() error {
			_, err := p.Finish()
			return err
		}
	}
	return tui.NewPlainPresenter(w, mode == tui.OutputModeStyled), func() error { return nil }
}

// watchInterrupt aborts the batch on SIGINT in non-interactive modes. The
// interactive view reads ctrl+c itself.
func watchInterrupt(ctx context.Context, mode tui.OutputMode, abort func()) func() {
	if mode == tui.OutputModeInteractive {
		return func() {}
	}
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCtx.Done():
			if ctx.Err() == nil {
				abort()
			}
		case <-done:
		}
	}()
	return func() {
		close(done)
		stop()
	}
}

// aborter cancels a whole upload. Items already through a stage are aborted
// when the next stage admits them.
type aborter struct {
	items     []*upload.Item
	handler   *transport.Handler
	requested atomic.Bool
	once      sync.Once
}

func (a *aborter) abortAll() {
	a.once.Do(func() {
		a.requested.Store(true)
		logger.Info().Int("items", len(a.items)).Msg("abort requested")
		for _, item := range a.items {
			if a.handler != nil {
				a.handler.Abort(item)
			} else {
				item.Abort()
			}
		}
	})
}

func (a *aborter) guard(f batch.OperationFactory) batch.OperationFactory {
	return func(item *upload.Item) batch.Operation {
		if a.requested.Load() {
			return func(context.Context) error { return upload.ErrUserAborted }
		}
		return f(item)
	}
}

// tallyItems counts final item states. Anything not complete or aborted
// counts as failed.
func tallyItems(items []*upload.Item) batch.Summary {
	s := batch.Summary{Total: len(items)}
	for _, item := range items {
		switch item.State() {
		case upload.StateComplete:
			s.Completed++
		case upload.StateAborted:
			s.Aborted++
		default:
			s.Failed++
		}
	}
	return s
}

func printUploadSummary(w io.Writer, items []*upload.Item, s batch.Summary, elapsed time.Duration) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "\nUploaded %d of %d items (%d failed, %d aborted) in %s\n",
		s.Completed, s.Total, s.Failed, s.Aborted, elapsed.Round(10*time.Millisecond))

	for _, item := range items {
		if item.State() != upload.StateError {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s %s: %v\n", item.ID, item.Source, item.LastError())
	}
}
