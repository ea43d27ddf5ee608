package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultindex/internal/ui"
)

// closeTimeout bounds the final save on shutdown.
const closeTimeout = 30 * time.Second

func newIndexCmd() *cobra.Command {
	var noTUI bool
	var force bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a markdown vault",
		Long: `Bring the index up to date with the vault and exit.

Only new and changed notes are embedded; notes whose content is unchanged
since the last run are skipped, and records of deleted notes are removed.

Examples:
  vaultindex index
  vaultindex index ~/notes --no-tui
  vaultindex index --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, noTUI, force)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress display")
	cmd.Flags().BoolVar(&force, "force", false, "Discard the stored index and rebuild from scratch")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, noTUI, force bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := openVault(ctx, path, vaultOptions{force: force})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := v.Close(closeCtx); err != nil {
			slog.Error("vault_close_failed", slog.String("error", err.Error()))
		}
	}()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithVaultDir(v.root),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	if err := v.svc.Start(ctx); err != nil {
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		ui.Watch(watchCtx, v.svc.Queue(), renderer, 100*time.Millisecond)
	}()
	defer func() {
		stopWatch()
		<-watchDone
	}()

	start := time.Now()
	res, err := v.svc.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}
	if err := v.svc.WaitIdle(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Indexing interrupted; progress is saved and resumes on the next run.")
			return nil
		}
		return err
	}
	stopWatch()
	<-watchDone

	progress := v.svc.Progress()
	summary := ui.Summary{
		Documents: res.Documents,
		Indexed:   v.svc.Index().Len(),
		Completed: progress.Completed,
		Removed:   res.Removed,
		Duration:  time.Since(start),
		Failures:  v.svc.Failures(),
		Provider: ui.ProviderInfo{
			Name:       providerName(v.cfg),
			Model:      v.provider.ModelName(),
			Dimensions: v.provider.Dimensions(),
		},
	}
	renderer.Complete(summary)

	v.logger.Info("index_complete",
		slog.Int("documents", summary.Documents),
		slog.Int("indexed", summary.Indexed),
		slog.Int("completed", summary.Completed),
		slog.Int("removed", summary.Removed),
		slog.Int("failed", len(summary.Failures)),
		slog.Duration("duration", summary.Duration))
	return nil
}
