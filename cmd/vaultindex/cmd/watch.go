package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Keep the index up to date as notes change",
		Long: `Reconcile the vault, then follow file changes until interrupted.

Modified notes are re-indexed once writes settle; created, deleted and
renamed notes are applied immediately. State is saved periodically and
on exit.

Examples:
  vaultindex watch
  vaultindex watch ~/notes --metrics-addr :9464`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd, path, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")

	return cmd
}

func runWatch(cmd *cobra.Command, path, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	v, err := openVault(ctx, path, vaultOptions{watch: true, registry: reg})
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

	if metricsAddr != "" {
		srv := newMetricsServer(metricsAddr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				v.logger.Error("metrics_server_failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		v.logger.Info("metrics_server_started", slog.String("addr", metricsAddr))
	}

	if err := v.svc.Start(ctx); err != nil {
		return err
	}
	res, err := v.svc.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Watching %s (%d documents, %d queued). Press Ctrl+C to stop.\n",
		v.root, res.Documents, res.Enqueued)

	<-ctx.Done()
	_, _ = fmt.Fprintln(out, "Stopping; saving state...")
	return nil
}

// newMetricsServer exposes reg at /metrics.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
