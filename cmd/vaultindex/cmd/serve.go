package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultindex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string
	var vaultPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server over stdio.

The vault is reconciled in the background and watched for changes while
the server runs, so search results stay current. Stdout carries protocol
messages only; logs go to ~/.vaultindex/logs/server.log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, vaultPath, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().StringVar(&vaultPath, "vault", ".", "Vault directory")

	return cmd
}

func runServe(cmd *cobra.Command, vaultPath, transport string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := openVault(ctx, vaultPath, vaultOptions{watch: true, serve: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := v.Close(closeCtx); err != nil {
			v.logger.Error("vault_close_failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcp.NewServer(v.svc.Engine(), v.svc.Index(), v.provider, v.cfg, v.root)
	if err != nil {
		return err
	}
	srv.SetLogger(v.logger)
	srv.SetPipeline(v.svc)
	if err := srv.RegisterResources(ctx, v.scanner); err != nil {
		return err
	}

	if err := v.svc.Start(ctx); err != nil {
		return err
	}
	defer reconcileInBackground(ctx, v)()

	return srv.Serve(ctx, transport)
}

// reconcileInBackground reconciles the vault on its own goroutine. The
// returned func cancels a pass still running and waits for it to exit;
// call it before the vault is closed.
func reconcileInBackground(ctx context.Context, v *vault) (wait func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		res, err := v.svc.Reconcile(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			v.logger.Debug("reconcile_cancelled")
			return
		case err != nil:
			v.logger.Error("reconcile_failed", slog.String("error", err.Error()))
			return
		}
		v.logger.Info("reconcile_complete",
			slog.Int("documents", res.Documents),
			slog.Int("enqueued", res.Enqueued),
			slog.Int("removed", res.Removed))
	}()

	return func() {
		cancel()
		<-done
	}
}
