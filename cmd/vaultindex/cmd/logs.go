package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultindex/internal/logging"
	"github.com/Aman-CERP/vaultindex/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		file    string
		lines   int
		follow  bool
		level   string
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View vaultindex logs",
		Example: `  # Last 50 lines
  vaultindex logs

  # Follow warnings and errors
  vaultindex logs -f --level warn

  # Only events about one folder
  vaultindex logs --grep 'journal/'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			var re *regexp.Regexp
			if pattern != "" {
				re, err = regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: re,
				NoColor: ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
			}, cmd.OutOrStdout())

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			followed := make(chan logging.LogEntry, 64)
			done := make(chan error, 1)
			go func() {
				done <- viewer.Follow(ctx, path, followed)
				close(followed)
			}()
			for entry := range followed {
				viewer.Print([]logging.LogEntry{entry})
			}
			return <-done
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file (default ~/.vaultindex/logs/server.log)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new log lines")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this regular expression")

	return cmd
}
