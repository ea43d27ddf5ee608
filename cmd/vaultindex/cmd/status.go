package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultindex/internal/persist"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/store"
	"github.com/Aman-CERP/vaultindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show index status",
		Long: `Show the stored index and queue state of a vault.

Reads the saved snapshot without opening the index, so it is safe to run
while 'vaultindex watch' or 'vaultindex serve' is active.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runStatus(cmd, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, path string, jsonOutput bool) error {
	info, err := collectStatus(cmd.Context(), path)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// collectStatus reads the stored state of the vault at path. Nothing is
// modified: a snapshot built with another model is reported as stale, not
// discarded.
func collectStatus(ctx context.Context, path string) (ui.StatusInfo, error) {
	root, cfg, err := loadVaultConfig(path)
	if err != nil {
		return ui.StatusInfo{}, err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return ui.StatusInfo{}, err
	}
	defer func() { _ = provider.Close() }()

	dataDir := cfg.DataDir(root)
	storage, err := persist.Open(cfg.Persistence.Backend, dataDir)
	if err != nil {
		return ui.StatusInfo{}, fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = storage.Close() }()

	info := ui.StatusInfo{
		Vault:         root,
		Model:         provider.ModelName(),
		Dimensions:    provider.Dimensions(),
		Provider:      providerName(cfg),
		VectorBackend: cfg.Index.VectorBackend,
		Storage:       cfg.Persistence.Backend + " " + dataDir,
		Failures:      []queue.Failure{},
	}

	blob, err := storage.ReadBytes(ctx, persist.IndexSnapshotKey)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		return ui.StatusInfo{}, fmt.Errorf("failed to read index snapshot: %w", err)
	default:
		info.SnapshotSize = int64(len(blob))
		snap, err := store.ReadSnapshotInfo(blob)
		if err != nil {
			info.Stale = true
			break
		}
		info.Documents = snap.Records
		info.SnapshotAt = snap.CreatedAt
		info.Stale = snap.Model != provider.ModelName() ||
			(cfg.Embeddings.Dimensions > 0 && snap.Dimensions != cfg.Embeddings.Dimensions)
		info.Model = snap.Model
		info.Dimensions = snap.Dimensions
	}

	state, err := storage.ReadBytes(ctx, persist.QueueStateKey)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		return ui.StatusInfo{}, fmt.Errorf("failed to read queue state: %w", err)
	default:
		if items, err := queue.DecodeState(state); err == nil {
			info.Pending = len(items)
		}
		if failures, err := queue.DecodeFailures(state); err == nil && failures != nil {
			info.Failures = failures
		}
	}

	return info, nil
}
