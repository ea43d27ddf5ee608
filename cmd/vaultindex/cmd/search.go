package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit       int
	keywordOnly bool
	jsonOutput  bool
	vault       string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed vault",
		Long: `Search the indexed vault using hybrid search.

Combines keyword and semantic (embedding) search with Reciprocal Rank
Fusion. When the embedding provider is unreachable, keyword results are
returned alone.

Examples:
  vaultindex search "kubernetes networking"
  vaultindex search "sourdough starter" --limit 5
  vaultindex search "budget 2026" --keyword-only --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, opts.vault, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Use keyword search only (skip semantic search)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().StringVar(&opts.vault, "vault", ".", "Vault directory")

	return cmd
}

// searchResultJSON is one result in --json output.
type searchResultJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	KeywordRank int     `json:"keyword_rank,omitempty"`
	VectorRank  int     `json:"vector_rank,omitempty"`
	Preview     string  `json:"preview"`
	Modified    string  `json:"modified,omitempty"`
}

func runSearch(cmd *cobra.Command, path, query string, opts searchOptions) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query must not be empty")
	}
	if opts.limit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", opts.limit)
	}

	ctx := cmd.Context()
	v, err := openVault(ctx, path, vaultOptions{})
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

	if v.svc.Index().Len() == 0 {
		return fmt.Errorf("index is empty; run 'vaultindex index' first")
	}

	start := time.Now()
	results, err := v.svc.Engine().Search(ctx, query, search.SearchOptions{
		Limit:       opts.limit,
		KeywordOnly: opts.keywordOnly,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	v.logger.Info("search_completed",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	if opts.jsonOutput {
		return writeSearchJSON(cmd.OutOrStdout(), results)
	}
	writeSearchText(cmd.OutOrStdout(), query, results, ui.DetectNoColor())
	return nil
}

func writeSearchJSON(w io.Writer, results []search.Result) error {
	out := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		item := searchResultJSON{
			ID:          r.ID,
			Title:       r.Title,
			Score:       r.Score,
			KeywordRank: r.KeywordRank,
			VectorRank:  r.VectorRank,
			Preview:     r.ContentPreview,
		}
		if !r.Metadata.LastModified.IsZero() {
			item.Modified = r.Metadata.LastModified.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeSearchText(w io.Writer, query string, results []search.Result, noColor bool) {
	styles := ui.GetStyles(noColor)
	if len(results) == 0 {
		_, _ = fmt.Fprintf(w, "No results for %q\n", query)
		return
	}

	_, _ = fmt.Fprintf(w, "%s\n\n", styles.Header.Render(fmt.Sprintf("%d result(s) for %q", len(results), query)))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		_, _ = fmt.Fprintf(w, "%d. %s %s\n", i+1, styles.Active.Render(title), styles.Dim.Render(fmt.Sprintf("(%.4f)", r.Score)))
		_, _ = fmt.Fprintf(w, "   %s  %s\n", r.ID, styles.Dim.Render(rankLabel(r)))
		if preview := previewLine(r.ContentPreview, 160); preview != "" {
			_, _ = fmt.Fprintf(w, "   %s\n", preview)
		}
		_, _ = fmt.Fprintln(w)
	}
}

// rankLabel names the lists a result came from.
func rankLabel(r search.Result) string {
	switch {
	case r.InBothLists():
		return fmt.Sprintf("keyword #%d, semantic #%d", r.KeywordRank, r.VectorRank)
	case r.KeywordRank > 0:
		return fmt.Sprintf("keyword #%d", r.KeywordRank)
	case r.VectorRank > 0:
		return fmt.Sprintf("semantic #%d", r.VectorRank)
	default:
		return ""
	}
}

// previewLine flattens a preview to one line of at most maxRunes.
func previewLine(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-3]) + "..."
}
