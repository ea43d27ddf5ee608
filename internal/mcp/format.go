package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/vaultindex/internal/search"
)

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []search.Result, progress *IndexingProgress) string {
	var sb strings.Builder
	if progress != nil && progress.Status == statusIndexing {
		fmt.Fprintf(&sb, "_Indexing in progress: %d/%d documents processed. Results may be incomplete._\n\n",
			progress.Completed+progress.Failed, progress.Total)
	}

	if len(results) == 0 {
		fmt.Fprintf(&sb, "No results found for \"%s\"", query)
		return sb.String()
	}

	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// formatResult formats a single result. Notes are markdown already, so the
// preview is kept as-is.
func formatResult(sb *strings.Builder, num int, r search.Result) {
	title := r.Title
	if title == "" {
		title = r.ID
	}
	fmt.Fprintf(sb, "### %d. %s (score: %.4f)\n", num, title, r.Score)
	fmt.Fprintf(sb, "`%s` · %s\n\n", r.ID, generateMatchReason(r))
	if preview := strings.TrimSpace(r.ContentPreview); preview != "" {
		sb.WriteString(preview)
		sb.WriteString("\n\n")
	}
	sb.WriteString("---\n\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToSearchResultOutput converts a search result to the tool output format.
func ToSearchResultOutput(r search.Result) SearchResultOutput {
	out := SearchResultOutput{
		ID:          r.ID,
		Title:       r.Title,
		Preview:     r.ContentPreview,
		Score:       r.Score,
		KeywordRank: r.KeywordRank,
		VectorRank:  r.VectorRank,
		InBothLists: r.InBothLists(),
		MatchReason: generateMatchReason(r),
	}
	if !r.Metadata.LastModified.IsZero() {
		out.Modified = r.Metadata.LastModified.UTC().Format(time.RFC3339)
	}
	return out
}

// generateMatchReason explains which rankings a result came from.
func generateMatchReason(r search.Result) string {
	switch {
	case r.InBothLists():
		return fmt.Sprintf("found in both keyword (#%d) and semantic (#%d) search", r.KeywordRank, r.VectorRank)
	case r.KeywordRank > 0:
		return fmt.Sprintf("keyword match (#%d)", r.KeywordRank)
	case r.VectorRank > 0:
		return fmt.Sprintf("semantic match (#%d)", r.VectorRank)
	default:
		return "matched content"
	}
}
