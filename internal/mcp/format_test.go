package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

func result(id, title string, kw, vec int) search.Result {
	return search.Result{
		Hit: store.Hit{
			Record: store.Record{
				ID:             id,
				Title:          title,
				ContentPreview: "preview of " + id,
				Metadata:       store.Metadata{LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))},
			},
			Score: 0.0328,
		},
		KeywordRank: kw,
		VectorRank:  vec,
	}
}

func TestFormatSearchResults(t *testing.T) {
	// Given: two results, one ranked by both lists
	results := []search.Result{
		result("a.md", "Alpha", 1, 2),
		result("b.md", "", 0, 1),
	}

	// When: formatting
	text := FormatSearchResults("alpha", results, nil)

	// Then: titles, keys, scores and reasons are listed in order
	assert.Contains(t, text, `## Search Results for "alpha"`)
	assert.Contains(t, text, "Found 2 results")
	assert.Contains(t, text, "### 1. Alpha (score: 0.0328)")
	assert.Contains(t, text, "found in both keyword (#1) and semantic (#2) search")
	assert.Contains(t, text, "### 2. b.md (score: 0.0328)")
	assert.Contains(t, text, "semantic match (#1)")
	assert.Less(t, strings.Index(text, "a.md"), strings.Index(text, "b.md"))
}

func TestFormatSearchResults_SingleResult(t *testing.T) {
	text := FormatSearchResults("x", []search.Result{result("a.md", "A", 1, 0)}, nil)

	assert.Contains(t, text, "Found 1 result\n")
	assert.Contains(t, text, "keyword match (#1)")
}

func TestFormatSearchResults_ReadyPipelineAddsNoNote(t *testing.T) {
	text := FormatSearchResults("x", nil, &IndexingProgress{Status: statusReady, Total: 3, Completed: 3})

	assert.Equal(t, `No results found for "x"`, text)
}

func TestToSearchResultOutput(t *testing.T) {
	out := ToSearchResultOutput(result("a.md", "Alpha", 1, 3))

	assert.Equal(t, "a.md", out.ID)
	assert.Equal(t, "Alpha", out.Title)
	assert.Equal(t, "preview of a.md", out.Preview)
	assert.True(t, out.InBothLists)
	assert.Equal(t, 1, out.KeywordRank)
	assert.Equal(t, 3, out.VectorRank)
	assert.Equal(t, "2026-03-01T11:00:00Z", out.Modified)
}

func TestGenerateMatchReason_NoRanks(t *testing.T) {
	assert.Equal(t, "matched content", generateMatchReason(result("a.md", "", 0, 0)))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(99, 10, 1, 50))
}
