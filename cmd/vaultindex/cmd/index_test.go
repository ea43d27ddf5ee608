package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmd_IndexesVault(t *testing.T) {
	// Given: a vault with three notes
	root := newTestVault(t)

	// When: indexing without the TUI
	out, err := execute(t, "index", root, "--no-tui")

	// Then: every note is indexed
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 3 documents indexed")
	assert.Contains(t, out, "Embeddings: static")
}

func TestIndexCmd_SecondRunSkipsUnchanged(t *testing.T) {
	root := newTestVault(t)
	_, err := execute(t, "index", root, "--no-tui")
	require.NoError(t, err)

	// When: indexing again with no edits
	out, err := execute(t, "index", root, "--no-tui")

	// Then: nothing is re-embedded
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 3 documents indexed (0 processed, 0 removed)")
}

func TestSearchCmd_FindsIndexedNote(t *testing.T) {
	// Given: an indexed vault
	root := newTestVault(t)
	_, err := execute(t, "index", root, "--no-tui")
	require.NoError(t, err)

	// When: searching by keyword
	out, err := execute(t, "search", "--vault", root, "--keyword-only", "--json", "kubernetes")

	// Then: the matching note ranks first
	require.NoError(t, err)
	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, "infra/kubernetes.md", results[0].ID)
	assert.Equal(t, "Kubernetes Networking", results[0].Title)
	assert.Equal(t, 1, results[0].KeywordRank)
	assert.NotEmpty(t, results[0].Modified)
}

func TestSearchCmd_HybridText(t *testing.T) {
	root := newTestVault(t)
	_, err := execute(t, "index", root, "--no-tui")
	require.NoError(t, err)

	out, err := execute(t, "search", "--vault", root, "sourdough", "bread")

	require.NoError(t, err)
	assert.Contains(t, out, "cooking/bread.md")
	assert.Contains(t, out, "result(s) for \"sourdough bread\"")
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	root := newTestVault(t)

	_, err := execute(t, "search", "--vault", root, "kubernetes")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vaultindex index")
}

func TestSearchCmd_RejectsNegativeLimit(t *testing.T) {
	root := newTestVault(t)

	_, err := execute(t, "search", "--vault", root, "--limit", "-1", "kubernetes")

	assert.Error(t, err)
}
