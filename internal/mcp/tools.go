package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"the search query to execute"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	KeywordOnly bool   `json:"keyword_only,omitempty" jsonschema:"skip semantic search and match keywords only"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results"`

	// Indexing is set while documents are still queued, so results may be
	// incomplete.
	Indexing *IndexingProgress `json:"indexing,omitempty" jsonschema:"indexing progress when the index is still catching up"`
}

// SearchResultOutput defines a single search result.
type SearchResultOutput struct {
	ID          string  `json:"id" jsonschema:"document key relative to the vault root"`
	Title       string  `json:"title" jsonschema:"document title"`
	Preview     string  `json:"preview" jsonschema:"start of the document content"`
	Score       float64 `json:"score" jsonschema:"fused relevance score"`
	MatchReason string  `json:"match_reason,omitempty" jsonschema:"human-readable explanation of why this result matched"`
	KeywordRank int     `json:"keyword_rank,omitempty" jsonschema:"1-based rank in keyword results, 0 if absent"`
	VectorRank  int     `json:"vector_rank,omitempty" jsonschema:"1-based rank in semantic results, 0 if absent"`
	InBothLists bool    `json:"in_both_lists,omitempty" jsonschema:"true if result appeared in both keyword and semantic search"`
	Modified    string  `json:"modified,omitempty" jsonschema:"last modification time, RFC 3339"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Vault      VaultInfo         `json:"vault"`
	Stats      IndexStats        `json:"stats"`
	Embeddings EmbeddingInfo     `json:"embeddings"`
	Indexing   *IndexingProgress `json:"indexing,omitempty"`
	Failures   []FailureOutput   `json:"failures,omitempty"`
}

// IndexingProgress mirrors the work queue counters.
type IndexingProgress struct {
	Status     string  `json:"status"` // "indexing" or "ready"
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	Processing int     `json:"processing"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
}

// FailureOutput is one failure ledger entry.
type FailureOutput struct {
	Key        string `json:"key"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
	Terminal   bool   `json:"terminal"`
	FailedAt   string `json:"failed_at"`
}

// VaultInfo contains information about the indexed vault.
type VaultInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	Documents     int    `json:"documents"`
	VectorBackend string `json:"vector_backend"`
	Storage       string `json:"storage"`
}

// EmbeddingInfo describes the configured and active embedding provider.
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`

	// SemanticQuality is "low" for the static hashing provider, "none"
	// without a provider, and "high" otherwise.
	SemanticQuality string `json:"semantic_quality"`
}
