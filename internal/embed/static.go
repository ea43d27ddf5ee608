package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// StaticModelName is the model identifier reported by StaticProvider.
const StaticModelName = "static"

// StaticProvider generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Provides deterministic, fast embeddings with reduced semantic quality.
type StaticProvider struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Provider = (*StaticProvider)(nil)

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// tokenRegex matches letter and digit sequences
var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// NewStaticProvider creates a static provider. dims <= 0 uses StaticDimensions.
func NewStaticProvider(dims int) *StaticProvider {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticProvider{dims: dims}
}

// Embed generates the embedding for a single text.
func (e *StaticProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, verrors.Terminal(verrors.ErrCodeEmbeddingFailed, "provider is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, verrors.New(verrors.ErrCodeEmptyContent, "cannot embed empty text", nil)
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// generateVector creates a hash-based vector from text.
func (e *StaticProvider) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	for _, token := range tokenize(text) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}

	for _, ngram := range extractNgrams(normalizeForNgrams(text), ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}

	// Text made only of symbols still gets a non-zero vector.
	if len(tokenize(text)) == 0 {
		vector[hashToIndex(text, e.dims)] = 1
	}
	return vector
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// normalizeForNgrams prepares text for n-gram extraction.
func normalizeForNgrams(text string) []rune {
	var result []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result = append(result, r)
		}
	}
	return result
}

// extractNgrams extracts n-rune sliding windows.
func extractNgrams(text []rune, n int) []string {
	if len(text) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, string(text[i:i+n]))
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// Dimensions returns the embedding dimension.
func (e *StaticProvider) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticProvider) ModelName() string {
	return StaticModelName
}

// Close releases resources.
func (e *StaticProvider) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
