package embed

import (
	"fmt"
	"log/slog"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based embeddings (offline, no model)
	ProviderStatic ProviderType = "static"
)

// ParseProviderType parses a provider name case-insensitively.
func ParseProviderType(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOllama, ProviderOpenAI, ProviderStatic:
		return p, nil
	case "":
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want ollama, openai or static)", s)
	}
}

// Config selects and tunes a provider.
type Config struct {
	Provider   ProviderType
	Model      string
	Dimensions int

	// Host is the Ollama endpoint or OpenAI-compatible base URL.
	Host string

	// APIKey for OpenAI; empty reads OPENAI_API_KEY.
	APIKey string

	// RateLimit is the maximum calls per second (0 = unlimited).
	RateLimit float64
	RateBurst int

	// CacheSize enables the LRU embedding cache when > 0.
	CacheSize int
}

// NewProvider creates a provider from cfg, wrapped with rate limiting and
// caching as configured. Wrapping order: cache -> rate limit -> provider,
// so cache hits never consume rate tokens.
func NewProvider(cfg Config) (Provider, error) {
	kind, err := ParseProviderType(string(cfg.Provider))
	if err != nil {
		return nil, err
	}

	var p Provider
	switch kind {
	case ProviderOllama:
		p = NewOllamaProvider(OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case ProviderOpenAI:
		p = NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case ProviderStatic:
		p = NewStaticProvider(cfg.Dimensions)
	}

	if cfg.RateLimit > 0 {
		p = NewRateLimitedProvider(p, cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.CacheSize > 0 {
		p = NewCachedProvider(p, cfg.CacheSize)
	}

	slog.Debug("embedding_provider_created",
		slog.String("provider", string(kind)),
		slog.String("model", p.ModelName()),
		slog.Int("dimensions", p.Dimensions()),
		slog.Float64("rate_limit", cfg.RateLimit),
		slog.Int("cache_size", cfg.CacheSize))

	return p, nil
}
