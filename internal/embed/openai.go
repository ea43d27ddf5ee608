package embed

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// DefaultOpenAIModel is the OpenAI embedding model used when none is set.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey overrides OPENAI_API_KEY.
	APIKey string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers, tests).
	BaseURL string

	// Model is the embedding model (default: text-embedding-3-small).
	Model string

	// Dimensions requests shortened embeddings when the model supports it (0 = model default).
	Dimensions int
}

// OpenAIProvider generates embeddings with the OpenAI embeddings API.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	requested int

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an OpenAI provider. The SDK's own retries are
// disabled; the work queue owns retry policy.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		requested: cfg.Dimensions,
		dims:      cfg.Dimensions,
	}
}

// Embed generates the embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, verrors.Terminal(verrors.ErrCodeEmbeddingFailed, "provider is closed", nil)
	}

	if strings.TrimSpace(text) == "" {
		return nil, verrors.New(verrors.ErrCodeEmptyContent, "cannot embed empty text", nil)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(p.model),
	}
	if p.requested > 0 {
		params.Dimensions = openai.Int(int64(p.requested))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, verrors.New(verrors.ErrCodeMalformedResponse, "empty embedding returned", nil)
	}

	vec := normalizeVector(toFloat32(resp.Data[0].Embedding))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dims == 0 {
		p.dims = len(vec)
	} else if len(vec) != p.dims {
		return nil, verrors.New(verrors.ErrCodeMalformedResponse, "embedding dimension changed between calls", nil).
			WithDetail("model", p.model)
	}
	return vec, nil
}

// classifyOpenAIError maps SDK errors onto the shared status taxonomy.
func classifyOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return verrors.FromHTTPStatus(apiErr.StatusCode, apiErr.Message).
			WithDetail("provider", "openai")
	}
	return transportError(ctx, err, "OpenAI")
}

// Dimensions returns the embedding dimension, 0 until the first response
// when no dimension was requested.
func (p *OpenAIProvider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dims
}

// ModelName returns the model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// Close marks the provider closed.
func (p *OpenAIProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
