package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/pkg/version"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// OllamaProvider generates embeddings using Ollama's HTTP API
type OllamaProvider struct {
	client    *http.Client
	transport *http.Transport // Store for connection cleanup
	config    OllamaConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a new Ollama provider. No request is made
// until the first Embed call.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client Timeout: per-call contexts bound each request.
	client := &http.Client{
		Transport: transport,
	}

	return &OllamaProvider{
		client:    client,
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}
}

// Embed generates the embedding for a single text.
func (e *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, verrors.Terminal(verrors.ErrCodeEmbeddingFailed, "provider is closed", nil)
	}

	if strings.TrimSpace(text) == "" {
		return nil, verrors.New(verrors.ErrCodeEmptyContent, "cannot embed empty text", nil)
	}

	reqBody := OllamaEmbedRequest{
		Model: e.config.Model,
		Input: text,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, verrors.InternalError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, verrors.InternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, "Ollama")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, verrors.FromHTTPStatus(resp.StatusCode, string(respBody)).
			WithDetail("model", e.config.Model)
	}

	var result OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, verrors.NetworkError("truncated embedding response", err)
		}
		return nil, verrors.New(verrors.ErrCodeMalformedResponse, "failed to decode response", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, verrors.New(verrors.ErrCodeMalformedResponse, "empty embedding returned", nil)
	}

	vec := normalizeVector(toFloat32(result.Embeddings[0]))
	if err := e.checkDimensions(len(vec)); err != nil {
		return nil, err
	}
	return vec, nil
}

// checkDimensions learns the dimension from the first response and
// rejects later responses that disagree.
func (e *OllamaProvider) checkDimensions(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = n
		return nil
	}
	if n != e.dims {
		return verrors.New(verrors.ErrCodeMalformedResponse,
			fmt.Sprintf("model returned %d dimensions, expected %d", n, e.dims), nil)
	}
	return nil
}

// transportError maps a failed HTTP round trip to an IndexError.
func transportError(ctx context.Context, err error, provider string) error {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return verrors.New(verrors.ErrCodeNetworkTimeout, "embedding request timed out", err)
	default:
		return verrors.NetworkError("failed to connect to "+provider, err).
			WithDetail("provider", provider)
	}
}

// Dimensions returns the embedding dimension
func (e *OllamaProvider) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier
func (e *OllamaProvider) ModelName() string {
	return e.config.Model
}

// Close releases resources
func (e *OllamaProvider) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	// Close idle connections to release resources immediately
	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
	return nil
}
