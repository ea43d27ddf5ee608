package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

func newOpenAIServer(t *testing.T, dims int, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
	})
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func writeEmbedding(w http.ResponseWriter, emb []float64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": emb},
		},
		"usage": map[string]any{"prompt_tokens": 2, "total_tokens": 2},
	})
}

func TestOpenAIProvider_Embed_Success(t *testing.T) {
	// Given: a server answering the embeddings endpoint
	var body map[string]any
	p := newOpenAIServer(t, 2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeEmbedding(w, []float64{0, 2})
	})

	// When: embedding text
	vec, err := p.Embed(context.Background(), "quarterly budget")

	// Then: the vector is normalized and the request carried the options
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
	assert.Equal(t, "quarterly budget", body["input"])
	assert.Equal(t, "text-embedding-3-small", body["model"])
	assert.EqualValues(t, 2, body["dimensions"])
	assert.Equal(t, 2, p.Dimensions())
}

func TestOpenAIProvider_Embed_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, verrors.ErrCodeRateLimited, true},
		{"server error", http.StatusInternalServerError, verrors.ErrCodeProviderUnavailable, true},
		{"unauthorized", http.StatusUnauthorized, verrors.ErrCodeProviderAuth, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a server failing with an API error body
			p := newOpenAIServer(t, 0, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"denied","type":"test"}}`))
			})

			// When: embedding
			_, err := p.Embed(context.Background(), "text")

			// Then: the status decides the retry class
			require.Error(t, err)
			assert.Equal(t, tt.code, verrors.GetCode(err))
			assert.Equal(t, tt.retryable, verrors.IsRetryable(err))
		})
	}
}

func TestOpenAIProvider_Embed_EmptyData(t *testing.T) {
	p := newOpenAIServer(t, 0, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m","usage":{"prompt_tokens":0,"total_tokens":0}}`))
	})

	_, err := p.Embed(context.Background(), "text")

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeMalformedResponse, verrors.GetCode(err))
}

func TestOpenAIProvider_Embed_EmptyText(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})

	_, err := p.Embed(context.Background(), "")

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeEmptyContent, verrors.GetCode(err))
	assert.Equal(t, DefaultOpenAIModel, p.ModelName())
}
