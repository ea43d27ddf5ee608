package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: an error with a suggestion
	err := New(ErrCodeProviderAuth, "provider returned status 401", nil).
		WithSuggestion("Check the embedding provider API key")

	// When: formatting for the CLI
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: provider returned status 401")
	assert.Contains(t, out, "Hint: Check the embedding provider API key")
	assert.Contains(t, out, "Code: ERR_305_PROVIDER_AUTH")
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatJSON_RoundTripsFields(t *testing.T) {
	// Given: a retryable error with a cause and details
	cause := errors.New("connection reset")
	err := New(ErrCodeRateLimited, "slow down", cause).WithDetail("status", "429")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: the document carries every field
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeRateLimited, decoded["code"])
	assert.Equal(t, "NETWORK", decoded["category"])
	assert.Equal(t, true, decoded["retryable"])
	assert.Equal(t, "connection reset", decoded["cause"])
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))

	attrs := LogAttrs(New(ErrCodeEmptyContent, "no text", nil))
	assert.Contains(t, attrs, ErrCodeEmptyContent)
	assert.Contains(t, attrs, "retryable")
}
