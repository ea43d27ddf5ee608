// Package embed provides embedding providers that turn text into
// fixed-dimension vectors. Provider errors carry IndexError codes so the
// work queue can tell transient failures from terminal ones.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultTimeout bounds a single embedding call.
	DefaultTimeout = 30 * time.Second

	// StaticDimensions is the embedding dimension for the static provider.
	StaticDimensions = 256
)

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates the embedding for a single text. Implementations
	// honour ctx cancellation and deadlines.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension, 0 if not yet known.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// WithTimeout derives a context bounded by timeout. A non-positive
// timeout uses DefaultTimeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
