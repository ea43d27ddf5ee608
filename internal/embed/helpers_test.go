package embed

import (
	"context"
	"math"
	"sync/atomic"
)

// countingProvider is a test double that counts calls
type countingProvider struct {
	calls atomic.Int64
	dims  int
	err   error
}

func (m *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text)+i) * 0.001
	}
	return vec, nil
}

func (m *countingProvider) Dimensions() int   { return m.dims }
func (m *countingProvider) ModelName() string { return "mock-model" }
func (m *countingProvider) Close() error      { return nil }

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}
