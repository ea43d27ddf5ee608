package embed

import (
	"context"

	"golang.org/x/time/rate"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// RateLimitedProvider throttles calls to the inner provider with a token
// bucket. Waiting honours ctx, so a cancelled job stops waiting at once.
type RateLimitedProvider struct {
	inner  Provider
	bucket *rate.Limiter
}

var _ Provider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider allows perSecond calls per second with the given
// burst. A non-positive burst is treated as 1.
func NewRateLimitedProvider(inner Provider, perSecond float64, burst int) *RateLimitedProvider {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:  inner,
		bucket: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Embed waits for a token then calls the inner provider.
func (r *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The wait would outlast the deadline.
		return nil, verrors.New(verrors.ErrCodeRateLimited, "local rate limit", err)
	}
	return r.inner.Embed(ctx, text)
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (r *RateLimitedProvider) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (r *RateLimitedProvider) ModelName() string {
	return r.inner.ModelName()
}

// Close closes the inner provider.
func (r *RateLimitedProvider) Close() error {
	return r.inner.Close()
}
