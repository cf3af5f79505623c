package source

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// RateLimited decorates a Client with a client-side token bucket so we stay
// under the platform's published request budget instead of discovering it
// through 429s.
type RateLimited struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps inner at rps requests per second with the given burst.
func NewRateLimited(inner Client, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Platform() string {
	return r.inner.Platform()
}

func (r *RateLimited) FetchUserItems(ctx context.Context, userID string, lookbackDays int) ([]models.Item, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchUserItems(ctx, userID, lookbackDays)
}

func (r *RateLimited) FetchPeerItems(ctx context.Context, peerID string, lookbackDays int) ([]models.Item, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchPeerItems(ctx, peerID, lookbackDays)
}
