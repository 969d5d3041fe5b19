package service

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// RateLimitedClient throttles calls to a remote embedding provider.
// Each CreateEmbedding waits for a token; the wait honors ctx cancellation.
type RateLimitedClient struct {
	client  EmbeddingClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps client with a limiter allowing perSecond calls and the given burst.
// burst below 1 is raised to 1.
func NewRateLimitedClient(client EmbeddingClient, perSecond float64, burst int) *RateLimitedClient {
	if burst < 1 {
		burst = 1
	}

	return &RateLimitedClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// CreateEmbedding waits for the limiter, then delegates to the wrapped client.
func (c *RateLimitedClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return c.client.CreateEmbedding(ctx, input)
}

// Close closes the wrapped client when it holds resources.
func (c *RateLimitedClient) Close() error {
	if closer, ok := c.client.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
