// Package openai provides a thin wrapper around the official OpenAI Go SDK for embeddings.
package openai

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is negative.
	ErrInvalidDims = errors.New("openai: embedding dimensions must not be negative")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)

// Client calls the OpenAI embeddings API via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
	sdkOpts    []option.RequestOption
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the embedding model name (e.g. text-embedding-3-large). Empty uses DefaultModel.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithDimensions requests a reduced embedding size. 0 keeps the model's native size.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint (e.g. a proxy or test server).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.sdkOpts = append(c.sdkOpts, option.WithBaseURL(baseURL))
		}
	}
}

// WithMaxRetries sets how many times the SDK retries transient failures (default: 0).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.sdkOpts = append(c.sdkOpts, option.WithMaxRetries(n))
	}
}

// NewClient creates an OpenAI embeddings client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		model: DefaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, client.sdkOpts...)
	client.sdk = openaisdk.NewClient(sdkOpts...)

	return client
}

// Model returns the configured embedding model.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding vector for input. Input is sent as-is.
// When dimensions are configured the returned slice has exactly that length.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions < 0 {
		return nil, ErrInvalidDims
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model: openaisdk.EmbeddingModel(c.model),
	}
	if c.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if c.dimensions > 0 && len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}
