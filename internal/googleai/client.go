// Package googleai provides a thin wrapper around the Google Gen AI SDK for embeddings (Gemini API).
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/genai"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is negative or too large.
	ErrInvalidDims = errors.New("googleai: embedding dimensions out of range")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-embedding-001"

// taskTypeSimilarity tunes Gemini embeddings for pairwise comparison.
const taskTypeSimilarity = "SEMANTIC_SIMILARITY"

// Client calls the Gemini embeddings API via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	dimensions int
	baseURL    string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions requests a reduced embedding size. 0 keeps the model's native size.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses DefaultModel.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a Gemini embeddings client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.dimensions < 0 || client.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if client.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: client.baseURL}
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

// Model returns the configured embedding model.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding vector for input using the configured model.
// Input is sent as-is. When dimensions are configured the returned slice has exactly that length.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	embedCfg := &genai.EmbedContentConfig{TaskType: taskTypeSimilarity}

	if c.dimensions > 0 {
		//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32 in NewClient
		dimInt32 := int32(c.dimensions)
		embedCfg.OutputDimensionality = &dimInt32
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if c.dimensions > 0 && len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)

	return out, nil
}
