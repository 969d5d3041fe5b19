// Package ollama calls a local Ollama server's embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with empty input.
	ErrEmptyInput = errors.New("ollama: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the server returns no vectors.
	ErrNoEmbeddingInResponse = errors.New("ollama: no embedding in response")
)

const (
	// DefaultBaseURL is where a local Ollama listens by default.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is a small general-purpose embedding model available in the Ollama library.
	DefaultModel = "nomic-embed-text"

	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// ClientOptions configures the Ollama client.
type ClientOptions struct {
	// BaseURL of the Ollama server (default: DefaultBaseURL). Trailing slash is ignored.
	BaseURL string
	// Model to embed with (default: DefaultModel). The model must already be pulled.
	Model string
	// RetryMax is the maximum number of retries on connection errors and 5xx (default: 0, a
	// failed call is returned as is). Negative values are treated as 0.
	RetryMax int
	// Timeout is the HTTP client timeout (default: 60 seconds; first call may load the model).
	Timeout time.Duration
}

// Client calls POST {BaseURL}/api/embed.
type Client struct {
	baseURL    string
	model      string
	httpClient *retryablehttp.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewClient creates an Ollama embeddings client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(0, opts.RetryMax)
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		httpClient: retryClient,
	}
}

// Model returns the configured embedding model.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding vector for input. Input is sent as-is.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	return out.Embeddings[0], nil
}
