// Package similarity is a Go client for the semantic similarity API.
package similarity

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

// DefaultBaseURL is where the server listens with default configuration.
const DefaultBaseURL = "http://localhost:5000"

const maxErrorBody = 4 << 10

// ClientOptions configures the client.
type ClientOptions struct {
	// BaseURL of the similarity service (default: DefaultBaseURL).
	BaseURL string
	// RetryMax is the maximum number of retries on connection errors and 5xx (default: 0, a
	// failed call is returned as is). Negative values are treated as 0.
	RetryMax int
	// Timeout is the HTTP client timeout per attempt (default: 30 seconds).
	Timeout time.Duration
}

// Client calls POST {BaseURL}/semantic-similarity.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// APIError is a non-200 response. Message is the server's {"error": ...} text when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("similarity API: status %d", e.StatusCode)
	}

	return fmt.Sprintf("similarity API: status %d: %s", e.StatusCode, e.Message)
}

// IsMissingInput reports whether err is the server's 400 for an absent or empty text.
func IsMissingInput(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.Message == "Missing input"
}

type compareRequest struct {
	Text1 string `json:"text1"`
	Text2 string `json:"text2"`
}

type compareResponse struct {
	Similarity float64 `json:"similarity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient creates a client with default settings for baseURL.
func NewClient(baseURL string) *Client {
	return NewClientWithOptions(ClientOptions{BaseURL: baseURL})
}

// NewClientWithOptions creates a client with custom options.
func NewClientWithOptions(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(0, opts.RetryMax)
	retryClient.RetryWaitMin = 50 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	// Hand back the last response after retries so its JSON error can be decoded.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: retryClient,
	}
}

// Compare returns the similarity of text1 and text2 as a percentage in [-100, 100].
func (c *Client) Compare(ctx context.Context, text1, text2 string) (float64, error) {
	payload, err := json.Marshal(compareRequest{Text1: text1, Text2: text2})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/semantic-similarity",
		bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		var errBody errorResponse
		if err := json.Unmarshal(body, &errBody); err != nil {
			errBody.Error = strings.TrimSpace(string(body))
		}

		return 0, &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	var out compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	return out.Similarity, nil
}
