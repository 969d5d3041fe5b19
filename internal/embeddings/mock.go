// Package embeddings provides an in-process embedding provider for tests and local development.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"
	"unicode"

	pkgembeddings "github.com/formbricks/similarity/pkg/embeddings"
)

// DefaultMockDimensions matches all-MiniLM-L6-v2 so mock output has the same shape as the default provider.
const DefaultMockDimensions = 384

// ErrInvalidDims is returned when the mock is configured with a non-positive dimension.
var ErrInvalidDims = errors.New("mock: embedding dimensions must be positive")

// MockClient is a deterministic embedding provider. Each lowercased word is hashed into a
// signed bucket (feature hashing), so texts sharing words score higher than unrelated ones and
// identical texts always score 100. It needs no model and no network.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a mock embedding client with DefaultMockDimensions.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: DefaultMockDimensions}
}

// NewMockClientWithDimensions creates a mock client with custom dimensions.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// Dimensions returns the vector length produced by CreateEmbedding.
func (c *MockClient) Dimensions() int {
	return c.dimensions
}

// CreateEmbedding returns a unit-length vector derived from the words of input.
// Input without any letters or digits is hashed as a whole, so it never yields a zero vector.
func (c *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	vec := make([]float32, c.dimensions)

	tokens := tokenize(input)
	if len(tokens) == 0 {
		tokens = []string{input}
	}

	for _, token := range tokens {
		c.addToken(vec, token)
	}

	// Colliding tokens with opposite signs can cancel out.
	if pkgembeddings.Magnitude(vec) == 0 {
		c.addToken(vec, input)
	}

	pkgembeddings.NormalizeL2(vec)

	return vec, nil
}

func (c *MockClient) addToken(vec []float32, token string) {
	sum := sha256.Sum256([]byte(token))
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(c.dimensions)

	sign := float32(1)
	if sum[8]&1 == 1 {
		sign = -1
	}

	vec[idx] += sign
}

// tokenize lowercases input and splits it on anything that is not a letter or digit.
func tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
