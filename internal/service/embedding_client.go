package service

import "context"

// EmbeddingClient generates embedding vectors for text.
// Implemented by provider-specific clients (sentence-transformers, OpenAI, Gemini, Ollama, mock).
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// EmbeddingFunc adapts a plain function to EmbeddingClient.
type EmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

// CreateEmbedding calls f(ctx, input).
func (f EmbeddingFunc) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return f(ctx, input)
}
