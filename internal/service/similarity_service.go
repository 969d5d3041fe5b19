package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/formbricks/similarity/internal/observability"
	"github.com/formbricks/similarity/internal/simerrors"
	"github.com/formbricks/similarity/pkg/embeddings"
)

// MissingInputMessage is the client-facing message for an absent or empty text field.
const MissingInputMessage = "Missing input"

const (
	scorePrecision = 2
	maxScore       = 100
)

// SimilarityService turns two texts into a similarity percentage using an embedding provider.
type SimilarityService struct {
	embeddingClient EmbeddingClient
	provider        string
	metrics         observability.EmbeddingMetrics
	logger          *slog.Logger
}

// SimilarityServiceParams configures SimilarityService. Metrics may be nil (metrics disabled).
type SimilarityServiceParams struct {
	EmbeddingClient EmbeddingClient
	// Provider labels metrics, logs and errors (e.g. "sentence-transformers").
	Provider string
	Metrics  observability.EmbeddingMetrics
	Logger   *slog.Logger
}

// NewSimilarityService creates a SimilarityService.
func NewSimilarityService(p SimilarityServiceParams) *SimilarityService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SimilarityService{
		embeddingClient: p.EmbeddingClient,
		provider:        p.Provider,
		metrics:         p.Metrics,
		logger:          logger,
	}
}

// Compare returns cosine(embed(text1), embed(text2)) * 100 rounded to two decimals.
// Empty texts yield a ValidationError; provider failures a ProviderError; vectors that
// cannot be compared (zero magnitude, mismatched dimensions) an InvalidEmbeddingError.
// Texts are passed to the provider unchanged.
func (s *SimilarityService) Compare(ctx context.Context, text1, text2 string) (float64, error) {
	if text1 == "" {
		return 0, simerrors.NewValidationError("text1", MissingInputMessage)
	}

	if text2 == "" {
		return 0, simerrors.NewValidationError("text2", MissingInputMessage)
	}

	var vec1, vec2 []float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error

		vec1, err = s.embed(gctx, text1)
		if err != nil {
			return fmt.Errorf("embed text1: %w", err)
		}

		return nil
	})
	g.Go(func() error {
		var err error

		vec2, err = s.embed(gctx, text2)
		if err != nil {
			return fmt.Errorf("embed text2: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "similarity: create embedding failed", "error", err, "provider", s.provider)

		return 0, err
	}

	cos, err := embeddings.CosineSimilarity(vec1, vec2)
	if err != nil {
		s.recordError(ctx, observability.ReasonInvalidEmbedding)
		s.logger.ErrorContext(ctx, "similarity: invalid embedding", "error", err, "provider", s.provider,
			"dims1", len(vec1), "dims2", len(vec2))

		return 0, simerrors.NewInvalidEmbeddingError(s.provider, err)
	}

	score := clampScore(embeddings.RoundTo(cos*maxScore, scorePrecision))

	if s.metrics != nil {
		s.metrics.RecordScore(ctx, score)
	}

	s.logger.DebugContext(ctx, "similarity computed", "provider", s.provider, "similarity", score)

	return score, nil
}

// embed calls the provider once, recording duration and failure reason.
func (s *SimilarityService) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := s.embeddingClient.CreateEmbedding(ctx, text)
	duration := time.Since(start)

	if err != nil {
		s.recordDuration(ctx, observability.StatusError, duration)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.recordError(ctx, observability.ReasonCanceled)
		} else {
			s.recordError(ctx, observability.ReasonProviderFailed)
		}

		if errors.Is(err, simerrors.ErrProvider) {
			return nil, err
		}

		return nil, simerrors.NewProviderError(s.provider, err)
	}

	s.recordDuration(ctx, observability.StatusSuccess, duration)

	return vec, nil
}

func (s *SimilarityService) recordDuration(ctx context.Context, status string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordEmbeddingDuration(ctx, s.provider, status, duration)
	}
}

func (s *SimilarityService) recordError(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.RecordEmbeddingError(ctx, s.provider, reason)
	}
}

// clampScore keeps rounding noise from pushing a score outside [-100, 100].
func clampScore(score float64) float64 {
	if score > maxScore {
		return maxScore
	}

	if score < -maxScore {
		return -maxScore
	}

	return score
}
