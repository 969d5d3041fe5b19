package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding provider metrics and returned similarity scores.
type EmbeddingMetrics interface {
	RecordEmbeddingDuration(ctx context.Context, provider, status string, duration time.Duration)
	RecordEmbeddingError(ctx context.Context, provider, reason string)
	RecordScore(ctx context.Context, score float64)
}

// embeddingMetrics implements EmbeddingMetrics.
type embeddingMetrics struct {
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	scores   metric.Float64Histogram
}

// scoreHistogramBoundaries bucket the percentage scores returned to clients.
var scoreHistogramBoundaries = []float64{-50, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 99, 100}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding provider call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	errs, err := meter.Int64Counter(
		MetricNameEmbeddingErrors,
		metric.WithDescription("Total embedding failures by provider and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding errors counter: %w", err)
	}

	scores, err := meter.Float64Histogram(
		MetricNameScore,
		metric.WithDescription("Similarity scores returned to clients (percent)"),
		metric.WithExplicitBucketBoundaries(scoreHistogramBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create similarity score histogram: %w", err)
	}

	return &embeddingMetrics{
		duration: duration,
		errors:   errs,
		scores:   scores,
	}, nil
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, provider, status string, duration time.Duration) {
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeProvider(provider)),
		attribute.String(AttrStatus, NormalizeStatus(status)),
	))
}

func (e *embeddingMetrics) RecordEmbeddingError(ctx context.Context, provider, reason string) {
	e.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeProvider(provider)),
		attribute.String(AttrReason, NormalizeReason(reason, AllowedEmbeddingErrorReasons)),
	))
}

func (e *embeddingMetrics) RecordScore(ctx context.Context, score float64) {
	e.scores.Record(ctx, score)
}
