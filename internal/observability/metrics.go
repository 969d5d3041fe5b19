package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope for all similarity instruments.
const MeterName = "similarity"

const cardinalityLimit = 2000

// latencyHistogramBoundaries are Prometheus-style buckets (seconds). Local model inference
// on CPU sits in the tens of milliseconds; remote providers in the hundreds.
var latencyHistogramBoundaries = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPMetrics records HTTP request count and duration, and bodies rejected for size.
type HTTPMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordRequestBodyTooLarge(ctx context.Context)
}

// Metrics groups all instruments. A nil *Metrics means metrics are disabled.
type Metrics struct {
	HTTP       HTTPMetrics
	Embeddings EmbeddingMetrics
}

// NewMeterProvider creates a MeterProvider backed by a Prometheus exporter on a private registry
// and returns the handler serving that registry. Caller must shut the provider down on exit.
func NewMeterProvider(serviceName string) (*sdkmetric.MeterProvider, http.Handler, error) {
	res, err := newResource(serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "similarity_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpMetrics, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	embeddingMetrics, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTP:       httpMetrics,
		Embeddings: embeddingMetrics,
	}, nil
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	tooLarge metric.Int64Counter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requests, err := meter.Int64Counter(
		MetricNameHTTPRequests,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameHTTPRequestDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http duration histogram: %w", err)
	}

	tooLarge, err := meter.Int64Counter(
		MetricNameHTTPBodyTooLarge,
		metric.WithDescription("Requests rejected with 413 for exceeding the body limit"),
	)
	if err != nil {
		return nil, fmt.Errorf("create body too large counter: %w", err)
	}

	return &httpMetrics{requests: requests, duration: duration, tooLarge: tooLarge}, nil
}

func (m *httpMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	m.requests.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrStatusClass, statusClass),
	)))

	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
	)))
}

func (m *httpMetrics) RecordRequestBodyTooLarge(ctx context.Context) {
	m.tooLarge.Add(ctx, 1)
}
