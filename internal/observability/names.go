// Package observability provides structured logging, OpenTelemetry metrics (Prometheus exporter)
// and tracing for the similarity API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHTTPRequests        = "similarity_http_requests_total"
	MetricNameHTTPRequestDuration = "similarity_http_request_duration_seconds"
	MetricNameHTTPBodyTooLarge    = "similarity_http_request_body_too_large_total"
	MetricNameEmbeddingDuration   = "similarity_embedding_duration_seconds"
	MetricNameEmbeddingErrors     = "similarity_embedding_errors_total"
	MetricNameScore               = "similarity_score"
)

// Attribute keys.
const (
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
	AttrProvider    = "provider"
	AttrReason      = "reason"
	AttrStatus      = "status"
)

// Embedding outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Embedding error reasons.
const (
	ReasonProviderFailed   = "provider_failed"
	ReasonInvalidEmbedding = "invalid_embedding"
	ReasonCanceled         = "canceled"
)

// AllowedEmbeddingErrorReasons for similarity_embedding_errors_total.
var AllowedEmbeddingErrorReasons = map[string]bool{
	ReasonProviderFailed:   true,
	ReasonInvalidEmbedding: true,
	ReasonCanceled:         true,
}

// AllowedEmbeddingStatuses for similarity_embedding_duration_seconds.
var AllowedEmbeddingStatuses = map[string]bool{
	StatusSuccess: true,
	StatusError:   true,
}

// AllowedProviders bounds the provider label.
var AllowedProviders = map[string]bool{
	"sentence-transformers": true,
	"openai":                true,
	"google":                true,
	"ollama":                true,
	"mock":                  true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeStatus returns status if in AllowedEmbeddingStatuses, otherwise "other".
func NormalizeStatus(status string) string {
	return NormalizeReason(status, AllowedEmbeddingStatuses)
}

// NormalizeProvider returns provider if known, otherwise "unknown".
func NormalizeProvider(provider string) string {
	if AllowedProviders[provider] {
		return provider
	}

	return "unknown"
}
