// Package simerrors provides sentinel and custom error types for the similarity service.
package simerrors

// ErrValidation represents a validation error.
// Use when client input fails validation (e.g. a missing text field).
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrInvalidEmbedding is the sentinel for vectors that cannot be compared
// (zero magnitude, empty, or mismatched dimensions).
var ErrInvalidEmbedding = &InvalidEmbeddingError{}

// InvalidEmbeddingError wraps the vector-level cause.
type InvalidEmbeddingError struct {
	Provider string
	Err      error
}

// NewInvalidEmbeddingError creates an InvalidEmbeddingError for the given provider.
func NewInvalidEmbeddingError(provider string, err error) *InvalidEmbeddingError {
	return &InvalidEmbeddingError{Provider: provider, Err: err}
}

// Error implements the error interface.
func (e *InvalidEmbeddingError) Error() string {
	msg := "invalid embedding"
	if e.Provider != "" {
		msg += " from " + e.Provider
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *InvalidEmbeddingError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *InvalidEmbeddingError) Is(target error) bool {
	_, ok := target.(*InvalidEmbeddingError)

	return ok
}

// ErrProvider is the sentinel for failures inside the embedding provider.
var ErrProvider = &ProviderError{}

// ProviderError wraps an error returned by an embedding provider.
type ProviderError struct {
	Provider string
	Err      error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := "embedding provider"
	if e.Provider != "" {
		msg += " " + e.Provider
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg + " failed"
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)

	return ok
}
