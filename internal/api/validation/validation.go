// Package validation provides request decoding and validation.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidBody is returned when the request body is not a JSON object of the expected shape.
var ErrInvalidBody = errors.New("invalid request body")

// ErrBodyTooLarge is returned when the body exceeds the http.MaxBytesReader limit.
var ErrBodyTooLarge = errors.New("request body too large")

// validate is a package-level singleton; validate.Struct is safe for concurrent use.
// Custom registrations must happen in init only.
var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report JSON field names (text1) rather than Go names (Text1).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})
}

// FieldError describes one failed field rule.
type FieldError struct {
	Field string
	Tag   string
}

// Errors is returned by ValidateStruct when one or more rules fail.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, formatFieldError(fe))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using go-playground/validator.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		out := make(Errors, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			out = append(out, FieldError{Field: fieldError.Field(), Tag: fieldError.Tag()})
		}

		return out
	}

	return fmt.Errorf("validate: %w", err)
}

// HasTag reports whether err is a validation error containing a failure for tag.
func HasTag(err error, tag string) bool {
	var errs Errors
	if !errors.As(err, &errs) {
		return false
	}

	for _, fe := range errs {
		if fe.Tag == tag {
			return true
		}
	}

	return false
}

// DecodeJSON decodes a single JSON value from r.Body into dst.
// Syntax errors, type mismatches, trailing data and non-object bodies yield ErrInvalidBody;
// exceeding the body limit yields ErrBodyTooLarge.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("%w: %w", ErrBodyTooLarge, err)
		}

		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON value", ErrInvalidBody)
	}

	return nil
}

func formatFieldError(fe FieldError) string {
	switch fe.Tag {
	case "required":
		return fe.Field + " is required"
	default:
		return fe.Field + " is invalid"
	}
}
