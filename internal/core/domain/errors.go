package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the closed classification taxonomy for ingestion failures.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindCollection     ErrorKind = "collection"
	KindValidation     ErrorKind = "validation"
	KindTransformation ErrorKind = "transformation"
	KindCircuitOpen    ErrorKind = "circuit_open"
	KindAuthentication ErrorKind = "authentication"
	KindUnexpected     ErrorKind = "unexpected"
)

// ParseErrorKind maps a configuration string to a known kind.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch ErrorKind(s) {
	case KindConfiguration, KindCollection, KindValidation,
		KindTransformation, KindCircuitOpen, KindAuthentication, KindUnexpected:
		return ErrorKind(s), nil
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// IngestError is a tagged error carrying the taxonomy kind plus structured details.
type IngestError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// NewCollectionError wraps a source fetch/read failure.
func NewCollectionError(message string, err error) *IngestError {
	return &IngestError{Kind: KindCollection, Message: message, Err: err}
}

// NewValidationError signals malformed validation-rule configuration,
// not data-quality problems (those are reported inside ValidationResult).
func NewValidationError(message string, err error) *IngestError {
	return &IngestError{Kind: KindValidation, Message: message, Err: err}
}

// NewTransformationError wraps an output-shaping failure.
func NewTransformationError(message string, err error) *IngestError {
	return &IngestError{Kind: KindTransformation, Message: message, Err: err}
}

// NewConfigurationError signals bad or missing adapter/retry configuration.
func NewConfigurationError(message string, err error) *IngestError {
	return &IngestError{Kind: KindConfiguration, Message: message, Err: err}
}

// NewAuthenticationError signals a rejected caller identity.
func NewAuthenticationError(message string) *IngestError {
	return &IngestError{Kind: KindAuthentication, Message: message}
}

// NewAdapterNotFoundError signals a request for an unregistered adapter.
func NewAdapterNotFoundError(adapterType string) *IngestError {
	return &IngestError{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("adapter %q is not registered", adapterType),
		Details: map[string]any{"adapter_type": adapterType},
	}
}

// CircuitOpenError is returned when the breaker rejects an attempt
// before execution. It is never retryable.
type CircuitOpenError struct {
	AdapterType string
	ReopenAt    time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf(
		"circuit open for adapter %q until %s",
		e.AdapterType, e.ReopenAt.Format(time.RFC3339),
	)
}

// KindOf classifies any error into exactly one taxonomy kind.
// The mapping is fixed; retryability is decided elsewhere by the retry policy.
func KindOf(err error) ErrorKind {
	var open *CircuitOpenError
	if errors.As(err, &open) {
		return KindCircuitOpen
	}
	var ing *IngestError
	if errors.As(err, &ing) {
		return ing.Kind
	}
	return KindUnexpected
}
