// Package report builds structured failure reports for ingestion attempts.
// Classification labels a failure with exactly one taxonomy kind; it never
// decides retryability; that is always the retry policy's call.
package report

import (
	"errors"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// errorTypeName maps a classified error to the stable type label recorded in
// reports and persistence, independent of Go type names.
var errorTypeName = map[domain.ErrorKind]string{
	domain.KindConfiguration:  "ConfigurationError",
	domain.KindCollection:     "CollectionError",
	domain.KindValidation:     "ValidationError",
	domain.KindTransformation: "TransformationError",
	domain.KindCircuitOpen:    "CircuitBreakerOpenError",
	domain.KindAuthentication: "AuthenticationError",
	domain.KindUnexpected:     "UnexpectedError",
}

// Build constructs the single TaskErrorReport for a failed attempt.
// retryable is the retry policy's verdict for this error; extra details are
// merged into the report's details map.
func Build(
	err error,
	adapterType, sourceID, correlationID string,
	retryable bool,
	extraDetails map[string]any,
) *domain.TaskErrorReport {
	kind := domain.KindOf(err)

	details := map[string]any{}
	var ing *domain.IngestError
	if errors.As(err, &ing) {
		for k, v := range ing.Details {
			details[k] = v
		}
		if ing.Err != nil {
			details["cause"] = ing.Err.Error()
		}
	}
	var open *domain.CircuitOpenError
	if errors.As(err, &open) {
		details["reopen_at"] = open.ReopenAt.UTC().Format(time.RFC3339)
	}
	for k, v := range extraDetails {
		details[k] = v
	}

	message := err.Error()
	if message == "" {
		message = errorTypeName[kind]
	}

	return &domain.TaskErrorReport{
		AdapterType:    adapterType,
		SourceID:       sourceID,
		CorrelationID:  correlationID,
		ErrorType:      errorTypeName[kind],
		Message:        message,
		Classification: kind,
		Retryable:      retryable,
		Timestamp:      time.Now().UTC(),
		Details:        details,
	}
}

// FailureSummary derives the validation summary persisted alongside a report.
func FailureSummary(r *domain.TaskErrorReport) domain.ValidationSummary {
	return domain.FailureSummary(r.Message)
}
