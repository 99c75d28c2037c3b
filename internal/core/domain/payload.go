package domain

import "time"

// ValidationResult carries data-quality signals computed once per attempt.
// Immutable after the adapter returns it.
type ValidationResult struct {
	IsValid  bool           `json:"is_valid"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	Metrics  map[string]any `json:"metrics"`
}

// Summary flattens a ValidationResult into the shape persisted and published.
func (v ValidationResult) Summary() ValidationSummary {
	return ValidationSummary{
		IsValid:      v.IsValid,
		ErrorCount:   len(v.Errors),
		WarningCount: len(v.Warnings),
		Metrics:      v.Metrics,
		Errors:       v.Errors,
		Warnings:     v.Warnings,
	}
}

// ValidationSummary is the persistence/event view of a validation outcome.
type ValidationSummary struct {
	IsValid      bool           `json:"is_valid"`
	ErrorCount   int            `json:"error_count"`
	WarningCount int            `json:"warning_count"`
	Metrics      map[string]any `json:"metrics"`
	Errors       []string       `json:"errors"`
	Warnings     []string       `json:"warnings"`
}

// FailureSummary builds the summary recorded for attempts that never
// produced a ValidationResult.
func FailureSummary(message string) ValidationSummary {
	return ValidationSummary{
		IsValid:      false,
		ErrorCount:   1,
		WarningCount: 0,
		Metrics:      map[string]any{},
		Errors:       []string{message},
		Warnings:     []string{},
	}
}

// IngestionMetadata describes one successful pipeline execution.
type IngestionMetadata struct {
	SourceID             string    `json:"source_id"`
	AdapterType          string    `json:"adapter_type"`
	Timestamp            time.Time `json:"timestamp"`
	ProcessingDurationMS int64     `json:"processing_duration_ms"`
	ProcessingMode       string    `json:"processing_mode"`
	CorrelationID        string    `json:"correlation_id,omitempty"`
}

// IngestionPayload is the unit handed to persistence and the event
// publisher after a successful attempt. Created once, read-only afterward.
type IngestionPayload struct {
	Data       any               `json:"data"`
	Metadata   IngestionMetadata `json:"metadata"`
	Validation ValidationResult  `json:"validation"`
}
