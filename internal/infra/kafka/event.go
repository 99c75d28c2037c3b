package kafka

import (
	"fmt"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// ValidationCounts summarizes validation results for downstream consumers.
type ValidationCounts struct {
	IsValid      bool `json:"is_valid"`
	ErrorCount   int  `json:"error_count"`
	WarningCount int  `json:"warning_count"`
}

// EventRecord is the wire shape of an ingestion lifecycle event.
// Metric values are stringified so consumers never deal with mixed types.
type EventRecord struct {
	CorrelationID  string            `json:"correlation_id"`
	Adapter        string            `json:"adapter"`
	SourceID       string            `json:"source_id"`
	Status         string            `json:"status"`
	DurationMS     int64             `json:"duration_ms"`
	Timestamp      time.Time         `json:"timestamp"`
	Validation     *ValidationCounts `json:"validation,omitempty"`
	Metrics        map[string]string `json:"metrics,omitempty"`
	Classification string            `json:"classification,omitempty"`
	Message        string            `json:"message,omitempty"`
	Retryable      *bool             `json:"retryable,omitempty"`
}

// EventFromPayload builds a success event from a processed payload.
func EventFromPayload(payload *domain.IngestionPayload) EventRecord {
	ev := EventRecord{
		CorrelationID: payload.Metadata.CorrelationID,
		Adapter:       payload.Metadata.AdapterType,
		SourceID:      payload.Metadata.SourceID,
		Status:        "success",
		DurationMS:    payload.Metadata.ProcessingDurationMS,
		Timestamp:     time.Now().UTC(),
	}

	ev.Validation = &ValidationCounts{
		IsValid:      payload.Validation.IsValid,
		ErrorCount:   len(payload.Validation.Errors),
		WarningCount: len(payload.Validation.Warnings),
	}
	if len(payload.Validation.Metrics) > 0 {
		ev.Metrics = make(map[string]string, len(payload.Validation.Metrics))
		for k, v := range payload.Validation.Metrics {
			ev.Metrics[k] = fmt.Sprintf("%v", v)
		}
	}

	return ev
}

// EventFromReport builds an error event from a task error report.
func EventFromReport(report *domain.TaskErrorReport) EventRecord {
	retryable := report.Retryable
	return EventRecord{
		CorrelationID:  report.CorrelationID,
		Adapter:        report.AdapterType,
		SourceID:       report.SourceID,
		Status:         "error",
		Timestamp:      time.Now().UTC(),
		Classification: string(report.Classification),
		Message:        report.Message,
		Retryable:      &retryable,
	}
}
