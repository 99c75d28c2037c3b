package domain

import "time"

// Task is the unit submitted to the ingestion queue. Redelivery carries the
// same shape with an incremented attempt counter.
type Task struct {
	ID            string         `json:"id"`
	AdapterType   string         `json:"adapter_type"`
	SourceConfig  map[string]any `json:"source_config"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Attempt       int            `json:"attempt"`
	EnqueuedAt    time.Time      `json:"enqueued_at"`
}

// TaskErrorReport is the structured description of one failed attempt.
// Built exactly once per terminal or retryable failure; feeds persistence,
// logs, and the redelivery audit trail.
type TaskErrorReport struct {
	AdapterType    string         `json:"adapter_type"`
	SourceID       string         `json:"source_id"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
	ErrorType      string         `json:"error_type"`
	Message        string         `json:"message"`
	Classification ErrorKind      `json:"classification"`
	Retryable      bool           `json:"retryable"`
	Timestamp      time.Time      `json:"timestamp"`
	Details        map[string]any `json:"details,omitempty"`
}
