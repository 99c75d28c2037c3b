package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// RecordRepo persists ingestion outcomes in PostgreSQL.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL ingestion record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Record is a single persisted ingestion outcome.
type Record struct {
	ID             string    `db:"id"`
	CorrelationID  string    `db:"correlation_id"`
	AdapterType    string    `db:"adapter_type"`
	SourceID       string    `db:"source_id"`
	Status         string    `db:"status"`
	Classification string    `db:"classification"`
	Message        string    `db:"message"`
	DurationMS     int64     `db:"duration_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// InsertSuccess records a completed ingestion run.
func (r *RecordRepo) InsertSuccess(ctx context.Context, payload *domain.IngestionPayload) error {
	metaJSON, err := json.Marshal(payload.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payload metadata: %w", err)
	}
	validationJSON, err := json.Marshal(payload.Validation)
	if err != nil {
		return fmt.Errorf("failed to encode validation summary: %w", err)
	}

	query := `
		INSERT INTO ingestion_records
			(correlation_id, adapter_type, source_id, status, duration_ms,
			 payload_metadata, validation_summary, created_at)
		VALUES ($1, $2, $3, 'success', $4, $5, $6, NOW())
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		payload.Metadata.CorrelationID,
		payload.Metadata.AdapterType,
		payload.Metadata.SourceID,
		payload.Metadata.ProcessingDurationMS,
		metaJSON,
		validationJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert success record: %w", err)
	}
	return nil
}

// InsertError records a failed ingestion run.
func (r *RecordRepo) InsertError(ctx context.Context, report *domain.TaskErrorReport) error {
	detailsJSON, err := json.Marshal(report.Details)
	if err != nil {
		return fmt.Errorf("failed to encode error details: %w", err)
	}

	query := `
		INSERT INTO ingestion_records
			(correlation_id, adapter_type, source_id, status, classification,
			 error_type, message, retryable, error_details, created_at)
		VALUES ($1, $2, $3, 'error', $4, $5, $6, $7, $8, NOW())
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		report.CorrelationID,
		report.AdapterType,
		report.SourceID,
		string(report.Classification),
		report.ErrorType,
		report.Message,
		report.Retryable,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error record: %w", err)
	}
	return nil
}

// Recent returns the latest ingestion records, newest first.
func (r *RecordRepo) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, correlation_id, adapter_type, source_id, status,
		       COALESCE(classification, '') AS classification,
		       COALESCE(message, '') AS message,
		       COALESCE(duration_ms, 0) AS duration_ms,
		       created_at
		FROM ingestion_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	var rows []*Record
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return rows, nil
}

// CountByStatus returns record counts grouped by status.
func (r *RecordRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*) AS n
		FROM ingestion_records
		GROUP BY status
	`

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// LastForCorrelation returns the most recent record for a correlation ID.
func (r *RecordRepo) LastForCorrelation(
	ctx context.Context,
	correlationID string,
) (*Record, error) {
	query := `
		SELECT id, correlation_id, adapter_type, source_id, status,
		       COALESCE(classification, '') AS classification,
		       COALESCE(message, '') AS message,
		       COALESCE(duration_ms, 0) AS duration_ms,
		       created_at
		FROM ingestion_records
		WHERE correlation_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var rec Record
	err := r.db.GetContext(ctx, &rec, query, correlationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}
