package adapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// Process executes the full pipeline for one attempt: collect, validate,
// transform. Cleanup runs exactly once for any attempt that reached Collect,
// whichever stage failed, and the elapsed duration is measured exactly once
// per attempt, inclusive of cleanup.
func Process(
	ctx context.Context,
	name string,
	a Adapter,
	cfg SourceConfig,
) (domain.IngestionPayload, time.Duration, error) {
	start := time.Now().UTC()

	raw, err := a.Collect(ctx)
	if err != nil {
		return domain.IngestionPayload{}, time.Since(start), err
	}

	var validation domain.ValidationResult
	var transformed any

	// Inner func so the cleanup defer fires before the duration is taken.
	stageErr := func() error {
		defer func() {
			if cleanupErr := a.Cleanup(ctx, raw); cleanupErr != nil {
				slog.Warn("Adapter cleanup failed",
					"adapter", name,
					"source_id", cfg.SourceID(),
					"error", cleanupErr,
				)
			}
		}()

		var err error
		if validation, err = a.Validate(ctx, raw); err != nil {
			return err
		}
		if transformed, err = a.Transform(ctx, raw); err != nil {
			return err
		}
		return nil
	}()

	elapsed := time.Since(start)
	if stageErr != nil {
		return domain.IngestionPayload{}, elapsed, stageErr
	}

	mode := "local"
	if cfg.Bool("use_cloud_processing") {
		mode = "cloud"
	}

	payload := domain.IngestionPayload{
		Data: transformed,
		Metadata: domain.IngestionMetadata{
			SourceID:             cfg.SourceID(),
			AdapterType:          name,
			Timestamp:            start,
			ProcessingDurationMS: elapsed.Milliseconds(),
			ProcessingMode:       mode,
			CorrelationID:        cfg.String("correlation_id"),
		},
		Validation: validation,
	}
	return payload, elapsed, nil
}
