package orchestrator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/adapter"
	"github.com/scryhq/ingestor/internal/ingest/breaker"
	"github.com/scryhq/ingestor/internal/ingest/metrics"
	"github.com/scryhq/ingestor/internal/ingest/report"
	"github.com/scryhq/ingestor/internal/ingest/retry"
)

// Store persists ingestion outcomes. Nil stores are skipped.
type Store interface {
	InsertSuccess(ctx context.Context, payload *domain.IngestionPayload) error
	InsertError(ctx context.Context, report *domain.TaskErrorReport) error
}

// EventPublisher emits lifecycle events. Nil publishers are skipped.
type EventPublisher interface {
	PublishSuccess(ctx context.Context, payload *domain.IngestionPayload) error
	PublishError(ctx context.Context, report *domain.TaskErrorReport) error
}

// Config holds orchestrator configuration.
type Config struct {
	MaxInflight int `yaml:"max_inflight"`
}

// Outcome is the result of executing one task attempt. Exactly one of
// Payload and Report is set.
type Outcome struct {
	Status    string
	Payload   *domain.IngestionPayload
	Report    *domain.TaskErrorReport
	Redeliver bool
	Countdown int
	Err       error
}

// Orchestrator drives a task through policy resolution, the circuit
// breaker, the adapter pipeline, persistence, and event publishing.
type Orchestrator struct {
	registry *adapter.Registry
	breakers *breaker.Registry
	defaults retry.Policy
	store    Store
	events   EventPublisher
	sem      chan struct{}
	log      *slog.Logger
}

// New creates an orchestrator. MaxInflight bounds concurrent adapter
// pipeline executions across the sync API and the queue workers.
func New(
	cfg Config,
	registry *adapter.Registry,
	breakers *breaker.Registry,
	defaults retry.Policy,
	store Store,
	events EventPublisher,
) *Orchestrator {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 16
	}
	return &Orchestrator{
		registry: registry,
		breakers: breakers,
		defaults: defaults,
		store:    store,
		events:   events,
		sem:      make(chan struct{}, cfg.MaxInflight),
		log:      slog.Default().With("component", "orchestrator"),
	}
}

// Execute runs one attempt of the task and returns its outcome. Redelivery
// itself is the caller's job; Execute only reports the verdict and countdown.
func (o *Orchestrator) Execute(ctx context.Context, task *domain.Task) Outcome {
	cfg := o.normalize(task)

	// An invalid override is a configuration error judged by the defaults.
	policy, rerr := retry.Resolve(o.defaults, cfg.RetryOverride())
	if rerr != nil {
		return o.fail(ctx, task, cfg, o.defaults, rerr)
	}

	if err := o.breakers.EnsureAvailable(task.AdapterType); err != nil {
		return o.fail(ctx, task, cfg, policy, err)
	}

	a, err := o.registry.New(task.AdapterType, cfg)
	if err != nil {
		return o.fail(ctx, task, cfg, policy, err)
	}

	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return o.fail(ctx, task, cfg, policy,
			domain.NewCollectionError("ingestion cancelled", ctx.Err()))
	}
	payload, elapsed, err := adapter.Process(ctx, task.AdapterType, a, cfg)
	<-o.sem

	if err != nil {
		return o.fail(ctx, task, cfg, policy, err)
	}

	o.breakers.RecordSuccess(task.AdapterType)
	metrics.IngestionAttempts.WithLabelValues(task.AdapterType, "success").Inc()
	metrics.IngestionDuration.WithLabelValues(task.AdapterType).Observe(elapsed.Seconds())

	if o.store != nil {
		if err := o.store.InsertSuccess(ctx, &payload); err != nil {
			o.log.Error("Failed to persist ingestion record",
				"adapter", task.AdapterType,
				"correlation_id", task.CorrelationID,
				"error", err)
		}
	}
	if o.events != nil {
		if err := o.events.PublishSuccess(ctx, &payload); err != nil {
			o.log.Error("Failed to publish success event",
				"correlation_id", task.CorrelationID,
				"error", err)
		}
	}

	o.log.Info("Ingestion completed",
		"adapter", task.AdapterType,
		"source_id", payload.Metadata.SourceID,
		"correlation_id", task.CorrelationID,
		"duration_ms", payload.Metadata.ProcessingDurationMS,
		"mode", payload.Metadata.ProcessingMode)

	return Outcome{Status: "success", Payload: &payload}
}

// Handle adapts Execute to the queue worker contract.
func (o *Orchestrator) Handle(ctx context.Context, task *domain.Task) (bool, int) {
	out := o.Execute(ctx, task)
	return out.Redeliver, out.Countdown
}

// normalize copies the task's source config and fills in the identity
// fields the pipeline reads back out of it.
func (o *Orchestrator) normalize(task *domain.Task) adapter.SourceConfig {
	cfg := make(adapter.SourceConfig, len(task.SourceConfig)+2)
	for k, v := range task.SourceConfig {
		cfg[k] = v
	}
	if cfg.String("source_id") == "" {
		cfg["source_id"] = task.AdapterType + "-source"
	}
	if task.CorrelationID == "" {
		task.CorrelationID = uuid.NewString()
	}
	cfg["correlation_id"] = task.CorrelationID
	return cfg
}

func (o *Orchestrator) fail(
	ctx context.Context,
	task *domain.Task,
	cfg adapter.SourceConfig,
	policy retry.Policy,
	err error,
) Outcome {
	kind := domain.KindOf(err)
	if kind != domain.KindCircuitOpen {
		o.breakers.RecordFailure(task.AdapterType)
	}

	retryable := policy.ShouldRetry(err)
	redeliver := retryable && task.Attempt < policy.MaxAttempts
	countdown := 0
	if redeliver {
		countdown = policy.NextCountdown(task.Attempt)
	}

	details := map[string]any{
		"attempt":      task.Attempt,
		"max_attempts": policy.MaxAttempts,
	}
	if redeliver {
		details["countdown_seconds"] = countdown
	}
	rep := report.Build(err, task.AdapterType, cfg.SourceID(), task.CorrelationID, retryable, details)

	metrics.IngestionAttempts.WithLabelValues(task.AdapterType, "error").Inc()
	metrics.IngestionErrors.WithLabelValues(string(kind)).Inc()

	if o.store != nil {
		if storeErr := o.store.InsertError(ctx, rep); storeErr != nil {
			o.log.Error("Failed to persist error record",
				"adapter", task.AdapterType,
				"correlation_id", task.CorrelationID,
				"error", storeErr)
		}
	}
	if o.events != nil {
		if pubErr := o.events.PublishError(ctx, rep); pubErr != nil {
			o.log.Error("Failed to publish error event",
				"correlation_id", task.CorrelationID,
				"error", pubErr)
		}
	}

	o.log.Error("Ingestion failed",
		"adapter", task.AdapterType,
		"source_id", rep.SourceID,
		"correlation_id", task.CorrelationID,
		"classification", string(kind),
		"retryable", retryable,
		"redeliver", redeliver,
		"attempt", task.Attempt)

	return Outcome{
		Status:    "error",
		Report:    rep,
		Redeliver: redeliver,
		Countdown: countdown,
		Err:       err,
	}
}
