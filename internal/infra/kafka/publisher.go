package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// DefaultConfig returns default publisher configuration.
func DefaultConfig() Config {
	return Config{
		Topic:        "ingestion.events",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
	}
}

// Publisher emits ingestion lifecycle events to Kafka. Events are keyed by
// correlation ID so retries of one task land on the same partition.
//
// Publishing is best effort: callers log failures and move on, an ingestion
// outcome is never rolled back because the event could not be sent.
type Publisher struct {
	cfg Config

	mu     sync.Mutex
	writer *kafka.Writer
}

// NewPublisher creates a new event publisher. The underlying writer is
// created lazily on first publish.
func NewPublisher(cfg Config) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultConfig().Topic
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}
	return &Publisher{cfg: cfg}
}

func (p *Publisher) getWriter() *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(p.cfg.Brokers...),
			Topic:        p.cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    p.cfg.BatchSize,
			BatchTimeout: p.cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		}
	}
	return p.writer
}

func (p *Publisher) publish(ctx context.Context, ev EventRecord) error {
	if !p.cfg.Enabled {
		return nil
	}

	value, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.CorrelationID),
		Value: value,
	}
	if err := p.getWriter().WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventsPublished.WithLabelValues("success").Inc()
	return nil
}

// PublishSuccess emits a success event for a processed payload.
func (p *Publisher) PublishSuccess(ctx context.Context, payload *domain.IngestionPayload) error {
	return p.publish(ctx, EventFromPayload(payload))
}

// PublishError emits an error event for a failed task.
func (p *Publisher) PublishError(ctx context.Context, report *domain.TaskErrorReport) error {
	return p.publish(ctx, EventFromReport(report))
}

// Health checks broker connectivity. Disabled publishers are always healthy.
func (p *Publisher) Health(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if len(p.cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to reach kafka broker: %w", err)
	}
	return conn.Close()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
