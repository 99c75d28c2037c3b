package config

import (
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/infra/kafka"
	"github.com/scryhq/ingestor/internal/infra/queue"
	"github.com/scryhq/ingestor/internal/infra/storage/postgres"
	"github.com/scryhq/ingestor/internal/ingest/breaker"
	"github.com/scryhq/ingestor/internal/ingest/orchestrator"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
	"github.com/scryhq/ingestor/internal/ingest/retry"
	"github.com/scryhq/ingestor/internal/server"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       server.Config       `yaml:"server"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	RateLimit    ratelimit.Config    `yaml:"rate_limit"`
	Breaker      breaker.Config      `yaml:"circuit_breaker"`
	Retry        RetryConfig         `yaml:"retry"`
	Queue        QueueConfig         `yaml:"queue"`
	Database     postgres.Config     `yaml:"database"`
	Kafka        kafka.Config        `yaml:"kafka"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// RetryConfig holds the process-wide retry defaults. Sources may override
// them per task through their retry_policy block.
type RetryConfig struct {
	Enabled           bool     `yaml:"enabled"`
	MaxAttempts       int      `yaml:"max_attempts"`
	BackoffSeconds    float64  `yaml:"backoff_seconds"`
	MaxBackoffSeconds float64  `yaml:"max_backoff_seconds"`
	RetryableKinds    []string `yaml:"retryable_error_kinds"`
}

// Policy builds the default retry policy from config.
func (c RetryConfig) Policy() (retry.Policy, error) {
	kinds := make([]domain.ErrorKind, 0, len(c.RetryableKinds))
	for _, raw := range c.RetryableKinds {
		kind, err := domain.ParseErrorKind(raw)
		if err != nil {
			return retry.Policy{}, err
		}
		kinds = append(kinds, kind)
	}
	return retry.NewPolicy(c.Enabled, c.MaxAttempts, c.BackoffSeconds, c.MaxBackoffSeconds, kinds)
}

// QueueConfig holds task queue settings. An empty URL disables the queue
// and with it the async API and the worker pool.
type QueueConfig struct {
	URL          string        `yaml:"url"`
	Password     string        `yaml:"password"`
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	EmptySleep   time.Duration `yaml:"empty_sleep"`
}

// Client returns the connection part of the queue config.
func (c QueueConfig) Client() queue.Config {
	return queue.Config{URL: c.URL, Password: c.Password}
}

// Worker returns the worker pool part of the queue config.
func (c QueueConfig) Worker() queue.WorkerConfig {
	return queue.WorkerConfig{
		Workers:      c.Workers,
		PollInterval: c.PollInterval,
		EmptySleep:   c.EmptySleep,
	}
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
