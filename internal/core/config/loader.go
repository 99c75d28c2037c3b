package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/scryhq/ingestor/internal/ingest/breaker"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
	"github.com/scryhq/ingestor/internal/server"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config populated with process defaults.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = server.DefaultConfig().Port
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = server.DefaultConfig().RequestTimeout
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = breaker.DefaultConfig().FailureThreshold
	}
	if cfg.Breaker.FailureWindow == 0 {
		cfg.Breaker.FailureWindow = breaker.DefaultConfig().FailureWindow
	}
	if cfg.Breaker.ResetCooldown == 0 {
		cfg.Breaker.ResetCooldown = breaker.DefaultConfig().ResetCooldown
	}

	if cfg.RateLimit.RequestsPerWindow == 0 {
		enabled := cfg.RateLimit.Enabled
		cfg.RateLimit = ratelimit.DefaultConfig()
		cfg.RateLimit.Enabled = enabled
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = ratelimit.DefaultConfig().WindowSeconds
	}
	if cfg.RateLimit.LimitBy == "" {
		cfg.RateLimit.LimitBy = ratelimit.DefaultConfig().LimitBy
	}
	if cfg.RateLimit.StaleAfter == 0 {
		cfg.RateLimit.StaleAfter = ratelimit.DefaultConfig().StaleAfter
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = ratelimit.DefaultConfig().SweepInterval
	}
	if cfg.RateLimit.ExemptPaths == nil {
		cfg.RateLimit.ExemptPaths = ratelimit.DefaultConfig().ExemptPaths
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BackoffSeconds == 0 {
		cfg.Retry.BackoffSeconds = 30
	}
	if cfg.Retry.MaxBackoffSeconds == 0 {
		cfg.Retry.MaxBackoffSeconds = 300
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
