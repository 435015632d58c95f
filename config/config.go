package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Provider mode constants
const (
	ModeMock = "mock" // Deterministic in-process provider (no network)
	ModeOkta = "okta" // Live Okta Workflows API
)

// Config represents the complete hub configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Executor ExecutorConfig `yaml:"executor"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	NATS     NATSConfig     `yaml:"nats"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig defines how the hub reaches the workflow provider
type ProviderConfig struct {
	Mode    string `yaml:"mode"`     // "mock" or "okta"
	BaseURL string `yaml:"base_url"` // Okta org URL, e.g. https://dev-123.okta.example.com
	// Token authenticates requests in okta mode. Prefer the
	// SSOHUB_PROVIDER_TOKEN environment variable over the config file.
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second
	RateBurst    int           `yaml:"rate_burst"`
	MaxRetries   int           `yaml:"max_retries"`
	FlowCacheTTL time.Duration `yaml:"flow_cache_ttl"`
}

// ExecutorConfig tunes flow execution tracking
type ExecutorConfig struct {
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	HistorySize     int           `yaml:"history_size"`
}

// TriggerConfig tunes the event router
type TriggerConfig struct {
	HistorySize  int    `yaml:"history_size"`
	RulesFile    string `yaml:"rules_file"`    // optional YAML rule definitions
	DefaultRules bool   `yaml:"default_rules"` // install the built-in rule set
}

// WebhookConfig tunes the outbound notification queue
type WebhookConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// NATSConfig defines the optional NATS event ingest
type NATSConfig struct {
	Enabled          bool          `yaml:"enabled"`
	URL              string        `yaml:"url"`
	SubjectPrefix    string        `yaml:"subject_prefix"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	CircuitThreshold int           `yaml:"circuit_threshold"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
}

// GatewayConfig defines the REST/websocket listener
type GatewayConfig struct {
	Addr         string `yaml:"addr"`
	WSBufferSize int    `yaml:"ws_buffer_size"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig defines structured logging output
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration the hub runs with when no file is given:
// mock provider, built-in rules, metrics on 9090, NATS ingest disabled.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Mode:         ModeMock,
			Timeout:      30 * time.Second,
			RateLimit:    10,
			RateBurst:    20,
			MaxRetries:   3,
			FlowCacheTTL: 5 * time.Minute,
		},
		Executor: ExecutorConfig{
			DefaultTimeout:  300 * time.Second,
			MaxPollInterval: 2 * time.Second,
			HistorySize:     1000,
		},
		Trigger: TriggerConfig{
			HistorySize:  1000,
			DefaultRules: true,
		},
		Webhook: WebhookConfig{
			QueueSize:       256,
			Workers:         4,
			DeliveryTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://localhost:4222",
			SubjectPrefix:    "okta.events",
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			CircuitThreshold: 5,
			MaxBackoff:       time.Minute,
		},
		Gateway: GatewayConfig{
			Addr:         ":8080",
			WSBufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the config for structural problems and normalizes
// case-insensitive fields. It is called by Load and by SafeConfig.Update.
func (c *Config) Validate() error {
	// Normalize case-insensitive fields
	c.Provider.Mode = strings.ToLower(c.Provider.Mode)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Provider.BaseURL = strings.TrimRight(c.Provider.BaseURL, "/")

	switch c.Provider.Mode {
	case ModeMock:
		// Mock mode needs no credentials
	case ModeOkta:
		if c.Provider.BaseURL == "" {
			return errors.New("provider.base_url is required in okta mode")
		}
		parsed, err := url.Parse(c.Provider.BaseURL)
		if err != nil {
			return fmt.Errorf("provider.base_url: %w", err)
		}
		if parsed.Scheme != "https" && parsed.Scheme != "http" {
			return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
		}
		if c.Provider.Token == "" {
			return errors.New("provider.token is required in okta mode (set SSOHUB_PROVIDER_TOKEN)")
		}
	default:
		return fmt.Errorf("provider.mode must be %q or %q, got %q", ModeMock, ModeOkta, c.Provider.Mode)
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be positive")
	}
	if c.Provider.RateLimit <= 0 {
		return errors.New("provider.rate_limit must be positive")
	}
	if c.Provider.RateBurst < 1 {
		return errors.New("provider.rate_burst must be at least 1")
	}
	if c.Provider.MaxRetries < 0 {
		return errors.New("provider.max_retries cannot be negative")
	}
	if c.Provider.FlowCacheTTL <= 0 {
		return errors.New("provider.flow_cache_ttl must be positive")
	}

	if c.Executor.DefaultTimeout <= 0 {
		return errors.New("executor.default_timeout must be positive")
	}
	if c.Executor.MaxPollInterval <= 0 {
		return errors.New("executor.max_poll_interval must be positive")
	}
	if c.Executor.HistorySize < 1 {
		return errors.New("executor.history_size must be at least 1")
	}

	if c.Trigger.HistorySize < 1 {
		return errors.New("trigger.history_size must be at least 1")
	}

	if c.Webhook.QueueSize < 1 {
		return errors.New("webhook.queue_size must be at least 1")
	}
	if c.Webhook.Workers < 1 {
		return errors.New("webhook.workers must be at least 1")
	}
	if c.Webhook.DeliveryTimeout <= 0 {
		return errors.New("webhook.delivery_timeout must be positive")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.New("nats.url is required when NATS ingest is enabled")
		}
		if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
			return fmt.Errorf("nats.url must use the nats:// or tls:// scheme, got %q", c.NATS.URL)
		}
		if c.NATS.SubjectPrefix == "" {
			return errors.New("nats.subject_prefix is required when NATS ingest is enabled")
		}
		if c.NATS.CircuitThreshold < 1 {
			return errors.New("nats.circuit_threshold must be at least 1")
		}
	}

	if c.Gateway.Addr == "" {
		return errors.New("gateway.addr is required")
	}
	if c.Gateway.WSBufferSize < 1 {
		return errors.New("gateway.ws_buffer_size must be at least 1")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}
