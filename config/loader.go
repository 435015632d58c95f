package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits applied when reading configuration input
const (
	maxConfigSize = 1 << 20 // 1MB max config file size
	maxEnvVarLen  = 10000   // maximum environment variable value length
	maxPathLen    = 4096    // maximum file path length
)

// Duration fields that accept Go duration strings ("30s", "5m") in YAML,
// keyed by section. They are normalized to canonical duration strings
// before unmarshaling; yaml.v3 parses those into time.Duration natively
// but rejects bare integers.
var durationKeys = map[string][]string{
	"provider": {"timeout", "flow_cache_ttl"},
	"executor": {"default_timeout", "max_poll_interval"},
	"webhook":  {"delivery_timeout"},
	"nats":     {"reconnect_wait", "max_backoff"},
}

// Load reads a YAML configuration file, layers it over Default(), applies
// SSOHUB_* environment overrides, and validates the result. An empty path
// skips the file and returns defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		parseDurations(raw)

		// Re-marshal with durations normalized and unmarshal over the
		// defaults, so only keys present in the file are overridden.
		merged, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		if err := yaml.Unmarshal(merged, cfg); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parseDurations normalizes duration strings at known keys to their
// canonical form so they unmarshal into time.Duration fields.
func parseDurations(raw map[string]any) {
	for section, keys := range durationKeys {
		m, ok := raw[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			if s, ok := m[key].(string); ok {
				if d, err := time.ParseDuration(s); err == nil {
					m[key] = d.String()
				}
			}
		}
	}
}

// validateConfigPath does basic path validation before the file is opened
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	// Reject parent references that survive cleaning
	if strings.Contains(filepath.ToSlash(filepath.Clean(path)), "..") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}

	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		return fmt.Errorf("only YAML config files allowed: %s", path)
	}

	return nil
}

// safeReadFile reads a config file with path and size validation
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d > %d bytes", info.Size(), maxConfigSize)
	}

	return os.ReadFile(path)
}

// envString reads an environment variable with a length cap
func envString(name string) string {
	val := os.Getenv(name)
	if len(val) > maxEnvVarLen {
		return ""
	}
	return val
}

// applyEnvOverrides applies SSOHUB_* environment variable overrides.
// Unparseable values are ignored rather than failing the load; validation
// catches anything structurally wrong afterward.
func applyEnvOverrides(cfg *Config) {
	// Provider overrides. The token is expected to arrive this way.
	if val := envString("SSOHUB_PROVIDER_MODE"); val != "" {
		cfg.Provider.Mode = val
	}
	if val := envString("SSOHUB_PROVIDER_BASE_URL"); val != "" {
		cfg.Provider.BaseURL = val
	}
	if val := envString("SSOHUB_PROVIDER_TOKEN"); val != "" {
		cfg.Provider.Token = val
	}
	if val := envString("SSOHUB_PROVIDER_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Provider.Timeout = d
		}
	}

	// Executor overrides
	if val := envString("SSOHUB_EXECUTOR_DEFAULT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Executor.DefaultTimeout = d
		}
	}

	// Trigger overrides
	if val := envString("SSOHUB_TRIGGER_RULES_FILE"); val != "" {
		cfg.Trigger.RulesFile = val
	}

	// NATS overrides
	if val := envString("SSOHUB_NATS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.NATS.Enabled = b
		}
	}
	if val := envString("SSOHUB_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := envString("SSOHUB_NATS_SUBJECT_PREFIX"); val != "" {
		cfg.NATS.SubjectPrefix = val
	}

	// Gateway overrides
	if val := envString("SSOHUB_GATEWAY_ADDR"); val != "" {
		cfg.Gateway.Addr = val
	}

	// Metrics overrides
	if val := envString("SSOHUB_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := envString("SSOHUB_METRICS_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = p
		}
	}

	// Log overrides
	if val := envString("SSOHUB_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := envString("SSOHUB_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}
