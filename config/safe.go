package config

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// SafeConfig provides thread-safe access to configuration for components
// that re-read settings at runtime.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a copy of the configuration. Config holds only value fields,
// so a struct copy is a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	copied := *c
	return &copied
}

// Redacted returns a copy with the provider token masked, safe for logging
// and diagnostics output.
func (c *Config) Redacted() *Config {
	copied := c.Clone()
	if copied.Provider.Token != "" {
		copied.Provider.Token = "[REDACTED]"
	}
	return copied
}

// String renders the redacted configuration as YAML
func (c *Config) String() string {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
