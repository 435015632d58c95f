// Package config provides configuration management for the hub.
//
// This package handles loading and validation of configuration from YAML
// files and SSOHUB_* environment variables, with thread-safe access for
// components that re-read settings at runtime.
//
// # Core Components
//
// Config: main configuration structure with one section per subsystem:
// provider client, executor, trigger router, webhook notifier, NATS ingest,
// gateway, metrics, and logging.
//
// SafeConfig: thread-safe wrapper using RWMutex and cloning to prevent
// concurrent access issues and accidental mutations.
//
// # Loading
//
// Configuration is layered: built-in defaults, then the YAML file, then
// environment overrides. Only keys present in the file override defaults:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// An empty path skips the file layer:
//
//	cfg, err := config.Load("")
//
// Duration fields accept Go duration strings in YAML:
//
//	provider:
//	  mode: okta
//	  base_url: https://dev-123.okta.example.com
//	  timeout: 30s
//	executor:
//	  default_timeout: 300s
//	  max_poll_interval: 2s
//
// # Environment Overrides
//
// SSOHUB_* variables override file values. The provider token should arrive
// this way rather than in the file:
//
//	SSOHUB_PROVIDER_MODE=okta
//	SSOHUB_PROVIDER_BASE_URL=https://dev-123.okta.example.com
//	SSOHUB_PROVIDER_TOKEN=00a...
//	SSOHUB_NATS_ENABLED=true
//	SSOHUB_GATEWAY_ADDR=:8080
//	SSOHUB_LOG_LEVEL=debug
//
// # Validation
//
// Load validates the merged result; okta mode requires a base URL and token,
// mock mode requires neither. Validate also normalizes case-insensitive
// fields (mode, log level) and trims trailing slashes from the base URL.
//
// # Thread-Safe Access
//
// SafeConfig serves components that re-read configuration:
//
//	safe := config.NewSafeConfig(cfg)
//	snapshot := safe.Get()          // copy, safe to read without locks
//	err := safe.Update(newCfg)      // validates before swapping
//
// # Diagnostics
//
// Config.String() renders YAML with the provider token redacted, safe to log.
package config
