// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Duration wraps time.Duration so YAML values can use the
// human-readable "30s" / "5m" forms.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for a warden host.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the capability store limits.
	Store StoreConfig `yaml:"store"`

	// Containment configures the default region policy.
	Containment ContainmentConfig `yaml:"containment"`

	// Gateway configures the quarantine gateway.
	Gateway GatewayConfig `yaml:"gateway"`

	// Guards configures the temporal and spatial ceilings.
	Guards GuardsConfig `yaml:"guards"`

	// Audit configures the audit sink.
	Audit AuditConfig `yaml:"audit"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections that can be overridden per
// environment.
type ConfigOverrides struct {
	Paths *PathsConfig `yaml:"paths,omitempty"`
	Store *StoreConfig `yaml:"store,omitempty"`
	Audit *AuditConfig `yaml:"audit,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for warden data.
	Root string `yaml:"root"`

	// State is where runtime state (proof signing keys, integrity
	// keys) is stored.
	State string `yaml:"state"`

	// Policy is the JSONC grant policy file consumed at bootstrap.
	Policy string `yaml:"policy"`
}

// StoreConfig configures the capability store.
type StoreConfig struct {
	// MaxCapabilitiesPerProcess bounds live capabilities per owner.
	MaxCapabilitiesPerProcess int `yaml:"max_capabilities_per_process"`

	// MaxDelegationDepth bounds attenuation chain length.
	MaxDelegationDepth int `yaml:"max_delegation_depth"`

	// IntegrityChecks enables keyed checksums over stored capabilities.
	// Production overrides force this on.
	IntegrityChecks bool `yaml:"integrity_checks"`

	// IntegrityKeyFile holds the 32-byte checksum key. Empty means a
	// fresh random key per store.
	IntegrityKeyFile string `yaml:"integrity_key_file"`
}

// ContainmentConfig configures the default region policy.
type ContainmentConfig struct {
	// FaultThreshold is the recent-fault count that quarantines a
	// region.
	FaultThreshold int `yaml:"fault_threshold"`

	// FaultWindow is the sliding window for counting recent faults.
	FaultWindow Duration `yaml:"fault_window"`

	// QuarantineTimeout bounds in-place recovery; past it, recovery
	// requires escalation.
	QuarantineTimeout Duration `yaml:"quarantine_timeout"`

	// RestartMaxAttempts, RestartBaseDelay, RestartBackoffFactor, and
	// RestartMaxDelay define the restart backoff policy.
	RestartMaxAttempts   int      `yaml:"restart_max_attempts"`
	RestartBaseDelay     Duration `yaml:"restart_base_delay"`
	RestartBackoffFactor float64  `yaml:"restart_backoff_factor"`
	RestartMaxDelay      Duration `yaml:"restart_max_delay"`
}

// GatewayConfig configures the quarantine gateway.
type GatewayConfig struct {
	// MaxPendingEvents bounds the pending event queue; reaching it
	// pauses the gateway.
	MaxPendingEvents int `yaml:"max_pending_events"`
}

// GuardsConfig configures the fail-fast ceilings.
type GuardsConfig struct {
	// MaxOperationTime is the temporal guard's per-operation budget.
	MaxOperationTime Duration `yaml:"max_operation_time"`

	MaxPayloadBytes uint64 `yaml:"max_payload_bytes"`
	MaxMemoryBytes  uint64 `yaml:"max_memory_bytes"`
	MaxMailboxDepth int    `yaml:"max_mailbox_depth"`
	MaxQueueDepth   int    `yaml:"max_queue_depth"`
	MaxConnections  int    `yaml:"max_connections"`
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	// SinkPath is the append-only audit log file. Empty disables the
	// sink (development only; production requires one).
	SinkPath string `yaml:"sink_path"`

	// Compression is the per-frame compression: "none", "lz4", "zstd".
	Compression string `yaml:"compression"`

	// SealKeyFile holds the 32-byte frame sealing key. Empty leaves
	// frames unsealed.
	SealKeyFile string `yaml:"seal_key_file"`
}

// Default returns the default configuration. These defaults are a base
// before loading the config file, ensuring every field has a sensible
// zero — the config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "warden")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:   defaultRoot,
			State:  filepath.Join(defaultRoot, "state"),
			Policy: filepath.Join(defaultRoot, "policy.jsonc"),
		},
		Store: StoreConfig{
			MaxCapabilitiesPerProcess: 1024,
			MaxDelegationDepth:        8,
			IntegrityChecks:           true,
		},
		Containment: ContainmentConfig{
			FaultThreshold:       5,
			FaultWindow:          Duration(60 * time.Second),
			QuarantineTimeout:    Duration(5 * time.Minute),
			RestartMaxAttempts:   3,
			RestartBaseDelay:     Duration(time.Second),
			RestartBackoffFactor: 2,
			RestartMaxDelay:      Duration(30 * time.Second),
		},
		Gateway: GatewayConfig{
			MaxPendingEvents: 128,
		},
		Guards: GuardsConfig{
			MaxOperationTime: Duration(5 * time.Second),
			MaxPayloadBytes:  1 << 20,
			MaxMemoryBytes:   256 << 20,
			MaxMailboxDepth:  1024,
			MaxQueueDepth:    4096,
			MaxConnections:   256,
		},
		Audit: AuditConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the WARDEN_CONFIG environment
// variable. There are no fallbacks — if WARDEN_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("WARDEN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("WARDEN_CONFIG environment variable not set; " +
			"set it to the path of your warden.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// its values. The only expansion performed is ${HOME} and similar path
// variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the matching per-environment
// section.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production never runs without integrity checks, regardless
		// of what the base section says.
		c.Store.IntegrityChecks = true
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.Policy != "" {
			c.Paths.Policy = overrides.Paths.Policy
		}
	}

	if overrides.Store != nil {
		if overrides.Store.MaxCapabilitiesPerProcess > 0 {
			c.Store.MaxCapabilitiesPerProcess = overrides.Store.MaxCapabilitiesPerProcess
		}
		if overrides.Store.MaxDelegationDepth > 0 {
			c.Store.MaxDelegationDepth = overrides.Store.MaxDelegationDepth
		}
		if overrides.Store.IntegrityKeyFile != "" {
			c.Store.IntegrityKeyFile = overrides.Store.IntegrityKeyFile
		}
		if c.Environment != Production {
			c.Store.IntegrityChecks = overrides.Store.IntegrityChecks
		}
	}

	if overrides.Audit != nil {
		if overrides.Audit.SinkPath != "" {
			c.Audit.SinkPath = overrides.Audit.SinkPath
		}
		if overrides.Audit.Compression != "" {
			c.Audit.Compression = overrides.Audit.Compression
		}
		if overrides.Audit.SealKeyFile != "" {
			c.Audit.SealKeyFile = overrides.Audit.SealKeyFile
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WARDEN_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["WARDEN_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Policy = expandVars(c.Paths.Policy, vars)
	c.Store.IntegrityKeyFile = expandVars(c.Store.IntegrityKeyFile, vars)
	c.Audit.SinkPath = expandVars(c.Audit.SinkPath, vars)
	c.Audit.SealKeyFile = expandVars(c.Audit.SealKeyFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if c.Store.MaxCapabilitiesPerProcess <= 0 {
		errs = append(errs, fmt.Errorf("store.max_capabilities_per_process must be positive"))
	}
	if c.Store.MaxDelegationDepth <= 0 {
		errs = append(errs, fmt.Errorf("store.max_delegation_depth must be positive"))
	}

	if c.Containment.FaultThreshold <= 0 {
		errs = append(errs, fmt.Errorf("containment.fault_threshold must be positive"))
	}
	if c.Containment.FaultWindow <= 0 {
		errs = append(errs, fmt.Errorf("containment.fault_window must be positive"))
	}
	if c.Containment.QuarantineTimeout <= 0 {
		errs = append(errs, fmt.Errorf("containment.quarantine_timeout must be positive"))
	}
	if c.Containment.RestartBackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("containment.restart_backoff_factor must be at least 1"))
	}

	if c.Gateway.MaxPendingEvents <= 0 {
		errs = append(errs, fmt.Errorf("gateway.max_pending_events must be positive"))
	}

	switch c.Audit.Compression {
	case "none", "lz4", "zstd":
	default:
		errs = append(errs, fmt.Errorf("audit.compression must be one of: none, lz4, zstd"))
	}
	if c.Environment == Production && c.Audit.SinkPath == "" {
		errs = append(errs, fmt.Errorf("audit.sink_path is required in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
