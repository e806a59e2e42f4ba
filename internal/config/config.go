// Package config holds the orchestrator configuration: the main settings
// file and the hot-reloadable panel-set mapping.
package config

import "time"

// Config holds all configuration for the application
type Config struct {
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// TelemetryURL is the base URL of the telemetry API the tools query
	TelemetryURL string `yaml:"telemetry_url"`

	// Model is the model identifier used for panel reasoning
	Model string `yaml:"model"`

	// MaxTokens is the maximum tokens per model response
	MaxTokens int `yaml:"max_tokens"`

	// PanelTimeout bounds each panel execution
	PanelTimeout time.Duration `yaml:"panel_timeout"`

	// InvestigationDeadline bounds one whole investigation turn
	InvestigationDeadline time.Duration `yaml:"investigation_deadline"`

	// BreakerFailureThreshold is the consecutive failure count that trips a breaker
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`

	// BreakerCoolDown is the initial breaker cool-down duration
	BreakerCoolDown time.Duration `yaml:"breaker_cool_down"`

	// BreakerMaxCoolDown caps the breaker's exponential cool-down growth
	BreakerMaxCoolDown time.Duration `yaml:"breaker_max_cool_down"`

	// ContextTokenBudget is the per-panel context window budget
	ContextTokenBudget int `yaml:"context_token_budget"`

	// MaxDebateRounds bounds the debate loop
	MaxDebateRounds int `yaml:"max_debate_rounds"`

	// MaxModelCalls bounds one panel's reason/act loop
	MaxModelCalls int `yaml:"max_model_calls"`

	// AuditLogPath is the JSONL audit log location. Empty disables auditing.
	AuditLogPath string `yaml:"audit_log_path"`

	// SessionDir is where investigation sessions are persisted.
	// Empty means ~/.inquest/sessions.
	SessionDir string `yaml:"session_dir"`

	// PanelSetsPath is the path to the YAML file mapping modes to panel sets.
	// Empty uses the built-in default panels.
	PanelSetsPath string `yaml:"panel_sets_path"`

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled
	TracingEnabled bool `yaml:"tracing_enabled"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string `yaml:"tracing_endpoint"`

	// TracingTLSCAPath is the path to the CA certificate for TLS verification
	TracingTLSCAPath string `yaml:"tracing_tls_ca_path"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		LogLevel:                "info",
		TelemetryURL:            "http://localhost:8428",
		Model:                   "claude-sonnet-4-5-20250929",
		MaxTokens:               4096,
		PanelTimeout:            60 * time.Second,
		InvestigationDeadline:   5 * time.Minute,
		BreakerFailureThreshold: 5,
		BreakerCoolDown:         30 * time.Second,
		BreakerMaxCoolDown:      5 * time.Minute,
		ContextTokenBudget:      16000,
		MaxDebateRounds:         2,
		MaxModelCalls:           8,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.TelemetryURL == "" {
		return NewConfigError("TelemetryURL must not be empty")
	}

	if c.Model == "" {
		return NewConfigError("Model must not be empty")
	}

	if c.PanelTimeout <= 0 {
		return NewConfigError("PanelTimeout must be positive")
	}

	if c.InvestigationDeadline < c.PanelTimeout {
		return NewConfigError("InvestigationDeadline must be at least PanelTimeout")
	}

	if c.BreakerFailureThreshold < 1 {
		return NewConfigError("BreakerFailureThreshold must be at least 1")
	}

	if c.BreakerCoolDown <= 0 {
		return NewConfigError("BreakerCoolDown must be positive")
	}

	if c.BreakerMaxCoolDown < c.BreakerCoolDown {
		return NewConfigError("BreakerMaxCoolDown must be at least BreakerCoolDown")
	}

	if c.ContextTokenBudget < 1024 {
		return NewConfigError("ContextTokenBudget must be at least 1024 tokens")
	}

	if c.MaxDebateRounds < 1 {
		return NewConfigError("MaxDebateRounds must be at least 1")
	}

	if c.MaxModelCalls < 1 {
		return NewConfigError("MaxModelCalls must be at least 1")
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
