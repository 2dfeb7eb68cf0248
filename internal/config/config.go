// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineProvider defines the supported inference engine providers.
type EngineProvider string

const (
	ProviderGemini EngineProvider = "gemini"
	ProviderOllama EngineProvider = "ollama"
)

// EngineConfig configures the inference engine connection.
type EngineConfig struct {
	Provider   EngineProvider `mapstructure:"provider" yaml:"provider"`
	Model      string         `mapstructure:"model" yaml:"model"`
	APIKey     string         `mapstructure:"api_key" yaml:"-"`
	Endpoint   string         `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	// Temperature is kept low; step interpretation wants determinism, not prose.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	// TransportRetries bounds gateway-level retries for unreachable/timed-out
	// engine calls before the scenario is aborted.
	TransportRetries int `mapstructure:"transport_retries" yaml:"transport_retries"`
	// RequestsPerSecond rate-limits engine calls across concurrent scenarios.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// RunnerConfig tunes the scenario orchestration loop.
type RunnerConfig struct {
	// MaxRepairAttempts bounds validation-level re-prompts per step.
	MaxRepairAttempts int `mapstructure:"max_repair_attempts" yaml:"max_repair_attempts"`
	// MaxActionRetries bounds re-dispatch of an already validated request.
	MaxActionRetries int `mapstructure:"max_action_retries" yaml:"max_action_retries"`
	// ContextWindowTurns bounds the turn history sent to the engine. The first
	// turn is always preserved alongside the most recent window.
	ContextWindowTurns int           `mapstructure:"context_window_turns" yaml:"context_window_turns"`
	ActionTimeout      time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	ScenarioTimeout    time.Duration `mapstructure:"scenario_timeout" yaml:"scenario_timeout"`
	// Concurrency is the number of scenarios executed in parallel. Steps
	// within one scenario are always strictly sequential.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// SnapshotMaxElements caps the interactive elements listed per snapshot so
	// the engine's context stays bounded on large pages.
	SnapshotMaxElements int `mapstructure:"snapshot_max_elements" yaml:"snapshot_max_elements"`
}

// DatabaseConfig holds the optional run-history database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// ReportConfig controls result presentation.
type ReportConfig struct {
	// Output is the path of the JSON report file; empty disables it.
	Output string `mapstructure:"output" yaml:"output"`
	Color  bool   `mapstructure:"color" yaml:"color"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kosher-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.provider", "ollama")
	v.SetDefault("engine.model", "qwen2.5-coder:14b-instruct-q4_K_M")
	v.SetDefault("engine.endpoint", "")
	v.SetDefault("engine.api_timeout", "60s")
	v.SetDefault("engine.temperature", 0.2)
	v.SetDefault("engine.max_tokens", 1024)
	v.SetDefault("engine.transport_retries", 2)
	v.SetDefault("engine.requests_per_second", 4.0)
	v.SetDefault("engine.burst", 4)

	// -- Runner --
	v.SetDefault("runner.max_repair_attempts", 2)
	v.SetDefault("runner.max_action_retries", 1)
	v.SetDefault("runner.context_window_turns", 10)
	v.SetDefault("runner.action_timeout", "30s")
	v.SetDefault("runner.scenario_timeout", "10m")
	v.SetDefault("runner.concurrency", 1)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.snapshot_max_elements", 60)

	// -- Report --
	v.SetDefault("report.output", "")
	v.SetDefault("report.color", true)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("engine.api_key", "KOSHER_ENGINE_API_KEY")
	v.BindEnv("database.url", "KOSHER_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Engine.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("engine.provider must be one of [%s, %s], got %q",
			ProviderGemini, ProviderOllama, c.Engine.Provider)
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("engine.model is a required configuration field")
	}
	if c.Engine.TransportRetries < 0 {
		return fmt.Errorf("engine.transport_retries must not be negative")
	}
	if c.Runner.MaxRepairAttempts < 0 {
		return fmt.Errorf("runner.max_repair_attempts must not be negative")
	}
	if c.Runner.MaxActionRetries < 0 {
		return fmt.Errorf("runner.max_action_retries must not be negative")
	}
	if c.Runner.ContextWindowTurns <= 0 {
		return fmt.Errorf("runner.context_window_turns must be a positive integer")
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.Runner.ScenarioTimeout <= 0 {
		return fmt.Errorf("runner.scenario_timeout must be a positive duration")
	}
	return nil
}
