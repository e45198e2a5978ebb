package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the driftwatch daemon configuration
type Config struct {
	Sessions  SessionsConfig  `yaml:"sessions"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Capture   CaptureConfig   `yaml:"capture"`
	Server    ServerConfig    `yaml:"server"`
}

// SessionsConfig controls session persistence
type SessionsConfig struct {
	Persist         bool   `yaml:"persist"`
	Directory       string `yaml:"directory"`
	WatchReferences bool   `yaml:"watch_references"`
}

// MonitorConfig holds monitoring pipeline settings
type MonitorConfig struct {
	DefaultIntervalSeconds     int     `yaml:"default_interval_seconds"`
	SignificantChangeThreshold float64 `yaml:"significant_change_threshold"`
}

// SchedulerConfig holds per-session scheduler timing settings
type SchedulerConfig struct {
	JitterMs          int     `yaml:"jitter_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms"`
}

// FeedbackConfig holds auto-feedback dispatcher settings
type FeedbackConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint,omitempty"`
	AuthToken     string `yaml:"auth_token,omitempty"`
	AuthTokenEnv  string `yaml:"auth_token_env,omitempty"`
	RateLimitMs   int    `yaml:"rate_limit_ms"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// CaptureConfig holds capture provider settings
type CaptureConfig struct {
	TimeoutMs      int    `yaml:"timeout_ms"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	BrowserPath    string `yaml:"browser_path,omitempty"`
}

// ServerConfig holds process-level settings
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
	// OpsAddr enables the ops HTTP listener (/healthz, /metrics) when set.
	OpsAddr string `yaml:"ops_addr,omitempty"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Resolve the feedback auth token from the environment
	if config.Feedback.AuthTokenEnv != "" {
		config.Feedback.AuthToken = os.Getenv(config.Feedback.AuthTokenEnv)
	}

	config.SetDefaults()

	return &config, nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Sessions.Directory == "" {
		c.Sessions.Directory = filepath.Join(os.TempDir(), "driftwatch")
	}

	if c.Monitor.DefaultIntervalSeconds == 0 {
		c.Monitor.DefaultIntervalSeconds = 30
	}
	if c.Monitor.SignificantChangeThreshold == 0 {
		c.Monitor.SignificantChangeThreshold = 2.0
	}

	if c.Scheduler.BackoffMultiplier == 0 {
		c.Scheduler.BackoffMultiplier = 2.0
	}
	if c.Scheduler.MaxBackoffMs == 0 {
		c.Scheduler.MaxBackoffMs = 300_000
	}

	if c.Feedback.RateLimitMs == 0 {
		c.Feedback.RateLimitMs = 60_000
	}
	if c.Feedback.MaxConcurrent == 0 {
		c.Feedback.MaxConcurrent = 2
	}

	if c.Capture.TimeoutMs == 0 {
		c.Capture.TimeoutMs = 30_000
	}
	if c.Capture.ViewportWidth == 0 {
		c.Capture.ViewportWidth = 1280
	}
	if c.Capture.ViewportHeight == 0 {
		c.Capture.ViewportHeight = 800
	}

	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Monitor.DefaultIntervalSeconds < 1 || c.Monitor.DefaultIntervalSeconds > 300 {
		return fmt.Errorf("monitor.default_interval_seconds must be between 1 and 300")
	}
	if c.Monitor.SignificantChangeThreshold <= 0 {
		return fmt.Errorf("monitor.significant_change_threshold must be positive")
	}

	if c.Scheduler.JitterMs < 0 {
		return fmt.Errorf("scheduler.jitter_ms must not be negative")
	}
	if c.Scheduler.BackoffMultiplier < 1 {
		return fmt.Errorf("scheduler.backoff_multiplier must be >= 1")
	}
	if c.Scheduler.MaxBackoffMs < 0 {
		return fmt.Errorf("scheduler.max_backoff_ms must not be negative")
	}

	if c.Feedback.Enabled && c.Feedback.Endpoint == "" {
		return fmt.Errorf("feedback.endpoint is required when feedback is enabled")
	}
	if c.Feedback.MaxConcurrent < 1 {
		return fmt.Errorf("feedback.max_concurrent must be >= 1")
	}
	if c.Feedback.RateLimitMs < 0 {
		return fmt.Errorf("feedback.rate_limit_ms must not be negative")
	}

	if c.Capture.TimeoutMs < 1 {
		return fmt.Errorf("capture.timeout_ms must be positive")
	}

	return nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{
		Sessions: SessionsConfig{
			Persist: true,
		},
	}
	config.SetDefaults()
	return config
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CaptureTimeout returns the capture timeout as a duration.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutMs) * time.Millisecond
}

// SchedulerJitter returns the scheduler jitter as a duration.
func (c *Config) SchedulerJitter() time.Duration {
	return time.Duration(c.Scheduler.JitterMs) * time.Millisecond
}

// SchedulerMaxBackoff returns the scheduler backoff cap as a duration.
func (c *Config) SchedulerMaxBackoff() time.Duration {
	return time.Duration(c.Scheduler.MaxBackoffMs) * time.Millisecond
}

// FeedbackRateLimit returns the per-session feedback rate limit as a duration.
func (c *Config) FeedbackRateLimit() time.Duration {
	return time.Duration(c.Feedback.RateLimitMs) * time.Millisecond
}
