// Package config holds process-wide configuration for the gauntlet solver.
//
// Configuration is constructed once at startup from the environment, with an
// optional YAML file layered on top, and passed explicitly to components.
// Nothing in the core reads the environment after startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one OpenAI-compatible API endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
}

// Configured reports whether this provider has enough settings to be called.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// SessionConfig bounds a single solve session.
type SessionConfig struct {
	// Deadline is the wall-clock budget shared across all tasks of a session.
	Deadline time.Duration `yaml:"deadline" json:"deadline"`

	// Grace is how long past the deadline the watchdog waits before forcibly
	// tearing down the browser.
	Grace time.Duration `yaml:"grace" json:"grace"`

	// TaskCeiling is the hard cap on tasks per session.
	TaskCeiling int `yaml:"task_ceiling" json:"task_ceiling"`

	// RetryCeiling is the per-task cap on submission attempts.
	RetryCeiling int `yaml:"retry_ceiling" json:"retry_ceiling"`
}

// DownloadConfig bounds file retrieval.
type DownloadConfig struct {
	MaxBytes int64         `yaml:"max_bytes" json:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Retries  int           `yaml:"retries" json:"retries"`
}

// BrowserConfig configures the rendering primitive.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// Config is the full process configuration.
type Config struct {
	// Listen is the front-door bind address, e.g. ":8080".
	Listen string `yaml:"listen" json:"listen"`

	// SharedSecret authenticates front-door handoffs.
	SharedSecret string `yaml:"shared_secret" json:"shared_secret"`

	// Primary and Secondary are the reasoning providers, tried in that order.
	Primary   ProviderConfig `yaml:"primary" json:"primary"`
	Secondary ProviderConfig `yaml:"secondary" json:"secondary"`

	// Transcription is the audio transcription provider. May be unconfigured,
	// in which case audio instructions are simply unavailable.
	Transcription ProviderConfig `yaml:"transcription" json:"transcription"`

	Session  SessionConfig  `yaml:"session" json:"session"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
}

// DefaultConfig returns a configuration suitable for most deployments.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Primary: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o",
		},
		Secondary: ProviderConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Transcription: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
		},
		Session: SessionConfig{
			Deadline:     100 * time.Second,
			Grace:        5 * time.Second,
			TaskCeiling:  20,
			RetryCeiling: 3,
		},
		Download: DownloadConfig{
			MaxBytes: 8 << 20,
			Timeout:  20 * time.Second,
			Retries:  2,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 25 * time.Second,
		},
	}
}

// FromEnv builds a configuration from defaults plus environment overrides.
func FromEnv() *Config {
	cfg := DefaultConfig()

	setString(&cfg.Listen, "GAUNTLET_LISTEN")
	setString(&cfg.SharedSecret, "GAUNTLET_SECRET")

	setString(&cfg.Primary.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Primary.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Primary.Model, "GAUNTLET_PRIMARY_MODEL")

	setString(&cfg.Secondary.APIKey, "GROQ_API_KEY")
	setString(&cfg.Secondary.BaseURL, "GROQ_BASE_URL")
	setString(&cfg.Secondary.Model, "GAUNTLET_SECONDARY_MODEL")

	// Transcription shares the primary key unless overridden.
	cfg.Transcription.APIKey = cfg.Primary.APIKey
	setString(&cfg.Transcription.APIKey, "GAUNTLET_TRANSCRIPTION_API_KEY")
	setString(&cfg.Transcription.BaseURL, "GAUNTLET_TRANSCRIPTION_BASE_URL")
	setString(&cfg.Transcription.Model, "GAUNTLET_TRANSCRIPTION_MODEL")

	setDuration(&cfg.Session.Deadline, "GAUNTLET_SESSION_DEADLINE")

	return cfg
}

// LoadFile layers a YAML file over cfg in place.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the solver cannot run with.
func (c *Config) Validate() error {
	if c.SharedSecret == "" {
		return fmt.Errorf("shared secret is required (set GAUNTLET_SECRET)")
	}
	if !c.Primary.Configured() {
		return fmt.Errorf("primary reasoning provider requires an API key (set OPENAI_API_KEY)")
	}
	if c.Session.Deadline <= 0 {
		return fmt.Errorf("session deadline must be positive")
	}
	if c.Session.TaskCeiling <= 0 {
		return fmt.Errorf("task ceiling must be positive")
	}
	if c.Session.RetryCeiling <= 0 {
		return fmt.Errorf("retry ceiling must be positive")
	}
	if c.Download.MaxBytes <= 0 {
		return fmt.Errorf("download max_bytes must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
