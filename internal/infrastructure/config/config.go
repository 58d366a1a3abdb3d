// Package config loads host configuration from environment variables with
// an optional YAML overlay file (LUMINA_CONFIG).
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Agent     AgentConfig     `yaml:"agent"`
	Relay     RelayConfig     `yaml:"relay"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8600" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" yaml:"host"`
}

// BrowserConfig holds surface engine and layout configuration.
type BrowserConfig struct {
	Headless        bool   `envconfig:"BROWSER_HEADLESS" default:"false" yaml:"headless"`
	UserAgent       string `envconfig:"BROWSER_USER_AGENT" default:"" yaml:"user_agent"`
	HomeURL         string `envconfig:"BROWSER_HOME_URL" default:"lumina://home" yaml:"home_url"`
	SearchURL       string `envconfig:"BROWSER_SEARCH_URL" default:"lumina://search" yaml:"search_url"`
	TopChromeHeight int    `envconfig:"BROWSER_CHROME_HEIGHT" default:"88" yaml:"top_chrome_height"`
	PanelWidth      int    `envconfig:"BROWSER_PANEL_WIDTH" default:"420" yaml:"panel_width"`
	WindowWidth     int    `envconfig:"BROWSER_WINDOW_WIDTH" default:"1280" yaml:"window_width"`
	WindowHeight    int    `envconfig:"BROWSER_WINDOW_HEIGHT" default:"800" yaml:"window_height"`
}

// AgentConfig holds supervised agent process configuration.
type AgentConfig struct {
	Command        string   `envconfig:"AGENT_COMMAND" default:"lumina-voice-agent" yaml:"command"`
	Args           []string `envconfig:"AGENT_ARGS" yaml:"args"`
	RestartDelayMs int      `envconfig:"AGENT_RESTART_DELAY_MS" default:"2000" yaml:"restart_delay_ms"`
	StopTimeoutMs  int      `envconfig:"AGENT_STOP_TIMEOUT_MS" default:"5000" yaml:"stop_timeout_ms"`
}

// RelayConfig holds stream relay configuration.
type RelayConfig struct {
	ConnectTimeoutMs int `envconfig:"RELAY_CONNECT_TIMEOUT_MS" default:"30000" yaml:"connect_timeout_ms"`
	RetryMax         int `envconfig:"RELAY_RETRY_MAX" default:"2" yaml:"retry_max"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables, then applies the
// YAML overlay file named by LUMINA_CONFIG when present.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LUMINA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if path := os.Getenv("LUMINA_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8600", Host: "127.0.0.1"},
		Browser: BrowserConfig{
			HomeURL:         "lumina://home",
			SearchURL:       "lumina://search",
			TopChromeHeight: 88,
			PanelWidth:      420,
			WindowWidth:     1280,
			WindowHeight:    800,
		},
		Agent: AgentConfig{
			Command:        "lumina-voice-agent",
			RestartDelayMs: 2000,
			StopTimeoutMs:  5000,
		},
		Relay: RelayConfig{
			ConnectTimeoutMs: 30000,
			RetryMax:         2,
		},
		Logging: LogConfig{Level: "info", Development: false},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
