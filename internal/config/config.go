// ABOUTME: Configuration loading and parsing for pollgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Run modes. Webhook mode serves an HTTP endpoint Telegram pushes updates
// to; long-poll mode pulls updates from the Bot API and needs no inbound
// connectivity.
const (
	ModeLongPoll = "longpoll"
	ModeWebhook  = "webhook"
)

// Config represents the complete pollgate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the update delivery mode and the webhook listener
// settings used when Mode is "webhook".
type ServerConfig struct {
	Mode          string `yaml:"mode"`
	HTTPAddr      string `yaml:"http_addr"`
	WebhookSecret string `yaml:"webhook_secret"`
	PublicURL     string `yaml:"public_url"` // externally reachable base URL registered with Telegram
}

// TelegramConfig holds Bot API client configuration
type TelegramConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	ProxyURL string `yaml:"proxy_url"`
	PoolSize int    `yaml:"pool_size"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DedupConfig holds the processed-update ledger retention window.
type DedupConfig struct {
	Retention time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RetentionRaw string `yaml:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Server.Mode == "" {
		cfg.Server.Mode = ModeLongPoll
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Server.Mode {
	case ModeLongPoll:
	case ModeWebhook:
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required in webhook mode")
		}
		if c.Server.WebhookSecret == "" {
			return fmt.Errorf("server.webhook_secret is required in webhook mode")
		}
		if c.Server.PublicURL == "" {
			return fmt.Errorf("server.public_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("server.mode must be %q or %q, got %q", ModeLongPoll, ModeWebhook, c.Server.Mode)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Telegram.TimeoutRaw != "" {
		cfg.Telegram.Timeout, err = time.ParseDuration(cfg.Telegram.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing telegram.timeout %q: %w", cfg.Telegram.TimeoutRaw, err)
		}
	}

	if cfg.Dedup.RetentionRaw != "" {
		cfg.Dedup.Retention, err = time.ParseDuration(cfg.Dedup.RetentionRaw)
		if err != nil {
			return fmt.Errorf("parsing dedup.retention %q: %w", cfg.Dedup.RetentionRaw, err)
		}
	}

	return nil
}
