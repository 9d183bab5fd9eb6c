// ABOUTME: Configuration loading and parsing for taskstream
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete taskstream configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Chat     ChatConfig     `yaml:"chat"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LLMConfig holds the default model provider settings. Users can override
// model, API key, and base URL per account.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ChatConfig holds turn-orchestration tuning
type ChatConfig struct {
	ConfirmTimeout time.Duration `yaml:"-"`
	ContextTurns   int           `yaml:"-"`
	MaxRounds      int           `yaml:"max_rounds"`

	// Raw values for YAML unmarshaling. ContextTurns needs a pointer so an
	// explicit 0 (unbounded lookback) survives defaulting.
	ConfirmTimeoutRaw string `yaml:"confirm_timeout"`
	ContextTurnsRaw   *int   `yaml:"context_turns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied after parsing.
const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultContextTurns   = 10
	DefaultMaxRounds      = 10
)

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

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

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

func (c *Config) applyDefaults() {
	if c.Chat.ConfirmTimeout == 0 {
		c.Chat.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.Chat.ContextTurnsRaw == nil {
		c.Chat.ContextTurns = DefaultContextTurns
	} else {
		c.Chat.ContextTurns = *c.Chat.ContextTurnsRaw
	}
	if c.Chat.MaxRounds == 0 {
		c.Chat.MaxRounds = DefaultMaxRounds
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8000"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Chat.ContextTurns < 0 {
		return fmt.Errorf("chat.context_turns must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Chat.ConfirmTimeoutRaw != "" {
		cfg.Chat.ConfirmTimeout, err = time.ParseDuration(cfg.Chat.ConfirmTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing confirm_timeout %q: %w", cfg.Chat.ConfirmTimeoutRaw, err)
		}
	}

	return nil
}
