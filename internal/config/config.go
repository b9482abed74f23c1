package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Commands   CommandsConfig   `json:"commands"`
}

// ServerConfig covers the HTTP listener and logging.
type ServerConfig struct {
	Port     int         `json:"port"`
	LogLevel string      `json:"log_level"`
	LogFile  string      `json:"log_file"`
	Rotation LogRotation `json:"rotation"`
}

// LogRotation bounds the log file; sizes are in megabytes, age in days.
type LogRotation struct {
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// GatewayConfig holds per-platform adapter settings.
type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

// DatabaseConfig groups the optional backing stores.
type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL    string `json:"url"`
	Stream string `json:"stream"`
}

// DispatcherConfig maps onto command.Options.
type DispatcherConfig struct {
	// ProcessFlags defaults to true when omitted.
	ProcessFlags    *bool    `json:"process_flags"`
	MaxConcurrent   int64    `json:"max_concurrent"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// FlagsEnabled reports whether flag tokens are split out of argv.
func (d DispatcherConfig) FlagsEnabled() bool {
	return d.ProcessFlags == nil || *d.ProcessFlags
}

// CommandsConfig controls the chat prefix and manifest loading.
type CommandsConfig struct {
	Prefix      string `json:"prefix"`
	ManifestDir string `json:"manifest_dir"`
}

// Duration decodes "10s"-style strings or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		d.Duration = time.Duration(t)
	case string:
		if t == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", t, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

const (
	DefaultPort            = 3210
	DefaultPrefix          = "/"
	DefaultStream          = "nuka:commands"
	DefaultShutdownTimeout = 10 * time.Second
)

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Commands.Prefix == "" {
		c.Commands.Prefix = DefaultPrefix
	}
	if c.Database.Redis.Stream == "" {
		c.Database.Redis.Stream = DefaultStream
	}
	if c.Dispatcher.ShutdownTimeout.Duration == 0 {
		c.Dispatcher.ShutdownTimeout.Duration = DefaultShutdownTimeout
	}
}

// Validate reports every inconsistency at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is not one of debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Dispatcher.MaxConcurrent < 0 {
		errs = append(errs, errors.New("dispatcher.max_concurrent must not be negative"))
	}
	if c.Dispatcher.ShutdownTimeout.Duration < 0 {
		errs = append(errs, errors.New("dispatcher.shutdown_timeout must not be negative"))
	}
	if c.Gateway.Slack.Enabled && (c.Gateway.Slack.BotToken == "" || c.Gateway.Slack.AppToken == "") {
		errs = append(errs, errors.New("gateway.slack needs bot_token and app_token when enabled"))
	}
	if c.Gateway.Discord.Enabled && c.Gateway.Discord.BotToken == "" {
		errs = append(errs, errors.New("gateway.discord needs bot_token when enabled"))
	}
	return errors.Join(errs...)
}
