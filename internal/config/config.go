// Package config loads daemon configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	SMTP    SMTP    `yaml:"smtp"`
	HTTP    HTTP    `yaml:"http"`
	Store   Store   `yaml:"store"`
	Logging Logging `yaml:"logging"`
}

// SMTP configures the inbound SMTP listener.
type SMTP struct {
	Listen        string `yaml:"listen"`
	Hostname      string `yaml:"hostname"`
	MaxLineLength int    `yaml:"max_line_length"`
	ReverseDNS    bool   `yaml:"reverse_dns"`
}

// HTTP configures the listing API.
type HTTP struct {
	Listen string `yaml:"listen"`
}

// Store configures message persistence.
type Store struct {
	// Driver is one of "memory", "sqlite" or "spool".
	Driver string `yaml:"driver"`

	// Path is the database or spool file; unused by the memory driver.
	Path string `yaml:"path"`
}

// Logging configures the slog handler.
type Logging struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
}

// Load reads the config file at path if it is non-empty, applies defaults
// and environment overrides, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SMTP.Listen == "" {
		c.SMTP.Listen = ":2525"
	}
	if c.SMTP.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			c.SMTP.Hostname = host
		} else {
			c.SMTP.Hostname = "localhost"
		}
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":3000"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() error {
	setString(&c.SMTP.Listen, "SMTP_LISTEN")
	setString(&c.SMTP.Hostname, "SMTP_HOSTNAME")
	setString(&c.HTTP.Listen, "HTTP_LISTEN")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.Path, "STORE_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v, ok := os.LookupEnv("SMTP_MAX_LINE_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_MAX_LINE_LENGTH: %w", err)
		}
		c.SMTP.MaxLineLength = n
	}
	if v, ok := os.LookupEnv("SMTP_REVERSE_DNS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SMTP_REVERSE_DNS: %w", err)
		}
		c.SMTP.ReverseDNS = b
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "spool":
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %q requires a path", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
