// Package config loads Muse server configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends for per-client state.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds all Muse configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Mail     MailConfig     `yaml:"mail"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	BaseURL         string `yaml:"base_url"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	SessionSweep    string `yaml:"session_sweep"`
}

// AuthConfig configures Google sign-in and cookies.
type AuthConfig struct {
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	SessionSecret      string `yaml:"session_secret"`
	// WaitlistURL points the sign-in chain at a remote waitlist API.
	// Empty means the in-process waitlist service is used.
	WaitlistURL string `yaml:"waitlist_url"`
}

// DatabaseConfig configures PostgreSQL. An empty URL keeps waitlist
// and sessions in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the backend for per-client state.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// MailConfig configures waitlist notification email.
type MailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	FromEmail   string `yaml:"from_email"`
	FromName    string `yaml:"from_name"`
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	SendTimeout string `yaml:"send_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Mode string `yaml:"mode"` // dev or prod
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:3000",
			BaseURL:         "http://localhost:3000",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "10s",
			SessionSweep:    "1h",
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			Dir:         ".muse",
			RedisPrefix: "muse:",
		},
		Mail: MailConfig{
			BaseURL:     "https://api.sendgrid.com",
			FromName:    "Muse",
			Workers:     2,
			QueueSize:   64,
			SendTimeout: "10s",
		},
		Logging: LoggingConfig{
			Mode: "dev",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment variables are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Addr, "MUSE_ADDR")
	setString(&c.Server.BaseURL, "NEXTAUTH_URL")
	setString(&c.Server.BaseURL, "MUSE_BASE_URL")

	setString(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Auth.SessionSecret, "NEXTAUTH_SECRET")
	setString(&c.Auth.SessionSecret, "SESSION_SECRET")
	setString(&c.Auth.WaitlistURL, "WAITLIST_URL")

	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Storage.Backend, "MUSE_STORAGE")
	setString(&c.Storage.Dir, "MUSE_STORAGE_DIR")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")

	if key := strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")); key != "" {
		c.Mail.APIKey = key
		c.Mail.Enabled = true
	}
	setString(&c.Mail.FromEmail, "SENDGRID_FROM_EMAIL")
	setString(&c.Mail.FromName, "SENDGRID_FROM_NAME")
	if v := strings.TrimSpace(os.Getenv("SENDGRID_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mail.Workers = n
		}
	}

	setString(&c.Logging.Mode, "LOG_MODE")
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case StorageMemory, StorageFile:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage: redis backend requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}

	if c.Mail.Enabled && c.Mail.APIKey == "" {
		errs = append(errs, errors.New("mail: enabled without api_key"))
	}

	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.session_sweep":    c.Server.SessionSweep,
		"mail.send_timeout":       c.Mail.SendTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Duration parses a duration field, returning def when empty or invalid.
func Duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GoogleEnabled reports whether Google sign-in credentials are present.
func (c *Config) GoogleEnabled() bool {
	return c.Auth.GoogleClientID != "" && c.Auth.GoogleClientSecret != ""
}
