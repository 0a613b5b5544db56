package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = ":8088"
	defaultEngineConfig = "dsc.toml"
	defaultEventStore   = "dsc-events.db"
	defaultScopeClaim   = "scope"
)

// Config captures the runtime settings for the dscd daemon.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	EngineConfig  string           `yaml:"engine_config"`
	TLS           TLSConfig        `yaml:"tls"`
	Auth          AuthConfig       `yaml:"auth"`
	RateLimits    RateLimitConfig  `yaml:"rate_limits"`
	EventStore    EventStoreConfig `yaml:"event_store"`
	Logging       LoggingConfig    `yaml:"logging"`
	Telemetry     TelemetryConfig  `yaml:"telemetry"`
}

// TLSConfig describes the TLS material for the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig configures bearer token validation. Token subjects name the
// account a request acts for.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmac_secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ScopeClaim string        `yaml:"scope_claim"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig holds per-route-group token buckets.
type RateLimitConfig struct {
	Write RateLimit `yaml:"write"`
	Read  RateLimit `yaml:"read"`
}

// RateLimit is a single token bucket definition.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// EventStoreConfig selects the SQL database used to index engine events.
// DSNs starting with postgres:// use Postgres; anything else is a sqlite
// path or URI.
type EventStoreConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig controls the slog level and optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig selects the OTLP/HTTP exporters. The standard
// OTEL_EXPORTER_OTLP_* variables override these values at startup.
type TelemetryConfig struct {
	Endpoint       string            `yaml:"endpoint"`
	Insecure       bool              `yaml:"insecure"`
	Headers        map[string]string `yaml:"headers"`
	Traces         bool              `yaml:"traces"`
	Metrics        bool              `yaml:"metrics"`
	SampleRatio    float64           `yaml:"sample_ratio"`
	MetricInterval time.Duration     `yaml:"metric_interval"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListen,
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.EngineConfig = strings.TrimSpace(cfg.EngineConfig)
	if cfg.EngineConfig == "" {
		cfg.EngineConfig = defaultEngineConfig
	}
	cfg.EventStore.DSN = strings.TrimSpace(cfg.EventStore.DSN)
	if cfg.EventStore.DSN == "" {
		cfg.EventStore.DSN = defaultEventStore
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)
	cfg.Auth.normalize()
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := cfg.RateLimits.Write.validate(); err != nil {
		return fmt.Errorf("rate_limits.write: %w", err)
	}
	if err := cfg.RateLimits.Read.validate(); err != nil {
		return fmt.Errorf("rate_limits.read: %w", err)
	}
	if err := cfg.Telemetry.validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func (cfg TelemetryConfig) validate() error {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1")
	}
	if cfg.MetricInterval < 0 {
		return fmt.Errorf("metric_interval must not be negative")
	}
	return nil
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the listener should serve TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

func (cfg *AuthConfig) normalize() {
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.ScopeClaim = strings.TrimSpace(cfg.ScopeClaim)
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = defaultScopeClaim
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
}

func (cfg AuthConfig) validate() error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.HMACSecret) < 32 {
		return fmt.Errorf("hmac_secret must be at least 32 bytes when auth is enabled")
	}
	return nil
}

func (l RateLimit) validate() error {
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	if l.Burst < 0 {
		return fmt.Errorf("burst must not be negative")
	}
	return nil
}

// Configured reports whether the bucket limits anything.
func (l RateLimit) Configured() bool {
	return l.RequestsPerMinute > 0
}
