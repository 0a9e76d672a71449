package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for erdflow-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL, deployment history)
	Database DatabaseConfig `yaml:"database"`

	// Catalog configuration (standard-entity registry)
	Catalog CatalogConfig `yaml:"catalog"`

	// Matcher configuration (catalog matching thresholds)
	Matcher MatcherConfig `yaml:"matcher"`

	// Platform configuration (remote data platform)
	Platform PlatformConfig `yaml:"platform"`

	// Rollback configuration (status tracker retention)
	Rollback RollbackConfig `yaml:"rollback"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"erdflow"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"erdflow_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// CatalogConfig configures the standard-entity registry source.
type CatalogConfig struct {
	// RegistryPath points to a YAML registry snapshot. Empty means the
	// embedded CDM snapshot is used.
	RegistryPath string `yaml:"registry_path" env:"CATALOG_REGISTRY_PATH" env-default:""`
}

// MatcherConfig configures catalog-matching behavior.
type MatcherConfig struct {
	// AliasConfidence is assigned to alias-tier matches. Must stay above any
	// possible fuzzy score so the confidence ordering exact > alias > fuzzy
	// holds.
	AliasConfidence float64 `yaml:"alias_confidence" env:"MATCHER_ALIAS_CONFIDENCE" env-default:"0.9"`
	// FuzzyThreshold is the minimum Levenshtein similarity for a fuzzy match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" env:"MATCHER_FUZZY_THRESHOLD" env-default:"0.6"`
}

// Validate checks that matcher thresholds keep the match tiers ordered.
func (c *MatcherConfig) Validate() error {
	if c.AliasConfidence <= 0 || c.AliasConfidence >= 1 {
		return fmt.Errorf("alias_confidence must be in (0,1), got %v", c.AliasConfidence)
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold >= 1 {
		return fmt.Errorf("fuzzy_threshold must be in (0,1), got %v", c.FuzzyThreshold)
	}
	if c.FuzzyThreshold >= c.AliasConfidence {
		return fmt.Errorf("fuzzy_threshold (%v) must be below alias_confidence (%v)",
			c.FuzzyThreshold, c.AliasConfidence)
	}
	return nil
}

// PlatformConfig configures calls against the remote data platform.
type PlatformConfig struct {
	// BaseURL of the platform's administration API. Empty means no platform
	// connection is configured; deployment requests will be rejected.
	BaseURL string `yaml:"base_url" env:"PLATFORM_BASE_URL" env-default:""`
	// CallTimeoutSeconds bounds each individual platform call. A timeout is
	// treated like any other step failure.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds" env:"PLATFORM_CALL_TIMEOUT_SECONDS" env-default:"120"`
}

// CallTimeout returns the per-call timeout as a duration.
func (c *PlatformConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// RollbackConfig configures the rollback status tracker.
type RollbackConfig struct {
	// RetentionMinutes is how long completed rollback statuses are kept in
	// the in-memory tracker before eviction.
	RetentionMinutes int `yaml:"retention_minutes" env:"ROLLBACK_RETENTION_MINUTES" env-default:"60"`
	// CleanupIntervalMinutes is how often the tracker's janitor runs.
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes" env:"ROLLBACK_CLEANUP_INTERVAL_MINUTES" env-default:"10"`
}

// Retention returns the tracker retention window as a duration.
func (c *RollbackConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// CleanupInterval returns the janitor interval as a duration.
func (c *RollbackConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (PGPASSWORD) must come from environment variables
// (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Matcher.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher configuration: %w", err)
	}

	if cfg.Platform.CallTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("platform call_timeout_seconds must be positive")
	}

	return cfg, nil
}
