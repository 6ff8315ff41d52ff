package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	Bulk     BulkConfig     `envconfig:"BULK"`
	Log      LogConfig      `envconfig:"LOG"`
}

// ServerConfig holds HTTP server settings. Port also honours a bare PORT variable.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host           string        `default:"localhost"`
	Port           string        `default:"5432"`
	User           string        `default:"postgres"`
	Password       string        `default:"postgres"`
	Name           string        `default:"research_output"`
	SSLMode        string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns   int           `split_words:"true" default:"25"`
	MaxIdleConns   int           `split_words:"true" default:"5"`
	MaxLifetime    time.Duration `split_words:"true" default:"5m"`
	MigrationsPath string        `envconfig:"MIGRATIONS_PATH" default:"./migrations"`
}

// BulkConfig bounds the bulk verify/unverify/discard endpoints
type BulkConfig struct {
	MaxItems          int `split_words:"true" default:"5000"`
	EntityConcurrency int `split_words:"true" default:"4"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"` // "json" or "pretty"
}

// Load reads configuration from environment variables, after merging an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be >= 1")
	}
	if c.Bulk.MaxItems < 1 {
		return fmt.Errorf("BULK_MAX_ITEMS must be >= 1")
	}
	if c.Bulk.EntityConcurrency < 1 {
		return fmt.Errorf("BULK_ENTITY_CONCURRENCY must be >= 1")
	}
	switch c.Log.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or pretty, got %q", c.Log.Format)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
