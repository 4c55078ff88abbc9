package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults
const (
	DefaultAPIURL             = "https://api.github.com"
	DefaultPageSize           = 100
	DefaultWindowSize         = 5
	DefaultRateLimitThreshold = 20
	DefaultRateLimitEvery     = 10
	DefaultHTTPTimeout        = 30 * time.Second
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// PostgresConfig holds the optional result store connection settings.
type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s port=%s host=%s sslmode=disable",
		p.User, p.Password, p.Database, p.Port, p.Host,
	)
}

// Config holds all configuration for the application
type Config struct {
	GitHubToken        string
	APIURL             string
	Account            string
	PageSize           int
	WindowSize         int
	RateLimitThreshold int
	RateLimitEvery     int
	HTTPTimeout        time.Duration
	OutputDir          string
	LogLevel           string
	LogFormat          string
	StoreResults       bool
	Postgres           PostgresConfig
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("GITHUB_API_URL", DefaultAPIURL)
	v.SetDefault("PAGE_SIZE", DefaultPageSize)
	v.SetDefault("WINDOW_SIZE", DefaultWindowSize)
	v.SetDefault("RATE_LIMIT_THRESHOLD", DefaultRateLimitThreshold)
	v.SetDefault("RATE_LIMIT_CHECK_EVERY", DefaultRateLimitEvery)
	v.SetDefault("HTTP_TIMEOUT", DefaultHTTPTimeout)
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)
}

// Load reads configuration from an optional config file, the environment
// and any flags already bound on v. configFile may be empty, in which case a
// .env file in the working directory is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read .env file: %w", err)
		}
	}

	c := &Config{
		GitHubToken:        strings.TrimSpace(v.GetString("GITHUB_TOKEN")),
		APIURL:             v.GetString("GITHUB_API_URL"),
		Account:            strings.TrimSpace(v.GetString("ACCOUNT")),
		PageSize:           v.GetInt("PAGE_SIZE"),
		WindowSize:         v.GetInt("WINDOW_SIZE"),
		RateLimitThreshold: v.GetInt("RATE_LIMIT_THRESHOLD"),
		RateLimitEvery:     v.GetInt("RATE_LIMIT_CHECK_EVERY"),
		HTTPTimeout:        v.GetDuration("HTTP_TIMEOUT"),
		OutputDir:          v.GetString("OUTPUT_DIR"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		StoreResults:       v.GetBool("STORE_RESULTS"),
		Postgres: PostgresConfig{
			Host:            v.GetString("POSTGRES_HOST"),
			Port:            v.GetString("POSTGRES_PORT"),
			User:            v.GetString("POSTGRES_USER"),
			Password:        v.GetString("POSTGRES_PASSWORD"),
			Database:        v.GetString("POSTGRES_DB"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields and numeric bounds.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("%w: account is required", ErrInvalidConfig)
	}
	if c.APIURL == "" {
		return fmt.Errorf("%w: GITHUB_API_URL cannot be empty", ErrInvalidConfig)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("%w: PAGE_SIZE must be between 1 and 100, got %d", ErrInvalidConfig, c.PageSize)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: WINDOW_SIZE must be positive, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.RateLimitThreshold < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_THRESHOLD cannot be negative", ErrInvalidConfig)
	}
	if c.RateLimitEvery < 1 {
		return fmt.Errorf("%w: RATE_LIMIT_CHECK_EVERY must be positive, got %d", ErrInvalidConfig, c.RateLimitEvery)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: HTTP_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.StoreResults && c.Postgres.Host == "" {
		return fmt.Errorf("%w: POSTGRES_HOST is required when STORE_RESULTS is set", ErrInvalidConfig)
	}
	return nil
}
