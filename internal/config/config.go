package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source drivers supported by SOURCE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Source table backend
	Source SourceConfig

	// Live aggregation configuration
	Live LiveConfig

	// Source fetch retries and timeouts
	Fetch FetchConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SourceConfig selects where source tables and the directory are read from.
type SourceConfig struct {
	Driver        string // postgres, sqlite
	SQLitePath    string
	NotifyChannel string
	WatchDebounce time.Duration
}

// LiveConfig holds live aggregation configuration
type LiveConfig struct {
	Enabled           bool
	Debounce          time.Duration
	DefaultWindowDays int
}

// FetchConfig bounds a single source fetch.
type FetchConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	RefreshRPS        float64 // Per-user limit for forced recomputation
	RefreshBurst      int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// CORSConfig holds cross-origin configuration for the REST API
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load reads configuration from the environment. Each env file is loaded
// first if present; variables already set in the process win. With no
// files given, ./.env is tried.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		slog.Debug("no .env file found, using process environment")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Source: SourceConfig{
			Driver:        strings.ToLower(getEnvOrDefault("SOURCE_DRIVER", DriverPostgres)),
			SQLitePath:    getEnvOrDefault("SQLITE_PATH", "data/kpi.db"),
			NotifyChannel: getEnvOrDefault("NOTIFY_CHANNEL", "kpi_table_changes"),
			WatchDebounce: getDurationOrDefault("SQLITE_WATCH_DEBOUNCE", 100*time.Millisecond),
		},
		Live: LiveConfig{
			Enabled:           getBoolOrDefault("LIVE_ENABLED", true),
			Debounce:          getDurationOrDefault("LIVE_DEBOUNCE", time.Second),
			DefaultWindowDays: getIntOrDefault("LIVE_DEFAULT_WINDOW_DAYS", 30),
		},
		Fetch: FetchConfig{
			MaxRetries:     getIntOrDefault("FETCH_MAX_RETRIES", 3),
			InitialBackoff: getDurationOrDefault("FETCH_INITIAL_BACKOFF", 100*time.Millisecond),
			MaxBackoff:     getDurationOrDefault("FETCH_MAX_BACKOFF", 2*time.Second),
			Timeout:        getDurationOrDefault("FETCH_TIMEOUT", 10*time.Second),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
			RefreshRPS:        getFloatOrDefault("RATE_LIMIT_REFRESH_RPS", 0.2),
			RefreshBurst:      getIntOrDefault("RATE_LIMIT_REFRESH_BURST", 2),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "team-kpi"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}

	return cfg, nil
}

// Validate checks everything the API server needs.
func (c *Config) Validate() error {
	errs := c.sourceErrors()

	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	// Security validations
	if c.App.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}

		if len(c.WebSocket.AllowedOrigins) == 0 {
			errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
		}
	}

	if c.Live.Enabled && c.Live.Debounce < 0 {
		errs = append(errs, "LIVE_DEBOUNCE cannot be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}

	return joinErrors(errs)
}

// ValidateSource checks only what reading the source tables needs. Commands
// that never serve HTTP use it instead of Validate.
func (c *Config) ValidateSource() error {
	return joinErrors(c.sourceErrors())
}

func (c *Config) sourceErrors() []string {
	var errs []string

	switch c.Source.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required")
		}
	case DriverSQLite:
		if c.Source.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Source.Driver))
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}
	if c.Live.DefaultWindowDays < 1 || c.Live.DefaultWindowDays > 366 {
		errs = append(errs, "LIVE_DEFAULT_WINDOW_DAYS must be between 1 and 366")
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, "FETCH_MAX_RETRIES cannot be negative")
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be positive")
	}

	return errs
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Source: %s, DB: %s, JWT: [REDACTED], Live: %v, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		c.Source.Driver,
		redactURL(c.Database.URL),
		c.Live.Enabled,
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL hides the password of a database URL
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	if idx := strings.Index(raw, "@"); idx > 0 {
		return "[REDACTED]" + raw[idx:]
	}
	return "[REDACTED]"
}
