package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Gateway backends
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	App      AppConfig
	Gateway  GatewayConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cache    CacheConfig
	Session  SessionConfig
	History  HistoryConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Locale         string
	Timezone       *time.Location
	AllowedOrigins []string
}

// GatewayConfig selects and configures the attendance backend
type GatewayConfig struct {
	Backend        string
	BaseURL        string
	ServiceToken   string
	Timeout        time.Duration
	LegacyStatuses bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

type CacheConfig struct {
	Backend    string
	HistoryTTL time.Duration
	SweepSpec  string
}

// SessionConfig controls editor session eviction
type SessionConfig struct {
	IdleTimeout time.Duration
	EvictSpec   string
}

type HistoryConfig struct {
	MinYear int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	} else if err != nil {
		slog.Debug("No .env file found, using process environment")
	}

	config := &Config{}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	tz, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Locale:         getEnv("APP_LOCALE", "es"),
		Timezone:       tz,
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// Gateway configuration
	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	legacyStatuses, err := strconv.ParseBool(getEnv("GATEWAY_LEGACY_STATUSES", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_LEGACY_STATUSES: %w", err)
	}

	config.Gateway = GatewayConfig{
		Backend:        getEnv("GATEWAY_BACKEND", BackendREST),
		BaseURL:        strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:4000"), "/"),
		ServiceToken:   getEnv("GATEWAY_SERVICE_TOKEN", ""),
		Timeout:        gatewayTimeout,
		LegacyStatuses: legacyStatuses,
	}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Redis configuration
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Cache configuration
	historyTTL, err := time.ParseDuration(getEnv("CACHE_HISTORY_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_HISTORY_TTL: %w", err)
	}

	config.Cache = CacheConfig{
		Backend:    getEnv("CACHE_BACKEND", CacheMemory),
		HistoryTTL: historyTTL,
		SweepSpec:  getEnv("CACHE_SWEEP_SPEC", "@every 10m"),
	}

	// Session configuration
	idleTimeout, err := time.ParseDuration(getEnv("SESSION_IDLE_TIMEOUT", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %w", err)
	}

	config.Session = SessionConfig{
		IdleTimeout: idleTimeout,
		EvictSpec:   getEnv("SESSION_EVICT_SPEC", "@every 5m"),
	}

	// History configuration
	minYear, err := strconv.Atoi(getEnv("HISTORY_MIN_YEAR", "2025"))
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_MIN_YEAR: %w", err)
	}
	config.History = HistoryConfig{MinYear: minYear}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	switch c.Gateway.Backend {
	case BackendREST:
		if c.Gateway.BaseURL == "" {
			return fmt.Errorf("GATEWAY_BASE_URL is required for the rest backend")
		}
	case BackendPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	default:
		return fmt.Errorf("GATEWAY_BACKEND must be %q or %q", BackendREST, BackendPostgres)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q", CacheMemory, CacheRedis)
	}

	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.App.Locale != "es" && c.App.Locale != "en" {
		return fmt.Errorf("APP_LOCALE must be es or en")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
