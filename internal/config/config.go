package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	API        APIConfig
	Auth       AuthConfig
	Booking    BookingConfig
	TokenStore TokenStoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Log        LogConfig
}

// ServerConfig holds the local HTTP shell configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// APIConfig holds the remote booking API configuration.
type APIConfig struct {
	BaseURL               string
	Timeout               time.Duration
	UserType              string // "user" for the rider app, "driver" for the driver app
	AutocompletePerSecond float64
	BreakerFailures       uint32
	BreakerCooldown       time.Duration
}

// AuthConfig holds the OTP flow constants.
type AuthConfig struct {
	OtpLength      int
	ResendCooldown time.Duration
}

// BookingConfig holds trip composer settings.
type BookingConfig struct {
	DebounceDelay         time.Duration
	SuggestionCacheTTL    time.Duration
	DefaultCabType        string
	DefaultPreferredPrice int
}

// TokenStore backends.
const (
	TokenStoreMemory   = "memory"
	TokenStoreRedis    = "redis"
	TokenStorePostgres = "postgres"
)

// TokenStoreConfig selects where session tokens are persisted.
type TokenStoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Development bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory (or ENV_FILE) is read first; real environment variables
// take precedence over it.
func Load() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		API: APIConfig{
			BaseURL:               getEnv("API_BASE_URL", "http://localhost:8000"),
			Timeout:               getDurationEnv("API_TIMEOUT", 15*time.Second),
			UserType:              getEnv("API_USER_TYPE", "user"),
			AutocompletePerSecond: getFloatEnv("AUTOCOMPLETE_RATE_PER_SEC", 5),
			BreakerFailures:       uint32(getIntEnv("API_BREAKER_FAILURES", 5)),
			BreakerCooldown:       getDurationEnv("API_BREAKER_COOLDOWN", 30*time.Second),
		},
		Auth: AuthConfig{
			OtpLength:      getIntEnv("OTP_LENGTH", 4),
			ResendCooldown: getDurationEnv("OTP_RESEND_COOLDOWN", 50*time.Second),
		},
		Booking: BookingConfig{
			DebounceDelay:         getDurationEnv("AUTOCOMPLETE_DEBOUNCE", 300*time.Millisecond),
			SuggestionCacheTTL:    getDurationEnv("SUGGESTION_CACHE_TTL", 5*time.Minute),
			DefaultCabType:        getEnv("DEFAULT_CAB_TYPE", "Hatchback"),
			DefaultPreferredPrice: getIntEnv("DEFAULT_PREFERRED_PRICE", 1000),
		},
		TokenStore: TokenStoreConfig{
			Backend: getEnv("TOKEN_STORE", TokenStoreMemory),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cabbook"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "cabbook-core"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Development: getBoolEnv("LOG_DEVELOPMENT", false),
		},
	}
}

// NeedsRedis reports whether any component requires a Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.Redis.Enabled || c.TokenStore.Backend == TokenStoreRedis
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
