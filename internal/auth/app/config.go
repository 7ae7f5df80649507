package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer   string // Issuer claim for tokens (default: edugate-auth)
	Audience string // Audience claim for tokens (default: edugate)

	AccessTokenSecret  string // Required: HMAC secret for access tokens
	RefreshTokenSecret string // Required: HMAC secret for refresh tokens; must differ from the access secret

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 168h)

	DatabaseFile string // Path to SQLite database file (default: ./edugate.db)

	RedisURL           string        // Optional: remote cache URL; empty runs in-process only
	CacheProbeInterval time.Duration // How often a degraded remote cache is re-probed (default: 30s)

	CSRFEnforce bool // When false, anti-forgery failures are recorded but not blocked (default: true)
	MFAEnabled  bool // Whether one-time codes are honored at login (default: false)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	EventRetention       time.Duration // Audit trail retention (default: 2160h / 90 days)
	MonitorInterval      time.Duration // Security scan interval (default: 5m)
}

// LoadConfig reads configuration from the environment, after merging in a
// .env file when one is present.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "edugate-auth"),
		Audience: getEnvOrDefault("AUTH_AUDIENCE", "edugate"),

		AccessTokenSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshTokenSecret: os.Getenv("AUTH_REFRESH_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "edugate.db"),

		RedisURL:           os.Getenv("REDIS_URL"),
		CacheProbeInterval: getEnvDurationOrDefault("CACHE_PROBE_INTERVAL", 30*time.Second),

		CSRFEnforce: getEnvBoolOrDefault("CSRF_ENFORCE", true),
		MFAEnabled:  getEnvBoolOrDefault("MFA_ENABLED", false),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		EventRetention:       getEnvDurationOrDefault("EVENT_RETENTION", 90*24*time.Hour),
		MonitorInterval:      getEnvDurationOrDefault("MONITOR_INTERVAL", 5*time.Minute),
	}
}

// Validate rejects configurations that cannot run safely.
func (c Config) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("AUTH_ACCESS_SECRET must be set and at least 32 bytes")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("AUTH_REFRESH_SECRET must be set and at least 32 bytes")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
