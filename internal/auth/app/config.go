package app

import (
	"os"
	"strconv"
	"time"
)

// TokenSecretPlaceholder is what the sample env file ships with. Treated the
// same as an empty secret so a copy-pasted template never signs real tokens.
const TokenSecretPlaceholder = "changeme"

type Config struct {
	Issuer   string // issuer claim for tokens
	Audience string // audience claim for tokens

	TokenSecret string        // HS256 signing secret; empty or placeholder means ephemeral
	SessionTTL  time.Duration // sliding session/token lifetime (default: 30 days)

	LockThreshold int           // failed logins inside the window that trip a lock (default: 3)
	FailureWindow time.Duration // rolling failure window (default: 15m)
	LockDuration  time.Duration // lock hold time (default: 15m)

	RecoveryThreshold int           // recovery requests before blocking (default: 3)
	RecoveryBlock     time.Duration // recovery block duration (default: 2m)

	ProviderURL string // credential verification endpoint of the identity provider
	GeoURL      string // optional ip-api style endpoint; empty disables lookups

	DatabaseFile         string        // path to SQLite database file (default: ./auth.db)
	Env                  string        // environment (dev, staging, prod) (default: dev)
	LogLevel             string        // log level (debug, info, warn, error) (default: info)
	LogFormat            string        // log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	CookieDomain         string        // optional auth cookie domain
	ShutdownGracePeriod  time.Duration // graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:   getEnvOrDefault("AUTH_ISSUER", "storefront-auth"),
		Audience: getEnvOrDefault("AUTH_AUDIENCE", "storefront-api"),

		TokenSecret: os.Getenv("AUTH_TOKEN_SECRET"),
		SessionTTL:  getEnvDurationOrDefault("AUTH_SESSION_TTL", 30*24*time.Hour),

		LockThreshold: getEnvIntOrDefault("AUTH_LOCK_THRESHOLD", 3),
		FailureWindow: getEnvDurationOrDefault("AUTH_FAILURE_WINDOW", 15*time.Minute),
		LockDuration:  getEnvDurationOrDefault("AUTH_LOCK_DURATION", 15*time.Minute),

		RecoveryThreshold: getEnvIntOrDefault("AUTH_RECOVERY_THRESHOLD", 3),
		RecoveryBlock:     getEnvDurationOrDefault("AUTH_RECOVERY_BLOCK", 2*time.Minute),

		ProviderURL: os.Getenv("AUTH_PROVIDER_URL"),
		GeoURL:      os.Getenv("AUTH_GEO_URL"),

		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		CookieDomain:         os.Getenv("AUTH_COOKIE_DOMAIN"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
