package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string // Required: issuer claim for tokens
	DatabaseFile  string // Optional: path to SQLite database file (default: ./authcore.db)
	PepperFile    string // Optional: path to file containing pepper for secret hashing (default: ./pepper)
	MasterKeyFile string // Optional: path to master encryption key material; random per boot when unset

	AccessTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL time.Duration // Optional: refresh token lifetime (default: 720h)

	LockoutThreshold int           // Optional: failures before lockout (default: 5)
	LockoutWindow    time.Duration // Optional: sliding failure window and lock duration (default: 15m)

	ChallengeTTL      time.Duration // Optional: MFA challenge lifetime (default: 5m)
	ChallengeAttempts int           // Optional: MFA attempts before terminal failure (default: 3)

	KeyGracePeriod       time.Duration // Optional: retired signing keys verify this long (default: 30 days)
	HousekeepingInterval time.Duration // Optional: expired-row sweep interval (default: 1h)

	Env                 string // Environment (dev, staging, prod) (default: dev)
	LogLevel            string // Log level (debug, info, warn, error) (default: info)
	LogFormat           string // Log format (json, text) (default: json)
	Port                int    // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration
	AuditBuffer         int // Optional: audit event queue depth (default: 256)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:        getEnvOrDefault("AUTHCORE_ISSUER", "authcore"),
		DatabaseFile:  getEnvOrDefault("AUTHCORE_DATABASE_FILE", "authcore.db"),
		PepperFile:    getEnvOrDefault("AUTHCORE_PEPPER_FILE", "pepper"),
		MasterKeyFile: os.Getenv("AUTHCORE_MASTER_KEY_FILE"),

		AccessTTL:  getEnvDurationOrDefault("AUTHCORE_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDurationOrDefault("AUTHCORE_REFRESH_TTL", 30*24*time.Hour),

		LockoutThreshold: getEnvIntOrDefault("AUTHCORE_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:    getEnvDurationOrDefault("AUTHCORE_LOCKOUT_WINDOW", 15*time.Minute),

		ChallengeTTL:      getEnvDurationOrDefault("AUTHCORE_CHALLENGE_TTL", 5*time.Minute),
		ChallengeAttempts: getEnvIntOrDefault("AUTHCORE_CHALLENGE_ATTEMPTS", 3),

		KeyGracePeriod:       getEnvDurationOrDefault("AUTHCORE_KEY_GRACE_PERIOD", 30*24*time.Hour),
		HousekeepingInterval: getEnvDurationOrDefault("AUTHCORE_HOUSEKEEPING_INTERVAL", time.Hour),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		AuditBuffer:         getEnvIntOrDefault("AUTHCORE_AUDIT_BUFFER", 256),
	}

	return cfg
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
