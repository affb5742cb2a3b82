package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SMTPRelay is one configured outbound mail relay.
type SMTPRelay struct {
	Host   string
	Port   int
	User   string
	Pass   string
	Secure bool
}

// Config holds the application configuration. It is constructed once at
// startup and passed into component constructors; nothing reads env vars
// after Load returns.
type Config struct {
	DatabaseURL     string
	Port            string
	JWTSecret       string
	SessionTTL      time.Duration
	OTPExpiry       time.Duration
	GuestDailyLimit int
	Production      bool
	SMTPRelays      []SMTPRelay
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port: "8080", // default port
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.SessionTTL = time.Duration(intEnv("SESSION_TTL_HOURS", 7*24)) * time.Hour
	cfg.OTPExpiry = time.Duration(intEnv("OTP_EXPIRES_MINUTES", 10)) * time.Minute
	cfg.GuestDailyLimit = intEnv("GUEST_DAILY_LIMIT", 5)
	cfg.Production = os.Getenv("APP_ENV") == "production"

	count := intEnv("SMTP_COUNT", 1)
	for i := 1; i <= count; i++ {
		prefix := fmt.Sprintf("SMTP_%d_", i)
		relay := SMTPRelay{
			Host:   os.Getenv(prefix + "HOST"),
			Port:   587,
			User:   os.Getenv(prefix + "USER"),
			Pass:   os.Getenv(prefix + "PASS"),
			Secure: os.Getenv(prefix+"SECURE") == "true",
		}
		if p, err := strconv.Atoi(os.Getenv(prefix + "PORT")); err == nil {
			relay.Port = p
		}
		cfg.SMTPRelays = append(cfg.SMTPRelays, relay)
	}

	return cfg, nil
}

// intEnv returns the env var parsed as int, or def when unset or malformed.
func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
