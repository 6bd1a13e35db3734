package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	HTTPAddr    string
	LogFile     string

	StoreDriver   string // memory | postgres | redis
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockDriver    string // local | redis
	StoreTimeout  time.Duration

	Timezone     string
	FirstHour    int
	LastHour     int
	CancelWindow time.Duration

	MaterializeDays     int
	MaterializeInterval time.Duration

	JWTSecret string
	// RateLimit is the per-actor budget of booking mutations per minute; 0 disables it.
	RateLimit int

	TelegramToken string
	NatsURL       string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool
	MailFrom     string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; the environment alone may be enough.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getenv("ENV", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogFile:     os.Getenv("LOG_FILE"),

		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", "memory")),
		DBDSN:         os.Getenv("DB_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LockDriver:    strings.ToLower(getenv("LOCK_DRIVER", "local")),

		Timezone: getenv("TIMEZONE", "UTC"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		NatsURL:       os.Getenv("NATS_URL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = envDur("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.FirstHour, err = envInt("FIRST_HOUR", 8); err != nil {
		return nil, err
	}
	if cfg.LastHour, err = envInt("LAST_HOUR", 20); err != nil {
		return nil, err
	}
	if cfg.CancelWindow, err = envDur("CANCEL_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaterializeDays, err = envInt("MATERIALIZE_DAYS", 0); err != nil {
		return nil, err
	}
	if cfg.MaterializeInterval, err = envDur("MATERIALIZE_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt("RATE_LIMIT_PER_MINUTE", 0); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.SMTPUseTLS, err = envBool("SMTP_USE_TLS", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields and the cross-field rules.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE_DRIVER=postgres")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LockDriver {
	case "local":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LOCK_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver)
	}

	if c.FirstHour < 0 || c.LastHour > 23 || c.FirstHour > c.LastHour {
		return fmt.Errorf("invalid hour range %d..%d", c.FirstHour, c.LastHour)
	}
	if c.RateLimit > 0 && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_PER_MINUTE is set")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured institution time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
