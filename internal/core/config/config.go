package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port          string
	Env           string
	StorageDriver string
	DatabaseURL   string
	Currency      string

	// AutoProvisionCards creates an account on the first tap of an unknown
	// card. When false, unknown cards must be registered first.
	AutoProvisionCards       bool
	StarterBalanceMinCents   int64
	StarterBalanceMaxCents   int64
	RegistrationBalanceCents int64

	MaxRequestAmount  decimal.Decimal
	PaymentRequestTTL time.Duration
	JanitorInterval   time.Duration

	WebhookURL    string
	WebhookSecret string
	KafkaBrokers  []string
	KafkaTopic    string
	EventWorkers  int
	EventBuffer   int
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() (*Config, error) {
	// Try loading .env file (it might not exist in Production, which is fine)
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("ENV", "development"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Currency:      strings.ToUpper(getEnv("CURRENCY", "CAD")),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		KafkaBrokers:  getList("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "payments"),
	}

	var err error
	cfg.AutoProvisionCards, err = getBool("AUTO_PROVISION_CARDS", false)
	collect(err)
	cfg.StarterBalanceMinCents, err = getInt64("STARTER_BALANCE_MIN_CENTS", 5000)
	collect(err)
	cfg.StarterBalanceMaxCents, err = getInt64("STARTER_BALANCE_MAX_CENTS", 50000)
	collect(err)
	cfg.RegistrationBalanceCents, err = getInt64("REGISTRATION_BALANCE_MAX_CENTS", 100000)
	collect(err)
	cfg.MaxRequestAmount, err = getDecimal("MAX_REQUEST_AMOUNT", "9999.99")
	collect(err)
	cfg.PaymentRequestTTL, err = getDuration("PAYMENT_REQUEST_TTL", 2*time.Minute)
	collect(err)
	cfg.JanitorInterval, err = getDuration("JANITOR_INTERVAL", 30*time.Second)
	collect(err)

	workers, err := getInt64("EVENT_WORKERS", 2)
	collect(err)
	cfg.EventWorkers = int(workers)
	buffer, err := getInt64("EVENT_BUFFER", 100)
	collect(err)
	cfg.EventBuffer = int(buffer)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "postgres", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (use postgres, mysql or memory)", c.StorageDriver)
	}
	if c.StarterBalanceMinCents < 0 || c.StarterBalanceMaxCents < c.StarterBalanceMinCents {
		return fmt.Errorf("starter balance range %d..%d is invalid", c.StarterBalanceMinCents, c.StarterBalanceMaxCents)
	}
	if c.RegistrationBalanceCents < 0 {
		return fmt.Errorf("REGISTRATION_BALANCE_MAX_CENTS must not be negative")
	}
	if !c.MaxRequestAmount.IsPositive() {
		return fmt.Errorf("MAX_REQUEST_AMOUNT must be positive")
	}
	if c.PaymentRequestTTL < 0 || c.JanitorInterval <= 0 {
		return fmt.Errorf("PAYMENT_REQUEST_TTL must be >= 0 and JANITOR_INTERVAL > 0")
	}
	if c.EventWorkers < 1 || c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_WORKERS and EVENT_BUFFER must be at least 1")
	}
	return nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.RequireFromString(fallback), fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
