package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string
	SeedData    bool

	DB      DBConfig
	Lending LendingConfig
	Auth    AuthConfig
	Notify  NotificationConfig
	SignIn  RateConfig
}

type DBConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	MaxRetries int
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// LendingConfig drives the loan window and fines.
type LendingConfig struct {
	MaxReservationDays int
	FinePrice          decimal.Decimal
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type NotificationConfig struct {
	URL     string
	Timeout time.Duration
}

type RateConfig struct {
	RPS   float64
	Burst int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "program"),
			Password: getEnv("DB_PASSWORD", "test"),
			Name:     getEnv("DB_NAME", "library"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "local_dev_secret"),
		},
		Notify: NotificationConfig{
			URL: getEnv("NOTIFICATION_URL", "http://localhost:8889"),
		},
	}

	var err error
	if cfg.SeedData, err = strconv.ParseBool(getEnv("SEED_DATA", "true")); err != nil {
		return nil, fmt.Errorf("SEED_DATA: %w", err)
	}
	if cfg.DB.MaxRetries, err = strconv.Atoi(getEnv("DB_CONNECT_RETRIES", "10")); err != nil {
		return nil, fmt.Errorf("DB_CONNECT_RETRIES: %w", err)
	}
	if cfg.Lending.MaxReservationDays, err = strconv.Atoi(getEnv("MAX_RESERVATION_DAYS", "10")); err != nil {
		return nil, fmt.Errorf("MAX_RESERVATION_DAYS: %w", err)
	}
	if cfg.Lending.MaxReservationDays < 1 {
		return nil, fmt.Errorf("MAX_RESERVATION_DAYS must be positive, got %d", cfg.Lending.MaxReservationDays)
	}
	if cfg.Lending.FinePrice, err = decimal.NewFromString(getEnv("FINE_PRICE", "5.00")); err != nil {
		return nil, fmt.Errorf("FINE_PRICE: %w", err)
	}
	if cfg.Lending.FinePrice.IsNegative() {
		return nil, fmt.Errorf("FINE_PRICE must not be negative, got %s", cfg.Lending.FinePrice)
	}
	if cfg.Auth.TokenTTL, err = time.ParseDuration(getEnv("JWT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("JWT_TTL: %w", err)
	}
	if cfg.Notify.Timeout, err = time.ParseDuration(getEnv("NOTIFICATION_TIMEOUT", "5s")); err != nil {
		return nil, fmt.Errorf("NOTIFICATION_TIMEOUT: %w", err)
	}
	if cfg.SignIn.RPS, err = strconv.ParseFloat(getEnv("SIGNIN_RPS", "1"), 64); err != nil {
		return nil, fmt.Errorf("SIGNIN_RPS: %w", err)
	}
	if cfg.SignIn.Burst, err = strconv.Atoi(getEnv("SIGNIN_BURST", "5")); err != nil {
		return nil, fmt.Errorf("SIGNIN_BURST: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
