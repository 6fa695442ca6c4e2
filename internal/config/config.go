// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"skugen/internal/core/sku"
)

// Config is shared by the server, the worker and skuctl.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	DBMaxConns  int

	RedisURL string
	LockTTL  time.Duration
	LockWait time.Duration

	RabbitMQURL        string
	OutboxExchange     string
	OutboxBatchSize    int
	OutboxPollInterval time.Duration

	Shopify ShopifyConfig
	SKU     SKUConfig

	CatalogWriteConcurrency int
}

// ShopifyConfig holds app credentials and Admin API settings.
type ShopifyConfig struct {
	APIKey         string
	APISecret      string
	APIVersion     string
	CallTimeout    time.Duration
	WriteMetafield bool
	ScriptSrc      string
}

// SKUConfig controls number formatting and allocation limits.
type SKUConfig struct {
	Prefix string

	// AutoProvisionStart seeds a missing shop counter. Nil means a missing
	// counter is a configuration error.
	AutoProvisionStart *int64

	ReserveMax int
}

// Load reads an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),

		RedisURL: os.Getenv("REDIS_URL"),
		LockTTL:  getEnvDuration("LOCK_TTL", 30*time.Second),
		LockWait: getEnvDuration("LOCK_WAIT", 10*time.Second),

		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		OutboxExchange:     getEnv("OUTBOX_EXCHANGE", "skugen.events"),
		OutboxBatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),

		Shopify: ShopifyConfig{
			APIKey:         os.Getenv("SHOPIFY_API_KEY"),
			APISecret:      os.Getenv("SHOPIFY_API_SECRET"),
			APIVersion:     getEnv("SHOPIFY_API_VERSION", "2025-01"),
			CallTimeout:    getEnvDuration("SHOPIFY_CALL_TIMEOUT", 10*time.Second),
			WriteMetafield: getEnvBool("SHOPIFY_WRITE_METAFIELD", false),
			ScriptSrc:      os.Getenv("SHOPIFY_SCRIPT_SRC"),
		},
		SKU: SKUConfig{
			Prefix:     getEnv("SKU_PREFIX", sku.DefaultPrefix),
			ReserveMax: getEnvInt("SKU_RESERVE_MAX", 100),
		},

		CatalogWriteConcurrency: getEnvInt("CATALOG_WRITE_CONCURRENCY", 4),
	}

	if raw := os.Getenv("SKU_AUTO_PROVISION_START"); raw != "" {
		start, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("SKU_AUTO_PROVISION_START must be a non-negative integer, got %q", raw)
		}
		cfg.SKU.AutoProvisionStart = &start
	}

	return cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Shopify.APISecret == "" {
		problems = append(problems, "SHOPIFY_API_SECRET is required")
	}
	if strings.TrimSpace(c.SKU.Prefix) == "" {
		problems = append(problems, "SKU_PREFIX must not be empty")
	}
	if c.SKU.ReserveMax <= 0 {
		problems = append(problems, "SKU_RESERVE_MAX must be positive")
	}
	if c.LockWait <= 0 || c.LockTTL <= 0 {
		problems = append(problems, "LOCK_TTL and LOCK_WAIT must be positive")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
