// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides the Redis/asynq settings shared by the change-feed
// dispatcher and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ChangefeedConfig tunes how pending document changes are claimed.
type ChangefeedConfig interface {
	GetChangefeedPollInterval() time.Duration
	GetChangefeedBatchSize() int
	GetChangefeedMaxRetry() int
}

// TelegramConfig provides settings for the admin alert channel.
type TelegramConfig interface {
	GetTelegramBotToken() string
	GetTelegramChatID() string
	IsTelegramEnabled() bool
}

// TrackingConfig provides settings for the conversions API client.
type TrackingConfig interface {
	GetMetaPixelID() string
	GetMetaAccessToken() string
	GetMetaTestEventCode() string
	GetMetaAPIVersion() string
	GetTrackingSourceURL() string
	GetTrackingCurrency() string
	IsTrackingEnabled() bool
}

// ScoringConfig provides the knobs of the routing and scoring rules.
type ScoringConfig interface {
	GetScoreCloseWeight() float64
	GetLoyaltyLookback() int
	GetInventoryFreshnessWindow() time.Duration
	GetInventorySweepSpec() string
}

// PhoneConfig provides the default region for phone number parsing.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	WorkerMetricsAddr        string
	DatabaseURL              string
	CORSAllowAll             bool
	CORSOrigins              []string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	ChangefeedPollInterval   time.Duration
	ChangefeedBatchSize      int
	ChangefeedMaxRetry       int
	TelegramBotToken         string
	TelegramChatID           string
	MetaPixelID              string
	MetaAccessToken          string
	MetaTestEventCode        string
	MetaAPIVersion           string
	TrackingSourceURL        string
	TrackingCurrency         string
	PhoneDefaultRegion       string
	ScoreCloseWeight         float64
	LoyaltyLookback          int
	InventoryFreshnessWindow time.Duration
	InventorySweepSpec       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// GetWorkerMetricsAddr is where the worker exposes /metrics.
func (c *Config) GetWorkerMetricsAddr() string { return c.WorkerMetricsAddr }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ChangefeedConfig implementation
func (c *Config) GetChangefeedPollInterval() time.Duration { return c.ChangefeedPollInterval }
func (c *Config) GetChangefeedBatchSize() int              { return c.ChangefeedBatchSize }
func (c *Config) GetChangefeedMaxRetry() int               { return c.ChangefeedMaxRetry }

// TelegramConfig implementation
func (c *Config) GetTelegramBotToken() string { return c.TelegramBotToken }
func (c *Config) GetTelegramChatID() string   { return c.TelegramChatID }
func (c *Config) IsTelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// TrackingConfig implementation
func (c *Config) GetMetaPixelID() string       { return c.MetaPixelID }
func (c *Config) GetMetaAccessToken() string   { return c.MetaAccessToken }
func (c *Config) GetMetaTestEventCode() string { return c.MetaTestEventCode }
func (c *Config) GetMetaAPIVersion() string    { return c.MetaAPIVersion }
func (c *Config) GetTrackingSourceURL() string { return c.TrackingSourceURL }
func (c *Config) GetTrackingCurrency() string  { return c.TrackingCurrency }
func (c *Config) IsTrackingEnabled() bool {
	return c.MetaPixelID != "" && c.MetaAccessToken != ""
}

// ScoringConfig implementation
func (c *Config) GetScoreCloseWeight() float64               { return c.ScoreCloseWeight }
func (c *Config) GetLoyaltyLookback() int                    { return c.LoyaltyLookback }
func (c *Config) GetInventoryFreshnessWindow() time.Duration { return c.InventoryFreshnessWindow }
func (c *Config) GetInventorySweepSpec() string              { return c.InventorySweepSpec }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		WorkerMetricsAddr:        getEnv("WORKER_METRICS_ADDR", ":9091"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "changefeed"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ChangefeedPollInterval:   mustDuration(getEnv("CHANGEFEED_POLL_INTERVAL", "1s")),
		ChangefeedBatchSize:      mustInt(getEnv("CHANGEFEED_BATCH_SIZE", "50")),
		ChangefeedMaxRetry:       mustInt(getEnv("CHANGEFEED_MAX_RETRY", "10")),
		TelegramBotToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:           getEnv("TELEGRAM_CHAT_ID", ""),
		MetaPixelID:              getEnv("META_PIXEL_ID", ""),
		MetaAccessToken:          getEnv("META_ACCESS_TOKEN", ""),
		MetaTestEventCode:        getEnv("META_TEST_EVENT_CODE", ""),
		MetaAPIVersion:           getEnv("META_API_VERSION", "v19.0"),
		TrackingSourceURL:        getEnv("TRACKING_SOURCE_URL", ""),
		TrackingCurrency:         getEnv("TRACKING_CURRENCY", "MXN"),
		PhoneDefaultRegion:       getEnv("PHONE_DEFAULT_REGION", "MX"),
		ScoreCloseWeight:         mustFloat(getEnv("SCORE_CLOSE_WEIGHT", "3")),
		LoyaltyLookback:          mustInt(getEnv("LOYALTY_LOOKBACK", "5")),
		InventoryFreshnessWindow: mustDuration(getEnv("INVENTORY_FRESHNESS_WINDOW", "720h")),
		InventorySweepSpec:       getEnv("INVENTORY_SWEEP_SPEC", "@daily"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ScoreCloseWeight <= 0 {
		return nil, fmt.Errorf("SCORE_CLOSE_WEIGHT must be a positive number")
	}
	if cfg.LoyaltyLookback < 0 {
		return nil, fmt.Errorf("LOYALTY_LOOKBACK cannot be negative")
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
