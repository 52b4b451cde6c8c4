/**
 * @description
 * This file manages application configuration for the marketplace-service
 * using Viper. It loads settings from a local `.env` file when one exists
 * and falls back to environment variables, which is how deployed instances
 * are configured.
 *
 * Values that shape money math (commission percent, minimum recharge) are
 * normalized after load so a bad deployment value degrades to a safe number
 * instead of poisoning every calculation.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application, populated by Viper
// from a config file or environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`

	RabbitMQURL       string `mapstructure:"RABBITMQ_URL"`
	PaymentEventQueue string `mapstructure:"PAYMENT_EVENT_QUEUE"`

	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	InternalAPIKey     string `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	CommissionPercent float64 `mapstructure:"COMMISSION_PERCENT"`
	MinRechargeAmount int64   `mapstructure:"MIN_RECHARGE_AMOUNT"`

	BookingRateLimitPerMinute int `mapstructure:"BOOKING_RATE_LIMIT_PER_MINUTE"`
	RatingRateLimitPerMinute  int `mapstructure:"RATING_RATE_LIMIT_PER_MINUTE"`

	BookingPendingExpiryDays int    `mapstructure:"BOOKING_PENDING_EXPIRY_DAYS"`
	BookingRetentionDays     int    `mapstructure:"BOOKING_RETENTION_DAYS"`
	BookingCleanupSchedule   string `mapstructure:"BOOKING_CLEANUP_SCHEDULE"`
}

// LoadConfig reads configuration from a file or environment variables.
// It takes the path to the directory containing the config file.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "workbridge:ratelimit")
	viper.SetDefault("PAYMENT_EVENT_QUEUE", "payment.events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("COMMISSION_PERCENT", 10.0)
	viper.SetDefault("MIN_RECHARGE_AMOUNT", 1000)
	viper.SetDefault("BOOKING_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("RATING_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("BOOKING_PENDING_EXPIRY_DAYS", 3)
	viper.SetDefault("BOOKING_RETENTION_DAYS", 90)
	viper.SetDefault("BOOKING_CLEANUP_SCHEDULE", "0 3 * * *")

	// Explicit bindings so AutomaticEnv picks these up even when no config
	// file is present.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_QUEUE")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("AUTH_ISSUER")
	_ = viper.BindEnv("AUTH_AUDIENCE")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("COMMISSION_PERCENT")
	_ = viper.BindEnv("COMMISSION_PERCENTAGE")
	_ = viper.BindEnv("MIN_RECHARGE_AMOUNT")
	_ = viper.BindEnv("BOOKING_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RATING_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("BOOKING_PENDING_EXPIRY_DAYS")
	_ = viper.BindEnv("BOOKING_RETENTION_DAYS")
	_ = viper.BindEnv("BOOKING_CLEANUP_SCHEDULE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("level=info component=config msg=%q", "no .env file found, relying on environment variables")
			err = nil
		} else {
			return
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Older deployments export COMMISSION_PERCENTAGE; honor it when the
	// canonical key is absent.
	if !viper.IsSet("COMMISSION_PERCENT") && viper.IsSet("COMMISSION_PERCENTAGE") {
		config.CommissionPercent = viper.GetFloat64("COMMISSION_PERCENTAGE")
	}

	config.CORSAllowedOrigins = strings.TrimSpace(config.CORSAllowedOrigins)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)

	if config.CommissionPercent < 0 {
		log.Printf("level=warn component=config msg=%q value=%.2f", "negative COMMISSION_PERCENT coerced to 0", config.CommissionPercent)
		config.CommissionPercent = 0
	}
	if config.CommissionPercent > 100 {
		log.Printf("level=warn component=config msg=%q value=%.2f", "COMMISSION_PERCENT capped at 100", config.CommissionPercent)
		config.CommissionPercent = 100
	}
	if config.MinRechargeAmount < 0 {
		log.Printf("level=warn component=config msg=%q value=%d", "negative MIN_RECHARGE_AMOUNT coerced to 0", config.MinRechargeAmount)
		config.MinRechargeAmount = 0
	}
	if config.BookingRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=%q value=%d", "negative BOOKING_RATE_LIMIT_PER_MINUTE disables the limit", config.BookingRateLimitPerMinute)
		config.BookingRateLimitPerMinute = 0
	}
	if config.RatingRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=%q value=%d", "negative RATING_RATE_LIMIT_PER_MINUTE disables the limit", config.RatingRateLimitPerMinute)
		config.RatingRateLimitPerMinute = 0
	}
	if config.BookingPendingExpiryDays <= 0 {
		log.Printf("level=warn component=config msg=%q value=%d", "BOOKING_PENDING_EXPIRY_DAYS must be positive, using 3", config.BookingPendingExpiryDays)
		config.BookingPendingExpiryDays = 3
	}
	if config.BookingRetentionDays <= 0 {
		log.Printf("level=warn component=config msg=%q value=%d", "BOOKING_RETENTION_DAYS must be positive, using 90", config.BookingRetentionDays)
		config.BookingRetentionDays = 90
	}

	return
}
