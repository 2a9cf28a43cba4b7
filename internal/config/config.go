package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the billing backend.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DatabaseMaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	DatabaseMaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	DatabaseConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	TxMaxRetries            int           `mapstructure:"TX_MAX_RETRIES"`

	RedisURL             string `mapstructure:"REDIS_URL"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange string `mapstructure:"NOTIFICATION_EXCHANGE"`

	StripeSecretKey     string        `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	WebhookTolerance    time.Duration `mapstructure:"WEBHOOK_TOLERANCE"`
	JWTSecretKey        string        `mapstructure:"JWT_SECRET_KEY"`
	Currency            string        `mapstructure:"CURRENCY"`

	StandardClearingDays   int     `mapstructure:"STANDARD_CLEARING_DAYS"`
	B2BClearingDays        int     `mapstructure:"B2B_CLEARING_DAYS"`
	B2BPlatformFeeRate     float64 `mapstructure:"B2B_PLATFORM_FEE_RATE"`
	AdditionalHoursFeeRate float64 `mapstructure:"ADDITIONAL_HOURS_FEE_RATE"`
	DefaultHoursPerDay     float64 `mapstructure:"DEFAULT_HOURS_PER_DAY"`

	GatewayTimeout   time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	TransferTimeout  time.Duration `mapstructure:"TRANSFER_TIMEOUT"`
	ErrorLogCooldown time.Duration `mapstructure:"ERROR_LOG_COOLDOWN"`

	RetryJobSchedule    string `mapstructure:"RETRY_JOB_SCHEDULE"`
	RetryMaxAttempts    int    `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBatchSize      int    `mapstructure:"RETRY_BATCH_SIZE"`
	ClearingJobSchedule string `mapstructure:"CLEARING_JOB_SCHEDULE"`
}

var keys = []string{
	"SERVER_PORT",
	"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS", "DATABASE_CONN_MAX_LIFETIME", "TX_MAX_RETRIES",
	"REDIS_URL", "RABBITMQ_URL", "NOTIFICATION_EXCHANGE",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "WEBHOOK_TOLERANCE", "JWT_SECRET_KEY", "CURRENCY",
	"STANDARD_CLEARING_DAYS", "B2B_CLEARING_DAYS", "B2B_PLATFORM_FEE_RATE", "ADDITIONAL_HOURS_FEE_RATE", "DEFAULT_HOURS_PER_DAY",
	"GATEWAY_TIMEOUT", "TRANSFER_TIMEOUT", "ERROR_LOG_COOLDOWN",
	"RETRY_JOB_SCHEDULE", "RETRY_MAX_ATTEMPTS", "RETRY_BATCH_SIZE", "CLEARING_JOB_SCHEDULE",
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute)
	viper.SetDefault("TX_MAX_RETRIES", 3)
	viper.SetDefault("NOTIFICATION_EXCHANGE", "order_events")
	viper.SetDefault("WEBHOOK_TOLERANCE", 5*time.Minute)
	viper.SetDefault("CURRENCY", "eur")
	viper.SetDefault("STANDARD_CLEARING_DAYS", 14)
	viper.SetDefault("B2B_CLEARING_DAYS", 7)
	viper.SetDefault("B2B_PLATFORM_FEE_RATE", 0.045)
	viper.SetDefault("ADDITIONAL_HOURS_FEE_RATE", 0.045)
	viper.SetDefault("DEFAULT_HOURS_PER_DAY", 8)
	viper.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)
	viper.SetDefault("TRANSFER_TIMEOUT", 10*time.Second)
	viper.SetDefault("ERROR_LOG_COOLDOWN", 60*time.Second)
	viper.SetDefault("RETRY_JOB_SCHEDULE", "@every 5m")
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	viper.SetDefault("RETRY_BATCH_SIZE", 50)
	viper.SetDefault("CLEARING_JOB_SCHEDULE", "@every 1h")
}

// LoadConfig reads configuration from an optional env file and the environment.
// Environment variables always win over the file.
func LoadConfig(path string) (*Config, error) {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("env")
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("[CONFIG] Config file not found, using environment and defaults: %v", err)
		}
	}

	viper.AutomaticEnv()
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Currency = strings.ToLower(cfg.Currency)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.B2BPlatformFeeRate < 0 || c.B2BPlatformFeeRate >= 1 {
		return fmt.Errorf("B2B_PLATFORM_FEE_RATE must be in [0,1), got %v", c.B2BPlatformFeeRate)
	}
	if c.AdditionalHoursFeeRate < 0 || c.AdditionalHoursFeeRate >= 1 {
		return fmt.Errorf("ADDITIONAL_HOURS_FEE_RATE must be in [0,1), got %v", c.AdditionalHoursFeeRate)
	}
	if c.TxMaxRetries < 1 {
		c.TxMaxRetries = 1
	}
	return nil
}

// ClearingPeriod returns the clearing window for standard and mobile bookings.
func (c *Config) ClearingPeriod() time.Duration {
	return time.Duration(c.StandardClearingDays) * 24 * time.Hour
}

// B2BClearingPeriod returns the clearing window for business bookings.
func (c *Config) B2BClearingPeriod() time.Duration {
	return time.Duration(c.B2BClearingDays) * 24 * time.Hour
}
