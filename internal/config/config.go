/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the rewards-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TelegramAPIBaseURL   string `mapstructure:"TELEGRAM_API_BASE_URL"`
	TelegramBotToken     string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	AdminJWTSecret       string `mapstructure:"ADMIN_JWT_SECRET"`

	TaskDailyLimit           int   `mapstructure:"TASK_DAILY_LIMIT"`
	ClaimBaseLimit           int   `mapstructure:"CLAIM_BASE_LIMIT"`
	ReferralsPerBonusBlock   int   `mapstructure:"REFERRALS_PER_BONUS_BLOCK"`
	BonusClaimsPerBlock      int   `mapstructure:"BONUS_CLAIMS_PER_BLOCK"`
	ClaimDelayMinutes        int   `mapstructure:"CLAIM_DELAY_MINUTES"`
	ClaimMinPoints           int64 `mapstructure:"CLAIM_MIN_POINTS"`
	ClaimMaxPoints           int64 `mapstructure:"CLAIM_MAX_POINTS"`
	ReferralPoints           int64 `mapstructure:"REFERRAL_POINTS"`
	WithdrawalMinPoints      int64 `mapstructure:"WITHDRAWAL_MIN_POINTS"`
	WithdrawalMaxPoints      int64 `mapstructure:"WITHDRAWAL_MAX_POINTS"`
	ClaimRateLimitPerMinute  int   `mapstructure:"CLAIM_RATE_LIMIT_PER_MINUTE"`
	CreditRateLimitPerMinute int   `mapstructure:"CREDIT_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "rewards:rate_limit")
	viper.SetDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org")
	viper.SetDefault("TASK_DAILY_LIMIT", 5)
	viper.SetDefault("CLAIM_BASE_LIMIT", 1)
	viper.SetDefault("REFERRALS_PER_BONUS_BLOCK", 5)
	viper.SetDefault("BONUS_CLAIMS_PER_BLOCK", 1)
	viper.SetDefault("CLAIM_DELAY_MINUTES", 15)
	viper.SetDefault("CLAIM_MIN_POINTS", 1)
	viper.SetDefault("CLAIM_MAX_POINTS", 10)
	viper.SetDefault("REFERRAL_POINTS", 20)
	viper.SetDefault("WITHDRAWAL_MIN_POINTS", 100)
	viper.SetDefault("WITHDRAWAL_MAX_POINTS", 100000)
	viper.SetDefault("CLAIM_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("CREDIT_RATE_LIMIT_PER_MINUTE", 30)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "REWARDS_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TELEGRAM_API_BASE_URL")
	_ = viper.BindEnv("TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "REWARDS_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ADMIN_JWT_SECRET")
	_ = viper.BindEnv("TASK_DAILY_LIMIT")
	_ = viper.BindEnv("CLAIM_BASE_LIMIT")
	_ = viper.BindEnv("REFERRALS_PER_BONUS_BLOCK")
	_ = viper.BindEnv("BONUS_CLAIMS_PER_BLOCK")
	_ = viper.BindEnv("CLAIM_DELAY_MINUTES")
	_ = viper.BindEnv("CLAIM_MIN_POINTS")
	_ = viper.BindEnv("CLAIM_MAX_POINTS")
	_ = viper.BindEnv("REFERRAL_POINTS")
	_ = viper.BindEnv("WITHDRAWAL_MIN_POINTS")
	_ = viper.BindEnv("WITHDRAWAL_MAX_POINTS")
	_ = viper.BindEnv("CLAIM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CREDIT_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("REWARDS_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "rewards:rate_limit"
	}

	if config.TaskDailyLimit < 0 {
		log.Printf("level=warn component=config msg=\"negative task daily limit configured; coercing to zero\" limit=%d", config.TaskDailyLimit)
		config.TaskDailyLimit = 0
	}
	if config.ClaimBaseLimit < 0 {
		log.Printf("level=warn component=config msg=\"negative claim base limit configured; coercing to zero\" limit=%d", config.ClaimBaseLimit)
		config.ClaimBaseLimit = 0
	}
	if config.ReferralsPerBonusBlock <= 0 {
		config.ReferralsPerBonusBlock = 5
	}
	if config.BonusClaimsPerBlock < 0 {
		config.BonusClaimsPerBlock = 0
	}
	if config.ClaimDelayMinutes <= 0 {
		config.ClaimDelayMinutes = 15
	}
	if config.ClaimMinPoints <= 0 {
		config.ClaimMinPoints = 1
	}
	if config.ClaimMaxPoints < config.ClaimMinPoints {
		log.Printf("level=warn component=config msg=\"claim max below min; raising to min\" min=%d max=%d", config.ClaimMinPoints, config.ClaimMaxPoints)
		config.ClaimMaxPoints = config.ClaimMinPoints
	}
	if config.ReferralPoints < 0 {
		config.ReferralPoints = 0
	}
	if config.WithdrawalMinPoints < 0 {
		config.WithdrawalMinPoints = 0
	}
	if config.WithdrawalMaxPoints > 0 && config.WithdrawalMaxPoints < config.WithdrawalMinPoints {
		log.Printf("level=warn component=config msg=\"withdrawal max below min; raising to min\" min=%d max=%d", config.WithdrawalMinPoints, config.WithdrawalMaxPoints)
		config.WithdrawalMaxPoints = config.WithdrawalMinPoints
	}
	if config.ClaimRateLimitPerMinute < 0 {
		config.ClaimRateLimitPerMinute = 0
	}
	if config.CreditRateLimitPerMinute < 0 {
		config.CreditRateLimitPerMinute = 0
	}

	return
}
