package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB_URL        string `mapstructure:"DB_URL"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`

	SmsManAPIKey  string        `mapstructure:"SMSMAN_API_KEY"`
	SmsManBaseURL string        `mapstructure:"SMSMAN_BASE_URL"`
	PriceCacheTTL time.Duration `mapstructure:"PRICE_CACHE_TTL"`

	Pay0UserToken string `mapstructure:"PAY0_USER_TOKEN"`
	Pay0BaseURL   string `mapstructure:"PAY0_BASE_URL"`
	ReturnURL     string `mapstructure:"RETURN_URL"`

	MarkupMultiplier float64       `mapstructure:"MARKUP_MULTIPLIER"`
	MinTopUp         float64       `mapstructure:"MIN_TOPUP"`
	MaxTopUp         float64       `mapstructure:"MAX_TOPUP"`
	AcquireTimeout   time.Duration `mapstructure:"ACQUIRE_TIMEOUT"`
	PollTimeout      time.Duration `mapstructure:"POLL_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("SMSMAN_BASE_URL", "https://api.sms-man.com/control")
	v.SetDefault("PRICE_CACHE_TTL", "5m")
	v.SetDefault("PAY0_BASE_URL", "https://pay0.shop/api")
	v.SetDefault("RETURN_URL", "http://localhost:8080/payment-status.html")
	v.SetDefault("MARKUP_MULTIPLIER", 1.70)
	v.SetDefault("MIN_TOPUP", 50)
	v.SetDefault("MAX_TOPUP", 5000)
	v.SetDefault("ACQUIRE_TIMEOUT", "20s")
	v.SetDefault("POLL_TIMEOUT", "15s")

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"DB_URL", "JWT_SECRET", "TELEGRAM_BOT_TOKEN", "ADMIN_CHAT_ID",
		"SMSMAN_API_KEY", "PAY0_USER_TOKEN",
	} {
		v.SetDefault(key, "")
	}
}

// LoadConfig reads the env file at path (if present) and the process environment.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(filepath.Dir(absPath))
	v.SetConfigName(filepath.Base(absPath))
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	if c.DB_URL == "" {
		return errors.New("DB_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MarkupMultiplier < 1 {
		return fmt.Errorf("MARKUP_MULTIPLIER must be >= 1, got %v", c.MarkupMultiplier)
	}
	if c.MinTopUp <= 0 || c.MaxTopUp < c.MinTopUp {
		return fmt.Errorf("invalid top-up bounds [%v, %v]", c.MinTopUp, c.MaxTopUp)
	}
	return nil
}
