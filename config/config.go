package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	TelegramToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BotDebug      bool   `mapstructure:"BOT_DEBUG"`
	Env           string `mapstructure:"ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	Timezone      string `mapstructure:"TIMEZONE"`
	MetricsAddr   string `mapstructure:"METRICS_ADDR"`

	// Booking API.
	APIBaseURL       string        `mapstructure:"API_BASE_URL"`
	APITimeout       time.Duration `mapstructure:"API_TIMEOUT"`
	APIRatePerSecond float64       `mapstructure:"API_RATE_PER_SECOND"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	NotificationPollInterval time.Duration `mapstructure:"NOTIFICATION_POLL_INTERVAL"`
	BookingDaysAhead         int           `mapstructure:"BOOKING_DAYS_AHEAD"`

	// Weekly schedule, keyed by weekday identifier ("monday" ... "sunday").
	Availability map[string][]string `mapstructure:"-"`
	ClosedDays   []string            `mapstructure:"-"`
}

// Load reads config.yaml (if present at path or in ./ and ./config) and the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("BOT_DEBUG", false)
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("API_BASE_URL", "")
	v.SetDefault("API_TIMEOUT", 7*time.Second)
	v.SetDefault("API_RATE_PER_SECOND", 5.0)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFICATION_POLL_INTERVAL", 30*time.Second)
	v.SetDefault("BOOKING_DAYS_AHEAD", 14)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	availability, err := loadAvailability(v)
	if err != nil {
		return nil, err
	}
	cfg.Availability = availability
	cfg.ClosedDays = loadClosedDays(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required keys and sane values.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.TelegramToken) == "" {
		problems = append(problems, "TELEGRAM_BOT_TOKEN is required")
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		problems = append(problems, "API_BASE_URL is required")
	}
	if c.APITimeout <= 0 {
		problems = append(problems, "API_TIMEOUT must be positive")
	}
	if c.NotificationPollInterval <= 0 {
		problems = append(problems, "NOTIFICATION_POLL_INTERVAL must be positive")
	}
	if c.BookingDaysAhead <= 0 {
		problems = append(problems, "BOOKING_DAYS_AHEAD must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE %q: %v", c.Timezone, err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the business time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadAvailability(v *viper.Viper) (map[string][]string, error) {
	if raw := strings.TrimSpace(v.GetString("WEEKLY_AVAILABILITY")); raw != "" {
		var out map[string][]string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("WEEKLY_AVAILABILITY: %w", err)
		}
		return out, nil
	}
	return v.GetStringMapStringSlice("availability"), nil
}

func loadClosedDays(v *viper.Viper) []string {
	if raw := strings.TrimSpace(v.GetString("CLOSED_DAYS")); raw != "" {
		var days []string
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				days = append(days, d)
			}
		}
		return days
	}
	return v.GetStringSlice("closed_days")
}
