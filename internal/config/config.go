package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"APP_ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DB_DSN"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Timezone    string `mapstructure:"TIMEZONE"`

	ExpirySweepInterval   time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	AutoCompleteInterval  time.Duration `mapstructure:"AUTO_COMPLETE_INTERVAL"`
	AdvanceNoticeInterval time.Duration `mapstructure:"ADVANCE_NOTICE_INTERVAL"`
	SweepTimeout          time.Duration `mapstructure:"SWEEP_TIMEOUT"`

	RateLimitPerMinute         int `mapstructure:"RATE_LIMIT_PER_MIN"`
	RateLimitBurst             int `mapstructure:"RATE_LIMIT_BURST"`
	BusinessRateLimitPerMinute int `mapstructure:"BUSINESS_RATE_LIMIT_PER_MIN"`
	BusinessRateLimitBurst     int `mapstructure:"BUSINESS_RATE_LIMIT_BURST"`

	EmailProvider     string        `mapstructure:"NOTIF_EMAIL_PROVIDER"`
	EmailWebhookURL   string        `mapstructure:"NOTIF_EMAIL_WEBHOOK_URL"`
	EmailWebhookToken string        `mapstructure:"NOTIF_EMAIL_WEBHOOK_TOKEN"`
	SMSProvider       string        `mapstructure:"NOTIF_SMS_PROVIDER"`
	SMSWebhookURL     string        `mapstructure:"NOTIF_SMS_WEBHOOK_URL"`
	SMSWebhookToken   string        `mapstructure:"NOTIF_SMS_WEBHOOK_TOKEN"`
	PushProvider      string        `mapstructure:"NOTIF_PUSH_PROVIDER"`
	PushWebhookURL    string        `mapstructure:"NOTIF_PUSH_WEBHOOK_URL"`
	PushWebhookToken  string        `mapstructure:"NOTIF_PUSH_WEBHOOK_TOKEN"`
	LedgerTTL         time.Duration `mapstructure:"NOTIF_LEDGER_TTL"`
	PublicBaseURL     string        `mapstructure:"PUBLIC_BASE_URL"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

var defaults = map[string]interface{}{
	"APP_ENV":   "dev",
	"PORT":      "8080",
	"LOG_LEVEL": "info",
	"TIMEZONE":  "America/Sao_Paulo",

	"EXPIRY_SWEEP_INTERVAL":   "2m",
	"AUTO_COMPLETE_INTERVAL":  "30s",
	"ADVANCE_NOTICE_INTERVAL": "5s",
	"SWEEP_TIMEOUT":           "20s",

	"RATE_LIMIT_PER_MIN":          120,
	"RATE_LIMIT_BURST":            30,
	"BUSINESS_RATE_LIMIT_PER_MIN": 600,
	"BUSINESS_RATE_LIMIT_BURST":   120,

	"NOTIF_EMAIL_PROVIDER": "log",
	"NOTIF_SMS_PROVIDER":   "log",
	"NOTIF_PUSH_PROVIDER":  "log",
	"NOTIF_LEDGER_TTL":     "12h",

	"OTEL_EXPORTER_OTLP_INSECURE": true,
}

// Load reads an optional .env file in the working directory, then the environment.
func Load() (Config, error) {
	return load(".env")
}

func load(file string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// AutomaticEnv only covers keys viper already knows; bind the ones without defaults.
	for _, key := range []string{
		"DB_DSN", "PUBLIC_BASE_URL", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"NOTIF_EMAIL_WEBHOOK_URL", "NOTIF_EMAIL_WEBHOOK_TOKEN",
		"NOTIF_SMS_WEBHOOK_URL", "NOTIF_SMS_WEBHOOK_TOKEN",
		"NOTIF_PUSH_WEBHOOK_URL", "NOTIF_PUSH_WEBHOOK_TOKEN",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, d := range map[string]time.Duration{
		"EXPIRY_SWEEP_INTERVAL":   c.ExpirySweepInterval,
		"AUTO_COMPLETE_INTERVAL":  c.AutoCompleteInterval,
		"ADVANCE_NOTICE_INTERVAL": c.AdvanceNoticeInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves TIMEZONE. Load has already checked that it parses.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
