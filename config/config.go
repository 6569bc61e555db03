package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	AllowedEmailDomain string `env:"ALLOWED_EMAIL_DOMAIN" envDefault:"ndus.edu" validate:"required"`

	OTPPepper          string `env:"OTP_PEPPER,required"  validate:"required,min=16"`
	OTPTTLSeconds      int    `env:"OTP_TTL_SECONDS"      envDefault:"600" validate:"min=60,max=3600"`
	OTPRateMax         int    `env:"OTP_RATE_LIMIT_MAX"   envDefault:"5" validate:"min=1"`
	OTPRateWindowSec   int    `env:"OTP_RATE_LIMIT_WINDOW_SEC" envDefault:"600" validate:"min=60"`
	OTPDebugReturnCode bool   `env:"OTP_DEBUG_RETURN_CODE"`
	OTPDemoBypass      bool   `env:"OTP_DEMO_BYPASS"`

	SessionSecret     string `env:"SESSION_SECRET,required" validate:"required,min=32"`
	SessionTTLSeconds int    `env:"SESSION_TTL_SECONDS"     envDefault:"2592000" validate:"min=3600"`

	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	PurgeCron     string `env:"PURGE_CRON" envDefault:"*/10 * * * *"`
	PurgeGraceSec int    `env:"PURGE_GRACE_SEC" envDefault:"86400" validate:"min=0"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Env == "production" && cfg.OTPDebugReturnCode {
		return nil, fmt.Errorf("OTP_DEBUG_RETURN_CODE must not be set in production")
	}
	if cfg.Env == "production" && cfg.OTPDemoBypass {
		return nil, fmt.Errorf("OTP_DEMO_BYPASS must not be set in production")
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AdminEmailSet returns the allow-list normalized to lowercase for
// case-insensitive membership checks.
func (c *Config) AdminEmailSet() map[string]bool {
	set := make(map[string]bool, len(c.AdminEmails))
	for _, e := range c.AdminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = true
		}
	}
	return set
}
