// Package config provides application configuration loading from environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultSaveDebounce      = 500 * time.Millisecond
	DefaultCurrency          = "USD"
	DefaultReminderDaysAhead = 3
	DefaultOTelEndpoint      = "localhost:4317"
	MaxReminderDaysAhead     = 31
)

// Telemetry exporters accepted by OTEL_EXPORTER.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

var exporters = []string{ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP}

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL       string
	IdentityAPIKey    string
	DataDir           string
	SaveDebounce      time.Duration
	Currency          string
	LogLevel          string
	LogFormat         string
	TelegramBotToken  string
	TelegramChatID    int64
	ReminderDaysAhead int
	GeminiAPIKey      string
	OTelExporter      string
	OTelEndpoint      string

	problems []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		IdentityAPIKey:   os.Getenv("IDENTITY_API_KEY"),
		DataDir:          os.Getenv("MONICLEAR_DATA_DIR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}

	if cfg.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			cfg.problems = append(cfg.problems, "MONICLEAR_DATA_DIR is required when no user config directory exists")
		} else {
			cfg.DataDir = filepath.Join(dir, "moniclear")
		}
	}

	cfg.SaveDebounce = DefaultSaveDebounce
	if v := os.Getenv("SAVE_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			cfg.problems = append(cfg.problems, fmt.Sprintf("SAVE_DEBOUNCE must be a positive duration, got %q", v))
		} else {
			cfg.SaveDebounce = d
		}
	}

	cfg.Currency = DefaultCurrency
	if v := strings.TrimSpace(os.Getenv("CURRENCY")); v != "" {
		cfg.Currency = strings.ToUpper(v)
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			cfg.problems = append(cfg.problems, fmt.Sprintf("TELEGRAM_CHAT_ID must be an integer, got %q", v))
		} else {
			cfg.TelegramChatID = id
		}
	}

	cfg.ReminderDaysAhead = DefaultReminderDaysAhead
	if v := os.Getenv("REMINDER_DAYS_AHEAD"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 || n > MaxReminderDaysAhead {
			cfg.problems = append(cfg.problems,
				fmt.Sprintf("REMINDER_DAYS_AHEAD must be an integer between 0 and %d, got %q", MaxReminderDaysAhead, v))
		} else {
			cfg.ReminderDaysAhead = n
		}
	}

	cfg.OTelExporter = strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER")))
	if cfg.OTelExporter == "" {
		cfg.OTelExporter = ExporterNone
	}
	cfg.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = DefaultOTelEndpoint
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that the present configuration is consistent.
func (c *Config) validate() error {
	errs := slices.Clone(c.problems)

	if money.GetCurrency(c.Currency) == nil {
		errs = append(errs, fmt.Sprintf("CURRENCY %q is not a known ISO 4217 code", c.Currency))
	}

	if (c.TelegramBotToken == "") != (c.TelegramChatID == 0) {
		errs = append(errs, "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	if !slices.Contains(exporters, c.OTelExporter) {
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of %s", strings.Join(exporters, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RequireRemote reports whether signed-in use is configured.
func (c *Config) RequireRemote() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for signed-in use")
	}
	return c.RequireIdentity()
}

// RequireIdentity reports whether the identity provider is configured.
func (c *Config) RequireIdentity() error {
	if c.IdentityAPIKey == "" {
		return errors.New("IDENTITY_API_KEY is required for sign-in")
	}
	return nil
}

// RemindersEnabled reports whether Telegram reminders are configured.
func (c *Config) RemindersEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// LocalStorePath is the SQLite file backing the local store.
func (c *Config) LocalStorePath() string {
	return filepath.Join(c.DataDir, "moniclear.db")
}
