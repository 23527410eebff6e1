package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultDBName            = "intent.db"
	DefaultReportInterval    = 24 * time.Hour
	DefaultNotificationCap   = 64
	DefaultNotificationTitle = "Intent"
)

// ErrMissingToken is returned by Load when no bot token is configured. The
// returned Config is otherwise complete.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN is required")

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken     string        `toml:"telegram_token"`
	DatabaseURL       string        `toml:"database_url"`
	ReportInterval    time.Duration `toml:"-"`
	ReportHours       int           `toml:"report_interval_hours"`
	NotificationCap   int           `toml:"notification_cap"`
	Timezone          string        `toml:"timezone"`
	NotificationTitle string        `toml:"notification_title"`
	LogDir            string        `toml:"log_dir"`
	Debug             bool          `toml:"debug"`
	MetricsAddr       string        `toml:"metrics_addr"`
}

// Load reads the optional TOML file at path, then applies environment
// variables on top of it. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	envString("TELEGRAM_TOKEN", &cfg.TelegramToken)
	envString("DATABASE_URL", &cfg.DatabaseURL)
	envString("TIMEZONE", &cfg.Timezone)
	envString("NOTIFICATION_TITLE", &cfg.NotificationTitle)
	envString("LOG_DIR", &cfg.LogDir)
	envString("METRICS_ADDR", &cfg.MetricsAddr)
	if err := envInt("REPORT_INTERVAL_HOURS", &cfg.ReportHours); err != nil {
		return cfg, err
	}
	if err := envInt("NOTIFICATION_CAP", &cfg.NotificationCap); err != nil {
		return cfg, err
	}
	if raw := strings.TrimSpace(os.Getenv("DEBUG")); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDBName
	}
	cfg.ReportInterval = time.Duration(cfg.ReportHours) * time.Hour
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if cfg.NotificationCap <= 0 {
		cfg.NotificationCap = DefaultNotificationCap
	}
	if cfg.NotificationTitle == "" {
		cfg.NotificationTitle = DefaultNotificationTitle
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}

	if cfg.TelegramToken == "" {
		return cfg, ErrMissingToken
	}

	return cfg, nil
}

// Location resolves Timezone, defaulting to the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
