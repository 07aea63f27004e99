package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime knob of the monitor. Loaded once at startup
// and immutable afterwards.
type Config struct {
	MoodleURL      string `validate:"required,url"`
	MoodleToken    string `validate:"required"`
	PollInterval   time.Duration
	OnlineWindow   time.Duration
	RequestTimeout time.Duration

	DatabaseDSN string `validate:"required"`
	TablePrefix string

	SpreadsheetID   string `validate:"required"`
	SheetName       string `validate:"required"`
	CredentialsFile string `validate:"required"`

	// MetricsAddr is the metrics/health listen address; empty disables the
	// listener.
	MetricsAddr string
}

// Load reads configuration from environment variables (PRESENCE_ prefix)
// and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRESENCE")
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("moodle.url", "http://localhost")
	v.SetDefault("poll.interval", "2m")
	v.SetDefault("online.window", "5m")
	v.SetDefault("request.timeout", "30s")
	v.SetDefault("table.prefix", "mdl_")
	v.SetDefault("credentials.file", "serviceAccount.json")
	v.SetDefault("metrics.addr", ":9108")

	interval, err := parseDuration(v, "poll.interval")
	if err != nil {
		return Config{}, err
	}
	window, err := parseDuration(v, "online.window")
	if err != nil {
		return Config{}, err
	}
	timeout, err := parseDuration(v, "request.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		MoodleURL:       v.GetString("moodle.url"),
		MoodleToken:     v.GetString("moodle.token"),
		PollInterval:    interval,
		OnlineWindow:    window,
		RequestTimeout:  timeout,
		DatabaseDSN:     v.GetString("database.dsn"),
		TablePrefix:     v.GetString("table.prefix"),
		SpreadsheetID:   v.GetString("spreadsheet.id"),
		SheetName:       v.GetString("sheet.name"),
		CredentialsFile: v.GetString("credentials.file"),
		MetricsAddr:     v.GetString("metrics.addr"),
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}
