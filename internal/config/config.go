// Package config loads application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (MAQUETTE_* plus MAQUETTE_API_TOKEN)
//  2. Config file (~/.maquette/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - Backend: generation service base URL, timeouts, client-side rate limit
//   - Store: persistence service base URL
//   - Serve: local dev server listen address, sqlite path, per-IP rate limit
//   - Telemetry: OTLP trace export (see telemetry.go)
//   - Logging: level, format
//
// Secrets (API tokens) are masked in MarshalJSON and String; configuration
// is validated at load time and rejected before any component starts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// StateDirName is the per-user state directory under $HOME. It holds the
// config file, the identity file, the lock file and the TUI log.
const StateDirName = ".maquette"

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON or the nested struct's marshaller.
type Config struct {
	// Generation backend (spec streaming + UI generation)
	BackendURL string `mapstructure:"backend_url" json:"backend_url"`
	// APIToken authenticates against the backend and the store.
	// SENSITIVE: masked in MarshalJSON.
	APIToken string `mapstructure:"api_token" json:"api_token"`
	// RequestTimeoutSec bounds single-shot backend and store calls.
	// The spec stream is not subject to it; streams are cancelled via context.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	// RateLimitRPS and RateLimitBurst shape outbound backend calls.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Persistence store (artifact CRUD)
	StoreURL string `mapstructure:"store_url" json:"store_url"`

	// Auto-save debounce interval in milliseconds.
	AutoSaveDebounceMS int `mapstructure:"auto_save_debounce_ms" json:"auto_save_debounce_ms"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Serve holds local dev server settings (serve mode only).
	Serve ServeConfig `mapstructure:"serve" json:"serve"`

	// Telemetry holds OTLP trace export settings (see telemetry.go).
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
}

// ServeConfig holds the local dev server settings.
type ServeConfig struct {
	// Addr is the listen address (default: localhost:8787).
	Addr string `mapstructure:"addr" json:"addr"`
	// DBPath is the sqlite database file; empty means
	// ~/.maquette/maquette.db.
	DBPath string `mapstructure:"db_path" json:"db_path"`
	// RateLimitRPS and RateLimitBurst apply per client IP.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// Load reads configuration from defaults, file and environment, then
// validates it. Fail-fast: a bad config never reaches the rest of the app.
func Load() (*Config, error) {
	dir, err := StateDir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{dir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if cfg.Serve.DBPath == "" {
		cfg.Serve.DBPath = filepath.Join(dir, "maquette.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// StateDir returns ~/.maquette, creating it with 0750 if missing.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	dir := filepath.Join(home, StateDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return dir, nil
}

func setDefaults() {
	viper.SetDefault("backend_url", "http://localhost:8787")
	viper.SetDefault("store_url", "http://localhost:8787")
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("rate_limit_rps", 2.0)
	viper.SetDefault("rate_limit_burst", 4)
	viper.SetDefault("auto_save_debounce_ms", 1500)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("serve.addr", "localhost:8787")
	viper.SetDefault("serve.rate_limit_rps", 10.0)
	viper.SetDefault("serve.rate_limit_burst", 20)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "maquette")
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a panic here is a bug, not a runtime condition.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("api_token", "MAQUETTE_API_TOKEN")
	mustBind("backend_url", "MAQUETTE_BACKEND_URL")
	mustBind("store_url", "MAQUETTE_STORE_URL")
	mustBind("log_level", "MAQUETTE_LOG_LEVEL")
	mustBind("serve.addr", "MAQUETTE_SERVE_ADDR")
	mustBind("serve.db_path", "MAQUETTE_DB_PATH")
	mustBind("telemetry.enabled", "MAQUETTE_TELEMETRY")
	mustBind("telemetry.endpoint", "MAQUETTE_OTLP_ENDPOINT")
}

// maskedValue uses full-width blocks so no substring of a real secret can
// survive in the masked form.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 bytes or fewer
// are fully masked; longer ones keep the first and last 2 characters for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Currently: APIToken and
// Telemetry.APIKey (handled by TelemetryConfig.MarshalJSON).
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIToken = maskSecret(a.APIToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String renders the masked form so accidental %v printing never leaks
// secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
