package config

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackendURL indicates the generation backend URL is unusable.
	ErrInvalidBackendURL = errors.New("invalid backend URL")

	// ErrInvalidStoreURL indicates the persistence store URL is unusable.
	ErrInvalidStoreURL = errors.New("invalid store URL")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidRateLimit indicates a rate limit value is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidLogLevel indicates the log level string is unknown.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidListenAddr indicates the serve listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// Validate checks the loaded configuration. Returns sentinel errors usable
// with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := validateHTTPURL(c.BackendURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackendURL, err)
	}
	if err := validateHTTPURL(c.StoreURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStoreURL, err)
	}

	if c.RequestTimeoutSec < 1 || c.RequestTimeoutSec > 600 {
		return fmt.Errorf("%w: request_timeout_sec must be between 1 and 600, got %d",
			ErrInvalidTimeout, c.RequestTimeoutSec)
	}
	if c.AutoSaveDebounceMS < 0 {
		return fmt.Errorf("%w: auto_save_debounce_ms cannot be negative, got %d",
			ErrInvalidTimeout, c.AutoSaveDebounceMS)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("%w: rate_limit_rps must be positive, got %g",
			ErrInvalidRateLimit, c.RateLimitRPS)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate_limit_burst must be at least 1, got %d",
			ErrInvalidRateLimit, c.RateLimitBurst)
	}

	if !validLogLevel(c.LogLevel) {
		return fmt.Errorf("%w: %q (want debug, info, warn or error)",
			ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Serve.Addr == "" {
		return fmt.Errorf("%w: serve.addr cannot be empty", ErrInvalidListenAddr)
	}
	if c.Serve.RateLimitRPS <= 0 {
		return fmt.Errorf("%w: serve.rate_limit_rps must be positive, got %g",
			ErrInvalidRateLimit, c.Serve.RateLimitRPS)
	}
	if c.Serve.RateLimitBurst < 1 {
		return fmt.Errorf("%w: serve.rate_limit_burst must be at least 1, got %d",
			ErrInvalidRateLimit, c.Serve.RateLimitBurst)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

func validLogLevel(s string) bool {
	switch s {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
