package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Target.URL); err != nil {
		return fmt.Errorf("target.url: %w", err)
	}
	if cfg.Target.Origin != "" {
		if err := ValidateURL(cfg.Target.Origin); err != nil {
			return fmt.Errorf("target.origin: %w", err)
		}
	}
	if cfg.Target.ProductSelector == "" {
		return fmt.Errorf("target.product_selector must not be empty")
	}

	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.ContentTimeout < 0 {
		return fmt.Errorf("browser.content_timeout must be >= 0")
	}
	if cfg.Browser.ViewportWidth < 0 || cfg.Browser.ViewportHeight < 0 {
		return fmt.Errorf("browser viewport must be >= 0, got %dx%d", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}

	if cfg.Scroll.MaxIterations < 1 {
		return fmt.Errorf("scroll.max_iterations must be >= 1, got %d", cfg.Scroll.MaxIterations)
	}
	if cfg.Scroll.StableRounds < 1 {
		return fmt.Errorf("scroll.stable_rounds must be >= 1, got %d", cfg.Scroll.StableRounds)
	}
	if cfg.Scroll.SettleDelay < 0 {
		return fmt.Errorf("scroll.settle_delay must be >= 0")
	}

	validFields := map[string]bool{
		FieldLink: true, FieldName: true, FieldImage: true,
		FieldPrice: true, FieldContract: true, FieldFlag: true,
	}
	for field, rules := range cfg.Extract.Fields {
		if !validFields[field] {
			return fmt.Errorf("extract.fields: unknown field %q (valid: link, name, image, price, contract, flag)", field)
		}
		for i, rule := range rules {
			if rule.Selector == "" && rule.Attribute == "" {
				return fmt.Errorf("extract.fields.%s[%d]: selector or attribute is required", field, i)
			}
			if rule.Type != "" && rule.Type != "css" && rule.Type != "xpath" {
				return fmt.Errorf("extract.fields.%s[%d]: type must be 'css' or 'xpath', got %q", field, i, rule.Type)
			}
			if rule.Transform != "" && rule.Transform != TransformSlugTitle {
				return fmt.Errorf("extract.fields.%s[%d]: unknown transform %q", field, i, rule.Transform)
			}
			if rule.Format != "" && strings.Count(rule.Format, "%s") != 1 {
				return fmt.Errorf("extract.fields.%s[%d]: format must contain exactly one %%s, got %q", field, i, rule.Format)
			}
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Backoff < 0 {
		return fmt.Errorf("retry.backoff must be >= 0")
	}

	validDrivers := map[string]bool{
		"postgres": true, "pgx": true, "sqlite": true,
	}
	if !validDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("storage.driver %q is not supported (valid: postgres, pgx, sqlite)", cfg.Storage.Driver)
	}
	if cfg.Storage.MaxOpenConns < 0 {
		return fmt.Errorf("storage.max_open_conns must be >= 0, got %d", cfg.Storage.MaxOpenConns)
	}

	if cfg.Schedule.LockRedisURL != "" && cfg.Schedule.LockTTL <= 0 {
		return fmt.Errorf("schedule.lock_ttl must be > 0 when a lock is configured")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateStorage checks that a DSN is present. Commands that never touch the
// store skip it.
func ValidateStorage(cfg *Config) error {
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required (or set DATABASE_URL)")
	}
	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
