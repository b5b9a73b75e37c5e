package config

import (
	"fmt"
	"net/url"
)

var validLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

var validFormats = map[string]struct{}{
	"console": {}, "json": {},
}

// Validate checks a loaded configuration for values the rest of the program
// cannot work with. It is called after defaults and derived fields are
// applied, so every field is expected to be populated.
func Validate(cfg *Config) error {
	if cfg.Browsing.DefaultZoom <= 0 {
		return fmt.Errorf("browsing.default_zoom must be positive, got %v", cfg.Browsing.DefaultZoom)
	}
	if cfg.Browsing.Homepage != "" {
		u, err := url.Parse(cfg.Browsing.Homepage)
		if err != nil {
			return fmt.Errorf("browsing.homepage is not a valid URL: %w", err)
		}
		if u.Scheme == "" {
			return fmt.Errorf("browsing.homepage %q has no scheme", cfg.Browsing.Homepage)
		}
	}
	if _, ok := validLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", cfg.Logging.Level)
	}
	if _, ok := validFormats[cfg.Logging.Format]; !ok {
		return fmt.Errorf("logging.format %q is not one of console, json", cfg.Logging.Format)
	}
	if cfg.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative")
	}
	if cfg.History.RetentionPeriodDays < 0 {
		return fmt.Errorf("history.retention_period_days must not be negative")
	}
	return nil
}
