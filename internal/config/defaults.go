package config

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Browsing: BrowsingConfig{
			Homepage:    "weft://home/",
			UserAgent:   "",
			DefaultZoom: 1.0,
			DevTools:    false,
			Incognito:   false,
		},
		History: HistoryConfig{
			Enabled:             true,
			MaxEntries:          10000,
			RetentionPeriodDays: 365,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
