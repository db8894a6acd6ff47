package main

import (
	"strings"
	"time"
)

type config struct {
	LogLevel       string
	LogFormat      string
	Port           string
	DBPath         string
	BaseURL        string
	SeedFile       string
	PostmarkToken  string
	FromEmail      string
	AllowedOrigins []string
	CleanupEvery   time.Duration
}

// loadConfig reads PUNCHCARD_* variables through getenv so tests can supply their own.
func loadConfig(getenv func(string) string) config {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := config{
		LogLevel:      get("PUNCHCARD_LOG_LEVEL", "info"),
		LogFormat:     get("PUNCHCARD_LOG_FORMAT", "text"),
		Port:          get("PUNCHCARD_PORT", "8080"),
		DBPath:        get("PUNCHCARD_DB_PATH", "punchcard.db"),
		SeedFile:      get("PUNCHCARD_SEED_FILE", ""),
		PostmarkToken: get("PUNCHCARD_POSTMARK_TOKEN", ""),
		FromEmail:     get("PUNCHCARD_FROM_EMAIL", ""),
		CleanupEvery:  time.Hour,
	}
	cfg.BaseURL = strings.TrimRight(get("PUNCHCARD_BASE_URL", "http://localhost:"+cfg.Port), "/")

	if d, err := time.ParseDuration(get("PUNCHCARD_CLEANUP_INTERVAL", "")); err == nil && d > 0 {
		cfg.CleanupEvery = d
	}

	for _, o := range strings.Split(get("PUNCHCARD_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg
}
