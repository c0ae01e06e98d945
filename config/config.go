// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytfeed/internal/retry"
)

// Config holds all application configuration for the feed aggregator.
type Config struct {
	// DBDriver selects the store backend: "sqlite" (default) or "postgres".
	DBDriver string `json:"db_driver"`
	// DBDSN is the SQLite file path or PostgreSQL connection string.
	DBDSN string `json:"db_dsn"`
	// PrefsPath is the preferences file holding the last reload time and language.
	PrefsPath string `json:"prefs_path"`

	// YouTubeAPIKey is the YouTube Data API v3 key. Required.
	YouTubeAPIKey string `json:"youtube_api_key"`
	// YouTubeQuotaReserve is the number of quota units left unused each day.
	YouTubeQuotaReserve int `json:"youtube_quota_reserve"`
	// EnableVimeo registers the Vimeo adapter.
	EnableVimeo bool `json:"enable_vimeo"`
	// EnableScrapeFallback resolves YouTube handles from channel pages when the API is unavailable.
	EnableScrapeFallback bool `json:"enable_scrape_fallback"`
	// EnableFeedListing lists uploads from channel feeds to save API quota.
	EnableFeedListing bool `json:"enable_feed_listing"`

	// CacheTTL is how long a channel's stored videos are served without refetching.
	CacheTTL time.Duration `json:"cache_ttl"`
	// Retention is the age after which videos are purged.
	Retention time.Duration `json:"retention"`
	// HistoryWindow bounds the watched history listing.
	HistoryWindow time.Duration `json:"history_window"`
	// PollInterval is the background reload interval (0 disables the poller).
	PollInterval time.Duration `json:"poll_interval"`
	// ReloadConcurrency is the number of channels refreshed in parallel during a reload.
	ReloadConcurrency int `json:"reload_concurrency"`

	// ListenAddr is the address of the local API.
	ListenAddr string `json:"listen_addr"`
	// APITokenHash is a bcrypt hash of the bearer token required by the API (empty = no auth).
	APITokenHash string `json:"api_token_hash"`

	// SummarizerURL is the summarization service endpoint (empty disables summaries).
	SummarizerURL string `json:"summarizer_url"`
	// SummarizerTimeout bounds a single summarization request.
	SummarizerTimeout time.Duration `json:"summarizer_timeout"`

	// MaxRetries is the maximum number of retries for failed operations
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1)
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	dir := configDir()
	return &Config{
		DBDriver:             "sqlite",
		DBDSN:                filepath.Join(dir, "ytfeed.db"),
		PrefsPath:            filepath.Join(dir, "prefs.json"),
		EnableVimeo:          true,
		EnableScrapeFallback: true,
		EnableFeedListing:    true,
		CacheTTL:             30 * time.Minute,
		Retention:            7 * 24 * time.Hour,
		HistoryWindow:        3 * 24 * time.Hour,
		PollInterval:         60 * time.Minute,
		ReloadConcurrency:    4,
		ListenAddr:           "127.0.0.1:8080",
		SummarizerTimeout:    2 * time.Minute,
		MaxRetries:           5,
		InitialBackoff:       1 * time.Second,
		MaxBackoff:           30 * time.Second,
		BackoffMultiplier:    2.0,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "ytfeed")
}

// loadFromFile attempts to load config from ytfeed.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytfeed.json",
		filepath.Join(configDir(), "ytfeed.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	envString("YTFEED_DB_DRIVER", &c.DBDriver)
	envString("YTFEED_DB_DSN", &c.DBDSN)
	envString("YTFEED_PREFS_PATH", &c.PrefsPath)
	envString("YTFEED_YOUTUBE_API_KEY", &c.YouTubeAPIKey)
	envInt("YTFEED_YOUTUBE_QUOTA_RESERVE", &c.YouTubeQuotaReserve)
	envBool("YTFEED_ENABLE_VIMEO", &c.EnableVimeo)
	envBool("YTFEED_ENABLE_SCRAPE_FALLBACK", &c.EnableScrapeFallback)
	envBool("YTFEED_ENABLE_FEED_LISTING", &c.EnableFeedListing)
	envDuration("YTFEED_CACHE_TTL", &c.CacheTTL)
	envDuration("YTFEED_RETENTION", &c.Retention)
	envDuration("YTFEED_HISTORY_WINDOW", &c.HistoryWindow)
	envDuration("YTFEED_POLL_INTERVAL", &c.PollInterval)
	envInt("YTFEED_RELOAD_CONCURRENCY", &c.ReloadConcurrency)
	envString("YTFEED_LISTEN_ADDR", &c.ListenAddr)
	envString("YTFEED_API_TOKEN_HASH", &c.APITokenHash)
	envString("YTFEED_SUMMARIZER_URL", &c.SummarizerURL)
	envDuration("YTFEED_SUMMARIZER_TIMEOUT", &c.SummarizerTimeout)
	envInt("YTFEED_MAX_RETRIES", &c.MaxRetries)
	envDuration("YTFEED_INITIAL_BACKOFF", &c.InitialBackoff)
	envDuration("YTFEED_MAX_BACKOFF", &c.MaxBackoff)
	if v := os.Getenv("YTFEED_BACKOFF_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BackoffMultiplier = f
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("db_driver must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required")
	}
	if c.PrefsPath == "" {
		return fmt.Errorf("prefs_path is required")
	}
	if c.YouTubeQuotaReserve < 0 {
		return fmt.Errorf("youtube_quota_reserve must be non-negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history_window must be positive")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be non-negative")
	}
	if c.ReloadConcurrency < 1 {
		return fmt.Errorf("reload_concurrency must be at least 1")
	}
	if c.SummarizerTimeout <= 0 {
		return fmt.Errorf("summarizer_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

// RetryConfig returns the retry settings shared by the HTTP client and the adapters.
func (c *Config) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	cfg.InitialBackoff = c.InitialBackoff
	cfg.MaxBackoff = c.MaxBackoff
	cfg.Multiplier = c.BackoffMultiplier
	return cfg
}
