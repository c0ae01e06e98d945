package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if want := filepath.Join(home, ".config", "ytfeed", "ytfeed.db"); cfg.DBDSN != want {
		t.Errorf("DBDSN = %q, want %q", cfg.DBDSN, want)
	}
	if cfg.CacheTTL != 30*time.Minute || cfg.PollInterval != time.Hour {
		t.Errorf("CacheTTL = %v, PollInterval = %v", cfg.CacheTTL, cfg.PollInterval)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "ytfeed")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"db_driver":"postgres","db_dsn":"postgres://localhost/feed","youtube_api_key":"file-key","reload_concurrency":2}`
	if err := os.WriteFile(filepath.Join(dir, "ytfeed.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YTFEED_YOUTUBE_API_KEY", "env-key")
	t.Setenv("YTFEED_CACHE_TTL", "10m")
	t.Setenv("YTFEED_ENABLE_VIMEO", "false")
	t.Setenv("YTFEED_RELOAD_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.DBDSN != "postgres://localhost/feed" {
		t.Errorf("db = %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.YouTubeAPIKey != "env-key" {
		t.Errorf("YouTubeAPIKey = %q, env should win", cfg.YouTubeAPIKey)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.EnableVimeo {
		t.Error("EnableVimeo should be false")
	}
	if cfg.ReloadConcurrency != 2 {
		t.Errorf("ReloadConcurrency = %d, unparsable env should be ignored", cfg.ReloadConcurrency)
	}
}

func TestLoadWorkingDirFirst(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("ytfeed.json", []byte(`{"listen_addr":":9000"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadBadFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile("ytfeed.json", []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load() should fail on malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres", func(c *Config) { c.DBDriver = "postgres" }, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"empty dsn", func(c *Config) { c.DBDSN = "" }, true},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, true},
		{"negative poll", func(c *Config) { c.PollInterval = -time.Minute }, true},
		{"poll disabled", func(c *Config) { c.PollInterval = 0 }, false},
		{"no workers", func(c *Config) { c.ReloadConcurrency = 0 }, true},
		{"negative reserve", func(c *Config) { c.YouTubeQuotaReserve = -1 }, true},
		{"backoff order", func(c *Config) { c.MaxBackoff = time.Millisecond }, true},
		{"multiplier", func(c *Config) { c.BackoffMultiplier = 1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	rc := cfg.RetryConfig()
	if rc.MaxRetries != 2 || rc.InitialBackoff != cfg.InitialBackoff || rc.Multiplier != 2 {
		t.Errorf("RetryConfig() = %+v", rc)
	}
	if rc.JitterFraction == 0 {
		t.Error("RetryConfig() should keep default jitter")
	}
}
