package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"ytfeed/config"
	"ytfeed/feed"
	ythttp "ytfeed/http"
	"ytfeed/prefs"
	"ytfeed/source"
	"ytfeed/source/vimeo"
	"ytfeed/source/youtube"
	"ytfeed/storage"
	"ytfeed/summary"
)

// app holds the components every command needs.
type app struct {
	cfg       *config.Config
	store     *storage.SQLStore
	prefs     *prefs.Store
	client    *ythttp.Client
	pages     *ythttp.Client
	engine    *feed.Engine
	summaries *summary.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dirs := []string{filepath.Dir(cfg.PrefsPath)}
	if cfg.DBDriver == storage.DriverSQLite || cfg.DBDriver == "sqlite3" {
		dirs = append(dirs, filepath.Dir(cfg.DBDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	p, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	httpCfg := ythttp.DefaultConfig()
	httpCfg.Retry = cfg.RetryConfig()
	client := ythttp.New(httpCfg)

	// Channel pages and feeds are fetched with a browser-like session so
	// they are not redirected to the cookie consent screen.
	session, err := ythttp.NewSessionManager(ythttp.DefaultSessionConfig())
	if err != nil {
		client.Close()
		store.Close()
		return nil, err
	}
	pageCfg := ythttp.DefaultConfig()
	pageCfg.Retry = cfg.RetryConfig()
	pages := session.Client(pageCfg)

	registry, err := buildRegistry(ctx, cfg, client, pages)
	if err != nil {
		pages.Close()
		client.Close()
		store.Close()
		return nil, err
	}

	concurrency := cfg.ReloadConcurrency
	if !store.SupportsHighConcurrency() {
		// SQLite serializes writers anyway.
		concurrency = min(concurrency, 2)
	}
	engine := feed.New(store, registry, p,
		feed.WithTTL(cfg.CacheTTL),
		feed.WithRetention(cfg.Retention),
		feed.WithHistoryWindow(cfg.HistoryWindow),
		feed.WithConcurrency(concurrency),
	)

	a := &app{cfg: cfg, store: store, prefs: p, client: client, pages: pages, engine: engine}
	if cfg.SummarizerURL != "" {
		sumCfg := ythttp.DefaultConfig()
		sumCfg.Retry = cfg.RetryConfig()
		sumCfg.Timeout = cfg.SummarizerTimeout
		summarizer, err := summary.NewHTTPSummarizer(ythttp.New(sumCfg), cfg.SummarizerURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.summaries = summary.NewService(store, summarizer)
	}
	return a, nil
}

// buildRegistry creates the platform adapters. YouTube is registered first
// and is the default platform. pages serves public YouTube pages and feeds.
func buildRegistry(ctx context.Context, cfg *config.Config, client, pages *ythttp.Client) (*source.Registry, error) {
	retryCfg := cfg.RetryConfig()
	ytCfg := youtube.Config{
		APIKey:       cfg.YouTubeAPIKey,
		QuotaReserve: cfg.YouTubeQuotaReserve,
		Retention:    cfg.Retention,
		Retry:        &retryCfg,
	}
	if cfg.EnableScrapeFallback {
		ytCfg.Scraper = youtube.NewScraper(pages, "")
	}
	if cfg.EnableFeedListing {
		ytCfg.Feed = youtube.NewFeedLister(pages, "")
	}
	yt, err := youtube.New(ctx, ytCfg)
	if err != nil {
		return nil, err
	}

	adapters := []source.Adapter{yt}
	if cfg.EnableVimeo {
		adapters = append(adapters, vimeo.New(client, vimeo.WithWindow(cfg.Retention, source.MinDuration)))
	}
	return source.NewRegistry(adapters...)
}

func (a *app) Close() {
	for _, c := range []*ythttp.Client{a.client, a.pages} {
		if err := c.Close(); err != nil {
			log.Printf("cli: close http client: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		log.Printf("cli: close store: %v", err)
	}
}
