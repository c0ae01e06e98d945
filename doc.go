// Package ytfeed aggregates recent uploads from YouTube and Vimeo channels
// into user-defined topics and tracks which videos have been watched.
//
// Overview
//
// A topic is a titled, colored group of channels. The sync engine (package
// feed) keeps each channel's stored uploads fresh under a time-to-live
// policy and serves the unread view: every topic with its unwatched videos,
// newest first.
//
//   - feed: sync engine, topic management, background poller
//   - source: platform adapter contract; source/youtube and source/vimeo implement it
//   - storage: SQLite or PostgreSQL store for topics, channels, videos and summaries
//   - prefs: JSON preference file (last reload time, language)
//   - summary: cached video summaries from an external service
//   - server: local JSON API with a websocket event stream
//   - config: configuration loading
//
// Quick Start
//
//	store, err := storage.Open(storage.DriverSQLite, "ytfeed.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	yt, err := youtube.New(ctx, youtube.Config{APIKey: key})
//	if err != nil {
//		log.Fatal(err)
//	}
//	registry, err := source.NewRegistry(yt, vimeo.New(ythttp.New(nil)))
//	if err != nil {
//		log.Fatal(err)
//	}
//	p, err := prefs.Open("prefs.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine := feed.New(store, registry, p)
//	videos, err := engine.CreateTopic(ctx, "Science", "@veritasium, vimeo.com/staffpicks")
//
// Configuration
//
// config.Load reads settings from multiple sources:
//
//  1. Environment variables (highest priority)
//  2. Config file (ytfeed.json or ~/.config/ytfeed/ytfeed.json)
//  3. Default values (lowest priority)
//
// Environment variables use the YTFEED_ prefix followed by the upper-cased
// JSON key, for example YTFEED_YOUTUBE_API_KEY or YTFEED_CACHE_TTL.
//
// Error Handling
//
// Checking for sentinel errors:
//
//	if errors.Is(err, ytfeed.ErrHandleNotResolved) {
//		fmt.Println("check the channel handles")
//	}
//
// Extracting wrapped error details:
//
//	var resErr *ytfeed.ResolveError
//	if errors.As(err, &resErr) {
//		fmt.Printf("%s matched no channel\n", resErr.Handle)
//	}
package ytfeed
