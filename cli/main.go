package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"ytfeed/config"
	"ytfeed/feed"
	"ytfeed/server"
	"ytfeed/storage"
	"ytfeed/summary"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		cmdServe(args)
	case "reload":
		cmdReload(args)
	case "topics":
		cmdTopics(args)
	case "channels":
		cmdChannels(args)
	case "add":
		cmdAdd(args)
	case "edit":
		cmdEdit(args)
	case "delete":
		cmdDelete(args)
	case "order":
		cmdOrder(args)
	case "watched":
		cmdWatched(args)
	case "history":
		cmdHistory(args)
	case "cleanup":
		cmdCleanup(args)
	case "summary":
		cmdSummary(args)
	case "hash-token":
		cmdHashToken(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytfeed - topic-grouped feed of recent YouTube and Vimeo uploads

Usage:
  ytfeed serve                          Run the local API and background reloads
  ytfeed reload                         Refresh every channel and show unread counts
  ytfeed topics                         List unread videos per topic
  ytfeed channels                       List topics with their channels
  ytfeed add -title <t> <handles>       Create a topic from comma-separated handles
  ytfeed edit <topic-id> <handles>      Replace a topic's channels
  ytfeed delete <topic-id>...           Delete topics
  ytfeed order <topic-id>...            Reorder topics (first id is shown first)
  ytfeed watched <video-id>            Mark a video watched
  ytfeed history                        List recently watched videos
  ytfeed cleanup                        Delete videos older than the retention window
  ytfeed summary [flags] <video-id>     Summarize a video
  ytfeed hash-token <token>             Print the bcrypt hash for api_token_hash
  ytfeed help                           Show this help message

Examples:
  ytfeed add -title Science "@veritasium, @kurzgesagt, vimeo.com/staffpicks"
  ytfeed edit 3 "@veritasium"
  ytfeed summary -lang ru -html dQw4w9WgXcQ

For help on specific command: ytfeed <command> -h
`)
}

func loadApp(ctx context.Context) *app {
	cfg, err := config.Load()
	if err != nil {
		die("Error loading config: %v", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		die("Error: %v", err)
	}
	return a
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides listen_addr)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := loadApp(ctx)
	defer a.Close()

	listen := a.cfg.ListenAddr
	if *addr != "" {
		listen = *addr
	}

	opts := []server.Option{server.WithTokenHash(a.cfg.APITokenHash)}
	if a.summaries != nil {
		opts = append(opts, server.WithSummaries(a.summaries))
	}
	srv := server.New(a.engine, a.prefs, opts...)

	if a.cfg.PollInterval > 0 {
		poller := feed.NewPoller(a.engine, a.cfg.PollInterval, func([]feed.TopicView) {
			srv.Hub().Publish(server.Event{Type: server.EventReloaded})
		})
		poller.Start()
		defer poller.Stop()
	}

	if err := srv.ListenAndServe(ctx, listen); err != nil {
		die("Error: %v", err)
	}
}

func cmdReload(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	a := loadApp(ctx)
	defer a.Close()

	start := time.Now()
	topics, err := a.engine.ReloadAllTopics(ctx)
	if err != nil {
		die("Error reloading: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tUNREAD")
	for _, t := range topics {
		fmt.Fprintf(w, "%d\t%s\t%d\n", t.ID, t.Title, len(t.Videos))
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "\nReloaded in %s\n", time.Since(start).Round(time.Millisecond))
}

func cmdTopics(args []string) {
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	topics, err := a.engine.LoadAllTopics(ctx)
	if err != nil {
		die("Error: %v", err)
	}
	if len(topics) == 0 {
		fmt.Println("Nothing unread.")
		return
	}
	for _, t := range topics {
		fmt.Printf("%s (%d)\n", t.Title, len(t.Videos))
		printVideos(t.Videos)
		fmt.Println()
	}
}

func cmdChannels(args []string) {
	fs := flag.NewFlagSet("channels", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	topics, err := a.engine.GetAllTopics(ctx)
	if err != nil {
		die("Error: %v", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tORDER\tCHANNELS")
	for _, t := range topics {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", t.ID, t.Title, t.Order, strings.Join(t.Handles, ", "))
	}
	w.Flush()
}

func cmdAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Topic title")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytfeed add -title <title> <handles>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if *title == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	videos, err := a.engine.CreateTopic(ctx, *title, strings.Join(fs.Args(), ","))
	if err != nil {
		die("Error creating topic: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Created %q with %d videos\n", *title, len(videos))
	printVideos(videos)
}

func cmdEdit(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		die("Usage: ytfeed edit <topic-id> <handles>")
	}
	id := parseID(fs.Arg(0))

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	dropped, err := a.engine.UpdateTopic(ctx, id, strings.Join(fs.Args()[1:], ","))
	if err != nil {
		die("Error updating topic: %v", err)
	}
	for _, h := range dropped {
		fmt.Fprintf(os.Stderr, "Warning: %s could not be resolved and was dropped\n", h)
	}
	fmt.Fprintf(os.Stderr, "Updated topic %d\n", id)
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		die("Usage: ytfeed delete <topic-id>...")
	}

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	if err := a.engine.DeleteTopics(ctx, topicsFromArgs(fs.Args())); err != nil {
		die("Error deleting topics: %v", err)
	}
}

func cmdOrder(args []string) {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		die("Usage: ytfeed order <topic-id>...")
	}

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	if err := a.engine.UpdateTopicsOrder(ctx, topicsFromArgs(fs.Args()), nil); err != nil {
		die("Error reordering topics: %v", err)
	}
}

func cmdWatched(args []string) {
	fs := flag.NewFlagSet("watched", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		die("Usage: ytfeed watched <video-id>")
	}

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	if err := a.engine.MarkVideoWatched(ctx, storage.Video{ID: fs.Arg(0), Watched: true}); err != nil {
		die("Error: %v", err)
	}
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	videos, err := a.engine.WatchedHistory(ctx)
	if err != nil {
		die("Error: %v", err)
	}
	if len(videos) == 0 {
		fmt.Println("No watched videos.")
		return
	}
	printVideos(videos)
}

func cmdCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()

	n, err := a.engine.DeleteOldVideos(ctx)
	if err != nil {
		die("Error: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Deleted %d videos\n", n)
}

func cmdSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	lang := fs.String("lang", "", "Summary language (default: preferred language)")
	html := fs.Bool("html", false, "Render the summary as HTML")
	fs.Parse(args)
	if fs.NArg() != 1 {
		die("Usage: ytfeed summary [flags] <video-id>")
	}

	ctx := context.Background()
	a := loadApp(ctx)
	defer a.Close()
	if a.summaries == nil {
		die("Error: summarizer_url is not configured")
	}

	video, err := a.engine.GetVideo(ctx, fs.Arg(0))
	if err != nil {
		die("Error: %v", err)
	}
	if *lang == "" {
		current, err := a.prefs.Language(ctx)
		if err != nil {
			die("Error: %v", err)
		}
		*lang = string(current)
	}

	fmt.Fprintf(os.Stderr, "Summarizing %s...\n", video.Title)
	sum, err := a.summaries.Summarize(ctx, video, *lang)
	if err != nil {
		die("Error: %v", err)
	}
	text := sum.Text
	if *html {
		if text, err = summary.RenderHTML(sum.Text); err != nil {
			die("Error: %v", err)
		}
	}
	fmt.Println(text)
}

func cmdHashToken(args []string) {
	if len(args) != 1 {
		die("Usage: ytfeed hash-token <token>")
	}
	hash, err := server.HashToken(args[0])
	if err != nil {
		die("Error: %v", err)
	}
	fmt.Println(hash)
}

func printVideos(videos []storage.Video) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tTITLE\tDURATION\tPUBLISHED")
	for _, v := range videos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			v.ID,
			truncate(v.Title, 50),
			formatDuration(v.Duration),
			v.PublishedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}

func topicsFromArgs(args []string) []storage.Topic {
	topics := make([]storage.Topic, 0, len(args))
	for i, arg := range args {
		topics = append(topics, storage.Topic{ID: parseID(arg), Order: i})
	}
	return topics
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		die("Error: invalid topic id %q", s)
	}
	return id
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	secs %= 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
