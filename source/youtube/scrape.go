package youtube

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	ythttp "ytfeed/http"
	"ytfeed/source"
)

// DefaultPageBaseURL is where channel pages are fetched from.
const DefaultPageBaseURL = "https://www.youtube.com"

// Scraper resolves handles by reading the public channel page. It costs no
// API quota and is used when the Data API is unavailable.
type Scraper struct {
	client  *ythttp.Client
	baseURL string
}

// NewScraper creates a scraper that fetches pages through client. An empty
// baseURL means DefaultPageBaseURL.
func NewScraper(client *ythttp.Client, baseURL string) *Scraper {
	if baseURL == "" {
		baseURL = DefaultPageBaseURL
	}
	return &Scraper{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// ResolveHandle fetches https://www.youtube.com/@handle and extracts the
// channel id from the page metadata.
func (s *Scraper) ResolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	pageURL := s.baseURL + "/" + url.PathEscape(handle)

	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		if ythttp.StatusCode(err) == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", source.ErrChannelNotFound, handle)
		}
		return "", fmt.Errorf("fetch channel page: %w", err)
	}

	return channelIDFromPage(resp.Body)
}

// channelIDFromPage looks for the channel id in the canonical link, the
// itemprop metadata and the og:url property, in that order.
func channelIDFromPage(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: parse channel page: %v", source.ErrInvalidResponse, err)
	}

	candidates := []string{
		attr(doc, `link[rel="canonical"]`, "href"),
		attr(doc, `meta[itemprop="identifier"]`, "content"),
		attr(doc, `meta[itemprop="channelId"]`, "content"),
		attr(doc, `meta[property="og:url"]`, "content"),
	}
	for _, c := range candidates {
		if id := channelIDFromURL(c); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no channel id on page", source.ErrInvalidResponse)
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// channelIDFromURL accepts a bare channel id or a /channel/<id> URL.
func channelIDFromURL(s string) string {
	if channelIDRegex.MatchString(s) {
		return s
	}
	const marker = "/channel/"
	i := strings.Index(s, marker)
	if i < 0 {
		return ""
	}
	id := s[i+len(marker):]
	if j := strings.IndexAny(id, "/?#"); j >= 0 {
		id = id[:j]
	}
	if channelIDRegex.MatchString(id) {
		return id
	}
	return ""
}
