package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ythttp "ytfeed/http"
)

// HTTPSummarizer calls a summarization service that accepts
// {"url": ..., "language": ...} and answers {"summary": ...}.
type HTTPSummarizer struct {
	client   *ythttp.Client
	endpoint string
	headers  map[string]string
}

// NewHTTPSummarizer creates a summarizer posting to endpoint.
func NewHTTPSummarizer(client *ythttp.Client, endpoint string) (*HTTPSummarizer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("summary: empty endpoint")
	}
	if client == nil {
		client = ythttp.New(nil)
	}
	return &HTTPSummarizer{client: client, endpoint: endpoint, headers: map[string]string{}}, nil
}

// SetHeader adds a header sent with every request, such as an API key.
func (h *HTTPSummarizer) SetHeader(key, value string) {
	h.headers[key] = value
}

type summarizeRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error,omitempty"`
}

// Summarize implements Summarizer.
func (h *HTTPSummarizer) Summarize(ctx context.Context, videoURL, language string) (string, error) {
	resp, err := h.client.PostJSON(ctx, h.endpoint, summarizeRequest{URL: videoURL, Language: language}, h.headers)
	if err != nil {
		return "", err
	}
	var out summarizeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	return out.Summary, nil
}
