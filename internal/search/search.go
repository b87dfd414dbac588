// Package search provides the web search collaborator: it turns a query
// into one formatted text blob and never returns an error; every failure
// degrades to an explanatory placeholder.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"goa.design/clue/log"
)

// Supported search providers.
const (
	ProviderTavily = "tavily"
	ProviderBrave  = "brave"
)

// Placeholder blobs returned instead of errors.
const (
	failurePlaceholder   = "[System Note: Web search was attempted but failed. Please answer based on your internal knowledge.]"
	noResultsPlaceholder = "No web search results found."
)

// Client performs web searches through the configured provider APIs.
type Client struct {
	httpClient *http.Client
	tavilyKey  string
	braveKey   string
	tavilyURL  string
	braveURL   string
	jinaURL    string
}

// Option configures a search client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Client) { s.httpClient = c }
}

// WithTavilyURL overrides the Tavily endpoint (tests).
func WithTavilyURL(url string) Option {
	return func(s *Client) { s.tavilyURL = url }
}

// WithBraveURL overrides the Brave endpoint (tests).
func WithBraveURL(url string) Option {
	return func(s *Client) { s.braveURL = url }
}

// WithJinaURL overrides the Jina reader endpoint (tests).
func WithJinaURL(url string) Option {
	return func(s *Client) { s.jinaURL = strings.TrimSuffix(url, "/") }
}

// New creates a search client with the given API keys.
func New(tavilyKey, braveKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tavilyKey:  tavilyKey,
		braveKey:   braveKey,
		tavilyURL:  "https://api.tavily.com/search",
		braveURL:   "https://api.search.brave.com/res/v1/web/search",
		jinaURL:    "https://r.jina.ai",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Search runs a web search and returns one formatted result blob. Unknown
// providers and all failures yield placeholder text, never an error.
func (c *Client) Search(ctx context.Context, query string, maxResults int, providerName string, fullContentResults int) string {
	switch providerName {
	case ProviderBrave:
		return c.searchBrave(ctx, query, maxResults, fullContentResults)
	case ProviderTavily:
		return c.searchTavily(ctx, query, maxResults)
	default:
		log.Printf(ctx, "unknown search provider %q", providerName)
		return failurePlaceholder
	}
}

type result struct {
	Index   int
	Title   string
	URL     string
	Summary string
	Content string
}

func formatResults(results []result) string {
	if len(results) == 0 {
		return noResultsPlaceholder
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		text := fmt.Sprintf("Result %d:\nTitle: %s\nURL: %s", r.Index, r.Title, r.URL)
		if r.Content != "" {
			content := r.Content
			if len(content) > 2000 {
				content = content[:2000] + "..."
			}
			text += "\nContent:\n" + content
		} else {
			text += "\nSummary: " + r.Summary
		}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}
