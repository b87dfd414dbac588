package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"goa.design/clue/log"
)

type braveResponse struct {
	Web struct {
		Results []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Description   string   `json:"description"`
			ExtraSnippets []string `json:"extra_snippets"`
		} `json:"results"`
	} `json:"web"`
}

func (c *Client) searchBrave(ctx context.Context, query string, maxResults, fullContentResults int) string {
	if c.braveKey == "" {
		return "[System Note: Brave API key not configured. Please add your Brave API key in settings.]"
	}

	endpoint := fmt.Sprintf("%s?q=%s&count=%d", c.braveURL, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failurePlaceholder
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.braveKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf(ctx, err, "brave search failed")
		return "[System Note: Brave search failed. Please try again.]"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf(ctx, "brave API error: status %d", resp.StatusCode)
		return "[System Note: Brave search failed. Please check your API key.]"
	}

	var data braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "[System Note: Brave search failed. Please try again.]"
	}

	var results []result
	for i, r := range data.Web.Results {
		if i >= maxResults {
			break
		}
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		description := r.Description
		if description == "" {
			description = "No description available."
		}
		// Some results carry extra snippets with more content.
		if len(r.ExtraSnippets) > 0 {
			extra := r.ExtraSnippets
			if len(extra) > 2 {
				extra = extra[:2]
			}
			description += "\n" + strings.Join(extra, "\n")
		}
		results = append(results, result{
			Index:   i + 1,
			Title:   title,
			URL:     r.URL,
			Summary: description,
		})
	}

	// Fetch full article text for the top results through the Jina reader.
	for i := range results {
		if fullContentResults <= 0 || i >= fullContentResults {
			break
		}
		if results[i].URL == "" {
			continue
		}
		content := c.fetchWithJina(ctx, results[i].URL)
		if content == "" {
			continue
		}
		// Very short content usually means a paywall or cookie wall;
		// keep the original summary alongside it.
		if len(content) < 500 {
			content += "\n\n[System Note: Full content fetch yielded limited text. Appending original summary.]\nOriginal Summary: " + results[i].Summary
		}
		results[i].Content = content
	}

	return formatResults(results)
}

// fetchWithJina fetches clean article text via the Jina reader. Returns an
// empty string on any failure.
func (c *Client) fetchWithJina(ctx context.Context, target string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jinaURL+"/"+target, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debugf(ctx, "jina fetch failed for %s: %v", target, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debugf(ctx, "jina reader returned %d for %s", resp.StatusCode, target)
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(body)
}
