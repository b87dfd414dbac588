package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"goa.design/clue/log"
)

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	SearchDepth       string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *Client) searchTavily(ctx context.Context, query string, maxResults int) string {
	if c.tavilyKey == "" {
		return "[System Note: Tavily API key not configured. Please add your Tavily API key in settings.]"
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.tavilyKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "advanced",
	})
	if err != nil {
		return failurePlaceholder
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tavilyURL, bytes.NewReader(body))
	if err != nil {
		return failurePlaceholder
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf(ctx, err, "tavily search failed")
		return "[System Note: Tavily search failed. Please try again.]"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf(ctx, "tavily API error: status %d", resp.StatusCode)
		return "[System Note: Tavily search failed. Please check your API key.]"
	}

	var data tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "[System Note: Tavily search failed. Please try again.]"
	}

	results := make([]result, 0, len(data.Results))
	for i, r := range data.Results {
		title := r.Title
		if title == "" {
			title = "No Title"
		}
		content := r.Content
		if content == "" {
			content = "No content available."
		}
		results = append(results, result{
			Index:   i + 1,
			Title:   title,
			URL:     r.URL,
			Content: content,
		})
	}
	return formatResults(results)
}
