package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OpenRouter implements Provider for the OpenRouter chat completions API.
// It is the primary provider: untagged model identifiers route here.
type OpenRouter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// OpenRouterOption configures an OpenRouter provider.
type OpenRouterOption func(*OpenRouter)

// WithOpenRouterBaseURL sets a custom base URL (useful for proxies or tests).
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(o *OpenRouter) { o.baseURL = strings.TrimSuffix(url, "/") }
}

// WithOpenRouterHTTPClient sets a custom HTTP client.
func WithOpenRouterHTTPClient(c *http.Client) OpenRouterOption {
	return func(o *OpenRouter) { o.httpClient = c }
}

// NewOpenRouter creates an OpenRouter provider with the given API key.
// An empty key is allowed at construction time; queries then fail with a
// config error so the failure lands in that model's result slot.
func NewOpenRouter(apiKey string, opts ...OpenRouterOption) *OpenRouter {
	o := &OpenRouter{
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
		httpClient: &http.Client{Timeout: 150 * time.Second},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func (o *OpenRouter) Name() string { return "openrouter" }

// Query sends a chat request to an OpenRouter model and returns the content.
func (o *OpenRouter) Query(ctx context.Context, req Request) (string, error) {
	if o.apiKey == "" {
		return "", &CallError{Kind: KindConfig, Message: "OpenRouter API key not configured"}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	payload := openRouterRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &CallError{
			Kind:    HTTPKind(resp.StatusCode),
			Message: fmt.Sprintf("OpenRouter API error (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(respBody, &orResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if len(orResp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	return orResp.Choices[0].Message.Content, nil
}

// ListModels fetches the OpenRouter model catalog, sorted by display name.
func (o *OpenRouter) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if o.apiKey == "" {
		return nil, errors.New("no OpenRouter API key configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	var list openRouterModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	models := make([]ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, ModelInfo{
			ID:            m.ID,
			Name:          name,
			ContextLength: m.ContextLength,
			IsFree:        priceIsZero(m.Pricing.Prompt) && priceIsZero(m.Pricing.Completion),
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
	})
	return models, nil
}

func priceIsZero(s string) bool {
	if s == "" {
		return true
	}
	v, err := strconv.ParseFloat(s, 64)
	return err == nil && v == 0
}

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openRouterModelList struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		ContextLength int    `json:"context_length"`
		Pricing       struct {
			Prompt     string `json:"prompt"`
			Completion string `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}
