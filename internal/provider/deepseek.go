package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DeepSeek implements Provider for the DeepSeek chat completions API.
type DeepSeek struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// DeepSeekOption configures a DeepSeek provider.
type DeepSeekOption func(*DeepSeek)

// WithDeepSeekBaseURL sets a custom base URL.
func WithDeepSeekBaseURL(url string) DeepSeekOption {
	return func(d *DeepSeek) { d.baseURL = strings.TrimSuffix(url, "/") }
}

// WithDeepSeekHTTPClient sets a custom HTTP client.
func WithDeepSeekHTTPClient(c *http.Client) DeepSeekOption {
	return func(d *DeepSeek) { d.httpClient = c }
}

// NewDeepSeek creates a DeepSeek provider with the given API key.
func NewDeepSeek(apiKey string, opts ...DeepSeekOption) *DeepSeek {
	d := &DeepSeek{
		apiKey:     apiKey,
		baseURL:    "https://api.deepseek.com",
		httpClient: &http.Client{Timeout: 150 * time.Second},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *DeepSeek) Name() string { return "deepseek" }

// Query sends a chat request to a DeepSeek model and returns the content.
func (d *DeepSeek) Query(ctx context.Context, req Request) (string, error) {
	if d.apiKey == "" {
		return "", &CallError{Kind: KindConfig, Message: "DeepSeek API key not configured"}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	payload := openRouterRequest{ // same chat completions wire shape
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
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
			Message: fmt.Sprintf("DeepSeek API error (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}

	var dsResp openRouterResponse
	if err := json.Unmarshal(respBody, &dsResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if len(dsResp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	return dsResp.Choices[0].Message.Content, nil
}

// Known chat models used when the catalog endpoint is unavailable.
var deepSeekFallbackModels = []ModelInfo{
	{ID: "deepseek-chat", Name: "DeepSeek Chat"},
	{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner"},
}

// Terms excluding non-chat models from the dynamic catalog.
var deepSeekExcludedTerms = []string{
	"embed", "audio", "whisper", "tts", "speech", "transcribe",
}

// ListModels fetches the DeepSeek catalog, falling back to a static list.
func (d *DeepSeek) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if d.apiKey == "" {
		return deepSeekFallbackModels, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/models", nil)
	if err != nil {
		return deepSeekFallbackModels, nil
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return deepSeekFallbackModels, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return deepSeekFallbackModels, nil
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return deepSeekFallbackModels, nil
	}

	var models []ModelInfo
	for _, m := range list.Data {
		if isExcludedModel(m.ID) {
			continue
		}
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID})
	}
	if len(models) == 0 {
		return deepSeekFallbackModels, nil
	}
	return models, nil
}

func isExcludedModel(id string) bool {
	lower := strings.ToLower(id)
	for _, term := range deepSeekExcludedTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
