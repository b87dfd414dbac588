package provider

import (
	"context"
)

// Message is a single chat message sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains all inputs for an LLM query.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// DefaultTemperature is used when a request leaves Temperature at zero.
const DefaultTemperature = 0.7

// Provider abstracts a single LLM API backend.
type Provider interface {
	// Name identifies the provider ("openrouter", "ollama", "deepseek").
	Name() string

	// Query sends a chat request and returns the response content.
	// Failures are returned as *CallError so callers can classify them.
	Query(ctx context.Context, req Request) (string, error)
}

// ModelInfo describes one model available from a provider.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length,omitempty"`
	IsFree        bool   `json:"is_free"`
	ModifiedAt    string `json:"modified_at,omitempty"`
}

// ModelLister is implemented by providers that can enumerate their catalog.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ProviderFunc allows functions to implement Provider (adapter pattern).
// Useful for testing and simple inline implementations.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Name() string { return "func" }

func (f ProviderFunc) Query(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
