package provider

import (
	"fmt"
	"strings"
)

// Mode selects which provider(s) serve the council.
type Mode string

const (
	// ModeOpenRouter serves every model through OpenRouter.
	ModeOpenRouter Mode = "openrouter"
	// ModeOllama serves every model through a local Ollama instance.
	ModeOllama Mode = "ollama"
	// ModeHybrid mixes providers: model identifiers carry a provider
	// prefix ("ollama:", "deepseek:"); untagged identifiers default to
	// OpenRouter.
	ModeHybrid Mode = "hybrid"
)

// Namespace prefixes recognized on model identifiers in hybrid mode.
const (
	OllamaPrefix   = "ollama:"
	DeepSeekPrefix = "deepseek:"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOpenRouter, ModeOllama, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown provider mode: %q", s)
}

// Router maps model identifiers to the provider that must serve them.
// Routing is pure: the same identifier and mode always yield the same
// decision.
type Router struct {
	mode       Mode
	openrouter Provider
	ollama     Provider
	deepseek   Provider
}

// NewRouter creates a router for the given mode and backends.
func NewRouter(mode Mode, openrouter, ollama, deepseek Provider) *Router {
	return &Router{
		mode:       mode,
		openrouter: openrouter,
		ollama:     ollama,
		deepseek:   deepseek,
	}
}

// Mode returns the active deliberation mode.
func (r *Router) Mode() Mode { return r.mode }

// Resolve returns the provider serving a model identifier together with the
// bare model name the provider expects (namespace prefix stripped).
func (r *Router) Resolve(model string) (Provider, string) {
	switch r.mode {
	case ModeOllama:
		// Strip the prefix if present (e.g. from a utility model setting).
		return r.ollama, strings.TrimPrefix(model, OllamaPrefix)
	case ModeHybrid:
		if bare, ok := strings.CutPrefix(model, OllamaPrefix); ok {
			return r.ollama, bare
		}
		if bare, ok := strings.CutPrefix(model, DeepSeekPrefix); ok {
			return r.deepseek, bare
		}
		return r.openrouter, model
	default:
		return r.openrouter, model
	}
}

// Provider returns a backend by name, for catalog listing.
func (r *Router) Provider(name string) (Provider, error) {
	switch name {
	case "openrouter":
		return r.openrouter, nil
	case "ollama":
		return r.ollama, nil
	case "deepseek":
		return r.deepseek, nil
	}
	return nil, fmt.Errorf("unknown provider: %s", name)
}
