package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider struct{ name string }

func (p namedProvider) Name() string { return p.name }
func (p namedProvider) Query(context.Context, Request) (string, error) {
	return "", nil
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"openrouter", "ollama", "hybrid"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}

	_, err := ParseMode("azure")
	assert.Error(t, err)
	_, err = ParseMode("")
	assert.Error(t, err)
}

func TestRouterResolve(t *testing.T) {
	or := namedProvider{name: "openrouter"}
	ol := namedProvider{name: "ollama"}
	ds := namedProvider{name: "deepseek"}

	tests := []struct {
		name     string
		mode     Mode
		model    string
		wantProv string
		wantBare string
	}{
		{"openrouter mode untagged", ModeOpenRouter, "openai/gpt-4.1", "openrouter", "openai/gpt-4.1"},
		{"openrouter mode ignores prefix", ModeOpenRouter, "ollama:llama3", "openrouter", "ollama:llama3"},
		{"ollama mode untagged", ModeOllama, "llama3", "ollama", "llama3"},
		{"ollama mode strips prefix", ModeOllama, "ollama:llama3", "ollama", "llama3"},
		{"hybrid untagged defaults to openrouter", ModeHybrid, "openai/gpt-4.1", "openrouter", "openai/gpt-4.1"},
		{"hybrid ollama prefix", ModeHybrid, "ollama:llama3", "ollama", "llama3"},
		{"hybrid deepseek prefix", ModeHybrid, "deepseek:deepseek-chat", "deepseek", "deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.mode, or, ol, ds)

			prov, bare := r.Resolve(tt.model)

			assert.Equal(t, tt.wantProv, prov.Name())
			assert.Equal(t, tt.wantBare, bare)
		})
	}
}

func TestRouterResolveIsPure(t *testing.T) {
	r := NewRouter(ModeHybrid, namedProvider{name: "openrouter"}, namedProvider{name: "ollama"}, namedProvider{name: "deepseek"})

	first, bare1 := r.Resolve("ollama:mistral")
	second, bare2 := r.Resolve("ollama:mistral")

	assert.Equal(t, first, second)
	assert.Equal(t, bare1, bare2)
}

func TestRouterProviderLookup(t *testing.T) {
	r := NewRouter(ModeOpenRouter, namedProvider{name: "openrouter"}, namedProvider{name: "ollama"}, namedProvider{name: "deepseek"})

	for _, name := range []string{"openrouter", "ollama", "deepseek"} {
		p, err := r.Provider(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := r.Provider("groq")
	assert.Error(t, err)
}
