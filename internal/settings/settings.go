// Package settings handles the YAML-persisted application settings. The
// engine never reads settings directly: callers take an immutable Snapshot
// at the turn boundary and thread it through the call chain.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/johnayoung/llm-council/internal/provider"
	"github.com/johnayoung/llm-council/internal/search"
)

// Default models used until the user configures their own.
var (
	DefaultCouncilModels = []string{
		"openai/gpt-4.1",
		"google/gemini-2.5-pro",
		"anthropic/claude-sonnet-4",
		"x-ai/grok-3",
	}
	DefaultChairmanModel    = "google/gemini-2.5-pro"
	DefaultUtilityModel     = "google/gemini-2.5-flash"
	DefaultOllamaBaseURL    = "http://localhost:11434"
	DefaultSearchProvider   = search.ProviderTavily
	DefaultFullContentCount = 3
)

// Settings is the complete application configuration. Council lists are kept
// per mode so switching modes does not lose the previous selection.
type Settings struct {
	LLMProvider    string `yaml:"llm_provider"`
	SearchProvider string `yaml:"search_provider"`

	CouncilModels []string `yaml:"council_models"`
	ChairmanModel string   `yaml:"chairman_model"`

	OllamaBaseURL       string   `yaml:"ollama_base_url"`
	OllamaCouncilModels []string `yaml:"ollama_council_models"`
	OllamaChairmanModel string   `yaml:"ollama_chairman_model"`

	HybridCouncilModels []string `yaml:"hybrid_council_models"`
	HybridChairmanModel string   `yaml:"hybrid_chairman_model"`

	SearchQueryModel string `yaml:"search_query_model"`
	TitleModel       string `yaml:"title_model"`

	FullContentResults int `yaml:"full_content_results"`

	OpenRouterAPIKey string `yaml:"openrouter_api_key,omitempty"`
	DeepSeekAPIKey   string `yaml:"deepseek_api_key,omitempty"`
	TavilyAPIKey     string `yaml:"tavily_api_key,omitempty"`
	BraveAPIKey      string `yaml:"brave_api_key,omitempty"`

	Stage2Prompt      string `yaml:"stage2_prompt,omitempty"`
	Stage3Prompt      string `yaml:"stage3_prompt,omitempty"`
	TitlePrompt       string `yaml:"title_prompt,omitempty"`
	SearchQueryPrompt string `yaml:"search_query_prompt,omitempty"`
}

// Defaults returns the out-of-the-box settings.
func Defaults() Settings {
	return Settings{
		LLMProvider:        string(provider.ModeOpenRouter),
		SearchProvider:     DefaultSearchProvider,
		CouncilModels:      slices.Clone(DefaultCouncilModels),
		ChairmanModel:      DefaultChairmanModel,
		OllamaBaseURL:      DefaultOllamaBaseURL,
		SearchQueryModel:   DefaultUtilityModel,
		TitleModel:         DefaultUtilityModel,
		FullContentResults: DefaultFullContentCount,
	}
}

// ActiveCouncilModels returns the council list for the active provider mode.
func (s Settings) ActiveCouncilModels() []string {
	switch provider.Mode(s.LLMProvider) {
	case provider.ModeOllama:
		return s.OllamaCouncilModels
	case provider.ModeHybrid:
		return s.HybridCouncilModels
	}
	if len(s.CouncilModels) == 0 {
		return DefaultCouncilModels
	}
	return s.CouncilModels
}

// ActiveChairmanModel returns the chairman for the active provider mode.
func (s Settings) ActiveChairmanModel() string {
	switch provider.Mode(s.LLMProvider) {
	case provider.ModeOllama:
		return s.OllamaChairmanModel
	case provider.ModeHybrid:
		return s.HybridChairmanModel
	}
	if s.ChairmanModel == "" {
		return DefaultChairmanModel
	}
	return s.ChairmanModel
}

// Key getters fall back to the environment so keys never have to live in the
// settings file.

func (s Settings) OpenRouterKey() string {
	if s.OpenRouterAPIKey != "" {
		return s.OpenRouterAPIKey
	}
	return os.Getenv("OPENROUTER_API_KEY")
}

func (s Settings) DeepSeekKey() string {
	if s.DeepSeekAPIKey != "" {
		return s.DeepSeekAPIKey
	}
	return os.Getenv("DEEPSEEK_API_KEY")
}

func (s Settings) TavilyKey() string {
	if s.TavilyAPIKey != "" {
		return s.TavilyAPIKey
	}
	return os.Getenv("TAVILY_API_KEY")
}

func (s Settings) BraveKey() string {
	if s.BraveAPIKey != "" {
		return s.BraveAPIKey
	}
	return os.Getenv("BRAVE_API_KEY")
}

func (s Settings) validate() error {
	if _, err := provider.ParseMode(s.LLMProvider); err != nil {
		return err
	}
	switch s.SearchProvider {
	case search.ProviderTavily, search.ProviderBrave:
	default:
		return fmt.Errorf("invalid search provider: %q", s.SearchProvider)
	}
	for _, models := range [][]string{s.CouncilModels, s.OllamaCouncilModels, s.HybridCouncilModels} {
		if err := ValidateCouncilModels(models); err != nil {
			return err
		}
	}
	if s.FullContentResults < 0 || s.FullContentResults > 10 {
		return errors.New("full_content_results must be between 0 and 10")
	}
	return nil
}

// ValidateCouncilModels checks a council selection. An empty list is allowed
// (the mode is simply unconfigured); a non-empty list needs 2 to 8 entries.
func ValidateCouncilModels(models []string) error {
	if len(models) == 0 {
		return nil
	}
	if len(models) < 2 {
		return errors.New("at least two council models must be selected")
	}
	if len(models) > 8 {
		return errors.New("maximum of 8 council models allowed")
	}
	return nil
}

// Store persists settings to a YAML file and hands out immutable snapshots.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Settings
}

// Load opens the settings store at path, creating defaults when the file
// does not exist yet.
func Load(path string) (*Store, error) {
	st := &Store{path: path, current: Defaults()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	// Unmarshal over the defaults so new fields pick up default values.
	if err := yaml.Unmarshal(data, &st.current); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if err := st.current.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file: %w", err)
	}
	return st, nil
}

// Snapshot returns the current settings by value.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s := st.current
	s.CouncilModels = slices.Clone(s.CouncilModels)
	s.OllamaCouncilModels = slices.Clone(s.OllamaCouncilModels)
	s.HybridCouncilModels = slices.Clone(s.HybridCouncilModels)
	return s
}

// Update applies a mutation, validates the result, and persists it. The
// mutation is discarded when validation or persistence fails.
func (st *Store) Update(apply func(*Settings)) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.current
	next.CouncilModels = slices.Clone(next.CouncilModels)
	next.OllamaCouncilModels = slices.Clone(next.OllamaCouncilModels)
	next.HybridCouncilModels = slices.Clone(next.HybridCouncilModels)

	apply(&next)

	if err := next.validate(); err != nil {
		return Settings{}, err
	}
	if err := st.save(next); err != nil {
		return Settings{}, err
	}

	st.current = next
	return next, nil
}

func (st *Store) save(s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if dir := filepath.Dir(st.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings directory: %w", err)
		}
	}
	if err := os.WriteFile(st.path, data, 0o600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
