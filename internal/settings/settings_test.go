package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	st, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	return st
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	st := tempStore(t)

	snap := st.Snapshot()

	assert.Equal(t, "openrouter", snap.LLMProvider)
	assert.Equal(t, DefaultCouncilModels, snap.CouncilModels)
	assert.Equal(t, DefaultChairmanModel, snap.ChairmanModel)
	assert.Equal(t, DefaultUtilityModel, snap.TitleModel)
	assert.Equal(t, DefaultSearchProvider, snap.SearchProvider)
	assert.Equal(t, DefaultFullContentCount, snap.FullContentResults)
}

func TestUpdatePersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, err := Load(path)
	require.NoError(t, err)

	_, err = st.Update(func(s *Settings) {
		s.LLMProvider = "ollama"
		s.OllamaCouncilModels = []string{"llama3", "mistral"}
		s.OllamaChairmanModel = "llama3"
	})
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)

	snap := reloaded.Snapshot()
	assert.Equal(t, "ollama", snap.LLMProvider)
	assert.Equal(t, []string{"llama3", "mistral"}, snap.ActiveCouncilModels())
	assert.Equal(t, "llama3", snap.ActiveChairmanModel())
}

func TestUpdateRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*Settings)
	}{
		{"unknown provider mode", func(s *Settings) { s.LLMProvider = "azure" }},
		{"unknown search provider", func(s *Settings) { s.SearchProvider = "bing" }},
		{"single council model", func(s *Settings) { s.CouncilModels = []string{"only-one"} }},
		{"too many council models", func(s *Settings) {
			s.CouncilModels = make([]string, 9)
		}},
		{"full content out of range", func(s *Settings) { s.FullContentResults = 11 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tempStore(t)
			before := st.Snapshot()

			_, err := st.Update(tt.apply)

			require.Error(t, err)
			assert.Equal(t, before, st.Snapshot(), "failed update must not stick")
		})
	}
}

func TestSnapshotIsolation(t *testing.T) {
	st := tempStore(t)

	snap := st.Snapshot()
	snap.CouncilModels[0] = "mutated"

	assert.Equal(t, DefaultCouncilModels[0], st.Snapshot().CouncilModels[0])
}

func TestActiveSelectionFallsBackPerMode(t *testing.T) {
	s := Defaults()

	assert.Equal(t, DefaultCouncilModels, s.ActiveCouncilModels())
	assert.Equal(t, DefaultChairmanModel, s.ActiveChairmanModel())

	s.LLMProvider = "hybrid"
	assert.Empty(t, s.ActiveCouncilModels(), "hybrid starts unconfigured")

	s.HybridCouncilModels = []string{"ollama:llama3", "openai/gpt-4.1"}
	s.HybridChairmanModel = "openai/gpt-4.1"
	assert.Equal(t, []string{"ollama:llama3", "openai/gpt-4.1"}, s.ActiveCouncilModels())
	assert.Equal(t, "openai/gpt-4.1", s.ActiveChairmanModel())
}

func TestKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	s := Defaults()
	assert.Equal(t, "env-key", s.OpenRouterKey())

	s.OpenRouterAPIKey = "file-key"
	assert.Equal(t, "file-key", s.OpenRouterKey())
}

func TestSavedFileOmitsEmptySecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, err := Load(path)
	require.NoError(t, err)

	_, err = st.Update(func(s *Settings) { s.TavilyAPIKey = "tv-key" })
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "tavily_api_key")
	assert.NotContains(t, string(data), "openrouter_api_key")
}
