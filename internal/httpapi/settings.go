package httpapi

import (
	"net/http"

	"github.com/johnayoung/llm-council/internal/council"
	"github.com/johnayoung/llm-council/internal/settings"
)

// settingsView is the settings payload returned to clients. API keys are
// reported only as present/absent.
type settingsView struct {
	SearchProvider      string   `json:"search_provider"`
	LLMProvider         string   `json:"llm_provider"`
	OllamaBaseURL       string   `json:"ollama_base_url"`
	OllamaCouncilModels []string `json:"ollama_council_models"`
	OllamaChairmanModel string   `json:"ollama_chairman_model"`
	HybridCouncilModels []string `json:"hybrid_council_models"`
	HybridChairmanModel string   `json:"hybrid_chairman_model"`
	FullContentResults  int      `json:"full_content_results"`
	TavilyAPIKeySet     bool     `json:"tavily_api_key_set"`
	BraveAPIKeySet      bool     `json:"brave_api_key_set"`
	OpenRouterAPIKeySet bool     `json:"openrouter_api_key_set"`
	DeepSeekAPIKeySet   bool     `json:"deepseek_api_key_set"`
	CouncilModels       []string `json:"council_models"`
	ChairmanModel       string   `json:"chairman_model"`
	SearchQueryModel    string   `json:"search_query_model"`
	TitleModel          string   `json:"title_model"`
	Stage2Prompt        string   `json:"stage2_prompt"`
	Stage3Prompt        string   `json:"stage3_prompt"`
	TitlePrompt         string   `json:"title_prompt"`
	SearchQueryPrompt   string   `json:"search_query_prompt"`
}

func viewOf(s settings.Settings) settingsView {
	return settingsView{
		SearchProvider:      s.SearchProvider,
		LLMProvider:         s.LLMProvider,
		OllamaBaseURL:       s.OllamaBaseURL,
		OllamaCouncilModels: s.OllamaCouncilModels,
		OllamaChairmanModel: s.OllamaChairmanModel,
		HybridCouncilModels: s.HybridCouncilModels,
		HybridChairmanModel: s.HybridChairmanModel,
		FullContentResults:  s.FullContentResults,
		TavilyAPIKeySet:     s.TavilyAPIKey != "",
		BraveAPIKeySet:      s.BraveAPIKey != "",
		OpenRouterAPIKeySet: s.OpenRouterAPIKey != "",
		DeepSeekAPIKeySet:   s.DeepSeekAPIKey != "",
		CouncilModels:       s.CouncilModels,
		ChairmanModel:       s.ChairmanModel,
		SearchQueryModel:    s.SearchQueryModel,
		TitleModel:          s.TitleModel,
		Stage2Prompt:        effective(s.Stage2Prompt, council.DefaultStage2Prompt),
		Stage3Prompt:        effective(s.Stage3Prompt, council.DefaultStage3Prompt),
		TitlePrompt:         effective(s.TitlePrompt, council.DefaultTitlePrompt),
		SearchQueryPrompt:   effective(s.SearchQueryPrompt, council.DefaultSearchQueryPrompt),
	}
}

func effective(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.settings.Snapshot()))
}

func (s *Server) handleSettingsDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"council_models":      settings.DefaultCouncilModels,
		"chairman_model":      settings.DefaultChairmanModel,
		"search_query_model":  settings.DefaultUtilityModel,
		"title_model":         settings.DefaultUtilityModel,
		"stage2_prompt":       council.DefaultStage2Prompt,
		"stage3_prompt":       council.DefaultStage3Prompt,
		"title_prompt":        council.DefaultTitlePrompt,
		"search_query_prompt": council.DefaultSearchQueryPrompt,
	})
}

// updateSettingsRequest uses pointer fields so absent keys leave the current
// value untouched.
type updateSettingsRequest struct {
	SearchProvider      *string   `json:"search_provider"`
	LLMProvider         *string   `json:"llm_provider"`
	OllamaBaseURL       *string   `json:"ollama_base_url"`
	OllamaCouncilModels *[]string `json:"ollama_council_models"`
	OllamaChairmanModel *string   `json:"ollama_chairman_model"`
	HybridCouncilModels *[]string `json:"hybrid_council_models"`
	HybridChairmanModel *string   `json:"hybrid_chairman_model"`
	FullContentResults  *int      `json:"full_content_results"`
	TavilyAPIKey        *string   `json:"tavily_api_key"`
	BraveAPIKey         *string   `json:"brave_api_key"`
	OpenRouterAPIKey    *string   `json:"openrouter_api_key"`
	DeepSeekAPIKey      *string   `json:"deepseek_api_key"`
	CouncilModels       *[]string `json:"council_models"`
	ChairmanModel       *string   `json:"chairman_model"`
	SearchQueryModel    *string   `json:"search_query_model"`
	TitleModel          *string   `json:"title_model"`
	Stage2Prompt        *string   `json:"stage2_prompt"`
	Stage3Prompt        *string   `json:"stage3_prompt"`
	TitlePrompt         *string   `json:"title_prompt"`
	SearchQueryPrompt   *string   `json:"search_query_prompt"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.settings.Update(func(cur *settings.Settings) {
		setIf(&cur.SearchProvider, req.SearchProvider)
		setIf(&cur.LLMProvider, req.LLMProvider)
		setIf(&cur.OllamaBaseURL, req.OllamaBaseURL)
		setIf(&cur.OllamaCouncilModels, req.OllamaCouncilModels)
		setIf(&cur.OllamaChairmanModel, req.OllamaChairmanModel)
		setIf(&cur.HybridCouncilModels, req.HybridCouncilModels)
		setIf(&cur.HybridChairmanModel, req.HybridChairmanModel)
		setIf(&cur.FullContentResults, req.FullContentResults)
		setIf(&cur.TavilyAPIKey, req.TavilyAPIKey)
		setIf(&cur.BraveAPIKey, req.BraveAPIKey)
		setIf(&cur.OpenRouterAPIKey, req.OpenRouterAPIKey)
		setIf(&cur.DeepSeekAPIKey, req.DeepSeekAPIKey)
		setIf(&cur.CouncilModels, req.CouncilModels)
		setIf(&cur.ChairmanModel, req.ChairmanModel)
		setIf(&cur.SearchQueryModel, req.SearchQueryModel)
		setIf(&cur.TitleModel, req.TitleModel)
		setIf(&cur.Stage2Prompt, req.Stage2Prompt)
		setIf(&cur.Stage3Prompt, req.Stage3Prompt)
		setIf(&cur.TitlePrompt, req.TitlePrompt)
		setIf(&cur.SearchQueryPrompt, req.SearchQueryPrompt)
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, viewOf(updated))
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
