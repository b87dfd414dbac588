package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/johnayoung/llm-council/internal/provider"
)

const catalogTimeout = 15 * time.Second

type modelListResponse struct {
	Models []provider.ModelInfo `json:"models"`
	Error  string               `json:"error,omitempty"`
}

// handleListModels fetches the OpenRouter catalog.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	snap := s.settings.Snapshot()
	or := provider.NewOpenRouter(snap.OpenRouterKey())

	models, err := or.ListModels(ctx)
	if err != nil {
		writeJSON(w, http.StatusOK, modelListResponse{Models: []provider.ModelInfo{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, modelListResponse{Models: models})
}

// handleOllamaTags fetches locally available Ollama models. An optional
// base_url query parameter overrides the configured instance.
func (s *Server) handleOllamaTags(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	baseURL := r.URL.Query().Get("base_url")
	if baseURL == "" {
		baseURL = s.settings.Snapshot().OllamaBaseURL
	}

	models, err := provider.NewOllama(baseURL).ListModels(ctx)
	if err != nil {
		writeJSON(w, http.StatusOK, modelListResponse{Models: []provider.ModelInfo{}, Error: "Could not connect to Ollama. Is it running?"})
		return
	}
	writeJSON(w, http.StatusOK, modelListResponse{Models: models})
}

type testResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleTestOpenRouter checks an API key against the catalog endpoint. Falls
// back to the saved key when the request carries none.
func (s *Server) handleTestOpenRouter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	_ = decodeJSON(r, &req)

	key := req.APIKey
	if key == "" {
		key = s.settings.Snapshot().OpenRouterKey()
	}
	if key == "" {
		writeJSON(w, http.StatusOK, testResult{Message: "No API key provided or configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), catalogTimeout)
	defer cancel()

	if _, err := provider.NewOpenRouter(key).ListModels(ctx); err != nil {
		writeJSON(w, http.StatusOK, testResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testResult{Success: true, Message: "API key is valid"})
}

// handleTestOllama checks connectivity to an Ollama instance.
func (s *Server) handleTestOllama(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseURL string `json:"base_url"`
	}
	if err := decodeJSON(r, &req); err != nil || req.BaseURL == "" {
		writeError(w, http.StatusBadRequest, "base_url is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := provider.NewOllama(req.BaseURL).ListModels(ctx); err != nil {
		writeJSON(w, http.StatusOK, testResult{Message: "Could not connect to Ollama. Is it running at this URL?"})
		return
	}
	writeJSON(w, http.StatusOK, testResult{Success: true, Message: "Successfully connected to Ollama"})
}
