// Package httpapi exposes the council over HTTP: conversation CRUD, the
// deliberation endpoints (plain and SSE streaming), settings, and model
// catalog passthrough.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"goa.design/clue/log"

	"github.com/johnayoung/llm-council/internal/council"
	"github.com/johnayoung/llm-council/internal/provider"
	"github.com/johnayoung/llm-council/internal/search"
	"github.com/johnayoung/llm-council/internal/settings"
	"github.com/johnayoung/llm-council/internal/storage"
)

// Server wires the council engine, storage, and settings into HTTP handlers.
type Server struct {
	store    *storage.Store
	settings *settings.Store

	// newEngine builds a per-turn engine from a settings snapshot.
	// Replaceable in tests.
	newEngine func(settings.Settings) *council.Engine
}

// New creates a server over the given stores.
func New(store *storage.Store, settingsStore *settings.Store) *Server {
	s := &Server{store: store, settings: settingsStore}
	s.newEngine = s.buildEngine
	return s
}

// buildEngine constructs providers, router, and search client from a
// settings snapshot. Built fresh per turn so settings changes apply at turn
// boundaries only.
func (s *Server) buildEngine(snap settings.Settings) *council.Engine {
	router := buildRouter(snap)
	searcher := search.New(snap.TavilyKey(), snap.BraveKey())
	return council.New(engineConfig(snap), router, searcher)
}

func buildRouter(snap settings.Settings) *provider.Router {
	mode, err := provider.ParseMode(snap.LLMProvider)
	if err != nil {
		mode = provider.ModeOpenRouter
	}
	return provider.NewRouter(mode,
		provider.NewOpenRouter(snap.OpenRouterKey()),
		provider.NewOllama(snap.OllamaBaseURL),
		provider.NewDeepSeek(snap.DeepSeekKey()),
	)
}

func engineConfig(snap settings.Settings) council.Config {
	return council.Config{
		CouncilModels:      snap.ActiveCouncilModels(),
		ChairmanModel:      snap.ActiveChairmanModel(),
		TitleModel:         snap.TitleModel,
		SearchQueryModel:   snap.SearchQueryModel,
		Stage2Prompt:       snap.Stage2Prompt,
		Stage3Prompt:       snap.Stage3Prompt,
		TitlePrompt:        snap.TitlePrompt,
		SearchQueryPrompt:  snap.SearchQueryPrompt,
		SearchProvider:     snap.SearchProvider,
		FullContentResults: snap.FullContentResults,
	}
}

// Handler returns the route table wrapped in CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)

	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)

	mux.HandleFunc("POST /api/conversations/{id}/message", s.handleSendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/message/stream", s.handleSendMessageStream)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/settings/defaults", s.handleSettingsDefaults)
	mux.HandleFunc("POST /api/settings/test-openrouter", s.handleTestOpenRouter)
	mux.HandleFunc("POST /api/settings/test-ollama", s.handleTestOllama)

	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("GET /api/ollama/tags", s.handleOllamaTags)

	return corsMiddleware(mux)
}

// corsMiddleware allows the local development frontend origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf(context.Background(), err, "encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
