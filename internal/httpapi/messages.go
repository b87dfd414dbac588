package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"goa.design/clue/log"

	"github.com/johnayoung/llm-council/internal/council"
	"github.com/johnayoung/llm-council/internal/storage"
)

type sendMessageRequest struct {
	Content   string `json:"content"`
	WebSearch bool   `json:"web_search"`
}

// handleSendMessage runs a full deliberation turn and returns the complete
// result once everything has finished.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	conv, err := s.store.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	isFirstMessage := len(conv.Messages) == 0

	if err := s.store.AddUserMessage(id, req.Content); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	engine := s.newEngine(s.settings.Snapshot())

	if isFirstMessage {
		if err := s.store.UpdateTitle(id, engine.GenerateTitle(ctx, req.Content)); err != nil {
			log.Errorf(ctx, err, "updating title")
		}
	}

	result := engine.Run(ctx, req.Content, req.WebSearch)

	if result.Aborted {
		if err := s.store.AddErrorMessage(id, council.AbortMessage); err != nil {
			log.Errorf(ctx, err, "recording failed turn")
		}
	} else if err := s.store.AppendTurn(id, result); err != nil {
		log.Errorf(ctx, err, "recording turn")
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSendMessageStream runs a deliberation turn and streams progress as
// Server-Sent Events, one JSON object per event.
func (s *Server) handleSendMessageStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	conv, err := s.store.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	isFirstMessage := len(conv.Messages) == 0

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := func(ev council.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.store.AddUserMessage(id, req.Content); err != nil {
		_ = sink(council.Event{Type: council.EventError, Message: "failed to record message"})
		return
	}

	engine := s.newEngine(s.settings.Snapshot())

	result, err := engine.RunStream(ctx, req.Content, req.WebSearch, isFirstMessage, sink)
	if err != nil {
		// Sink failure: the client is gone, nothing to persist.
		log.Printf(ctx, "stream closed early: %v", err)
		return
	}

	if result.Aborted {
		if err := s.store.AddErrorMessage(id, council.AbortMessage); err != nil {
			log.Errorf(ctx, err, "recording failed turn")
		}
		return
	}

	if result.Title != "" {
		if err := s.store.UpdateTitle(id, result.Title); err != nil {
			log.Errorf(ctx, err, "updating title")
		}
	}
	if err := s.store.AppendTurn(id, result); err != nil {
		log.Errorf(ctx, err, "recording turn")
	}
}
