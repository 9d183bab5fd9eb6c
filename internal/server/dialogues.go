// ABOUTME: Dialogue CRUD handlers plus the SSE message-stream endpoint
// ABOUTME: The stream handler drains a detached run and relays its events

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskstream/assistant/internal/auth"
	"github.com/taskstream/assistant/internal/chat"
	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
	"github.com/taskstream/assistant/internal/stream"
)

// readyData is the ready event payload, a JSON object whose pad of 4096
// spaces defeats proxy buffering. Clients JSON-parse every event's data.
var readyData = func() string {
	b, _ := json.Marshal(map[string]string{"pad": strings.Repeat(" ", 4096)})
	return string(b)
}()

type dialogueSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Turns     int       `json:"turns"`
}

type turnView struct {
	User      string         `json:"user"`
	Assistant []content.Item `json:"assistant"`
}

func (s *Server) handleListDialogues(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	dialogues, err := s.store.ListDialogues(r.Context(), userID)
	if err != nil {
		s.logger.Error("listing dialogues", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]dialogueSummary, len(dialogues))
	for i, d := range dialogues {
		out[i] = dialogueSummary{ID: d.ID, Title: d.Title, Timestamp: d.Timestamp, Turns: len(d.Turns)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDialogue(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dialogue := &store.Dialogue{UserID: userID, Title: req.Title}
	if err := s.store.CreateDialogue(r.Context(), dialogue); err != nil {
		s.logger.Error("creating dialogue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, dialogueSummary{
		ID: dialogue.ID, Title: dialogue.Title, Timestamp: dialogue.Timestamp,
	})
}

// loadOwnedDialogue fetches the dialogue and enforces ownership. A foreign
// dialogue reads as absent, not forbidden.
func (s *Server) loadOwnedDialogue(w http.ResponseWriter, r *http.Request) (*store.Dialogue, bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid dialogue id")
		return nil, false
	}

	dialogue, err := s.store.GetDialogue(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dialogue not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("loading dialogue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if dialogue.UserID != userID {
		writeError(w, http.StatusNotFound, "dialogue not found")
		return nil, false
	}
	return dialogue, true
}

func (s *Server) handleGetDialogue(w http.ResponseWriter, r *http.Request) {
	dialogue, ok := s.loadOwnedDialogue(w, r)
	if !ok {
		return
	}

	turns := make([]turnView, len(dialogue.Turns))
	for i, t := range dialogue.Turns {
		turns[i] = turnView{User: t.User, Assistant: t.Assistant}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        dialogue.ID,
		"title":     dialogue.Title,
		"timestamp": dialogue.Timestamp,
		"turns":     turns,
	})
}

func (s *Server) handleRenameDialogue(w http.ResponseWriter, r *http.Request) {
	dialogue, ok := s.loadOwnedDialogue(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := s.store.RenameDialogue(r.Context(), dialogue.ID, req.Title); err != nil {
		s.logger.Error("renaming dialogue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": dialogue.ID, "title": req.Title})
}

func (s *Server) handleDeleteDialogue(w http.ResponseWriter, r *http.Request) {
	dialogue, ok := s.loadOwnedDialogue(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDialogue(r.Context(), dialogue.ID); err != nil {
		s.logger.Error("deleting dialogue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStreamMessage starts a turn and relays its events as SSE until the
// terminal event. The run is detached: if the client disconnects mid-turn the
// run finishes (and persists) on its own.
func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid dialogue id")
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run, err := s.orch.StartTurn(r.Context(), id, userID, req.Message)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, chat.ErrDialogueNotOwned) {
		writeError(w, http.StatusNotFound, "dialogue not found")
		return
	}
	if err != nil {
		s.logger.Error("starting turn", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, stream.EventReady, readyData)
	flusher.Flush()

	for {
		ev, err := run.Stream.Recv(r.Context())
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.logger.Debug("client disconnected mid-stream",
				"run_id", run.ID, "error", err)
			return
		}
		writeSSE(w, ev.Name, string(ev.Data))
		flusher.Flush()
	}
}

func writeSSE(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
