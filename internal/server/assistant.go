// ABOUTME: Assistant config handlers: persona, model overrides, auto-confirm,
// ABOUTME: and the reminder list, stored per user

package server

import (
	"net/http"

	"github.com/taskstream/assistant/internal/auth"
	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
)

type assistantConfigView struct {
	APIKey         string             `json:"api_key"`
	Model          string             `json:"model"`
	BaseURL        string             `json:"base_url"`
	Prompt         string             `json:"prompt"`
	Character      string             `json:"character"`
	LongTermMemory string             `json:"long_term_memory"`
	EnablePrompt   bool               `json:"enable_prompt"`
	AutoConfirm    autoConfirmView    `json:"auto_confirm"`
	Reminders      []content.Reminder `json:"reminders"`
}

type autoConfirmView struct {
	Create   bool `json:"create"`
	Update   bool `json:"update"`
	Delete   bool `json:"delete"`
	Reminder bool `json:"reminder"`
}

func (s *Server) handleGetAssistantConfig(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	cfg, err := s.store.GetAssistantConfig(r.Context(), userID)
	if err != nil {
		s.logger.Error("loading assistant config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	reminders := cfg.Reminders
	if reminders == nil {
		reminders = []content.Reminder{}
	}
	writeJSON(w, http.StatusOK, assistantConfigView{
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		BaseURL:        cfg.BaseURL,
		Prompt:         cfg.Prompt,
		Character:      cfg.Character,
		LongTermMemory: cfg.LongTermMemory,
		EnablePrompt:   cfg.EnablePrompt,
		AutoConfirm: autoConfirmView{
			Create:   cfg.AutoConfirm.Create,
			Update:   cfg.AutoConfirm.Update,
			Delete:   cfg.AutoConfirm.Delete,
			Reminder: cfg.AutoConfirm.Reminder,
		},
		Reminders: reminders,
	})
}

func (s *Server) handlePutAssistantConfig(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req assistantConfigView
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := &store.AssistantConfig{
		UserID:         userID,
		APIKey:         req.APIKey,
		Model:          req.Model,
		BaseURL:        req.BaseURL,
		Prompt:         req.Prompt,
		Character:      req.Character,
		LongTermMemory: req.LongTermMemory,
		EnablePrompt:   req.EnablePrompt,
		AutoConfirm: store.AutoConfirm{
			Create:   req.AutoConfirm.Create,
			Update:   req.AutoConfirm.Update,
			Delete:   req.AutoConfirm.Delete,
			Reminder: req.AutoConfirm.Reminder,
		},
		Reminders: req.Reminders,
	}
	if err := s.store.SaveAssistantConfig(r.Context(), cfg); err != nil {
		s.logger.Error("saving assistant config", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
