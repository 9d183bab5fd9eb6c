// ABOUTME: Confirm/cancel endpoints resolving suspended action cards
// ABOUTME: Unknown or already-resolved ids report 404, not an error

package server

import (
	"net/http"
)

func (s *Server) handleConfirmAction(w http.ResponseWriter, r *http.Request) {
	s.resolveAction(w, r, true)
}

func (s *Server) handleCancelAction(w http.ResponseWriter, r *http.Request) {
	s.resolveAction(w, r, false)
}

func (s *Server) resolveAction(w http.ResponseWriter, r *http.Request, confirm bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid action id")
		return
	}

	var ok bool
	if confirm {
		ok = s.actions.Confirm(id)
	} else {
		ok = s.actions.Cancel(id)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "action not found or already resolved")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
