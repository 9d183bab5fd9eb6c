// ABOUTME: Registration and login handlers issuing JWT bearer tokens

package server

import (
	"errors"
	"net/http"

	"github.com/taskstream/assistant/internal/auth"
	"github.com/taskstream/assistant/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{Username: req.Username, Name: req.Name, PasswordHash: hash}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		s.logger.Error("creating user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.issueToken(w, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("loading user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueToken(w, user, http.StatusOK)
}

func (s *Server) issueToken(w http.ResponseWriter, user *store.User, status int) {
	token, err := s.verifier.Generate(user.ID, auth.DefaultTokenTTL)
	if err != nil {
		s.logger.Error("issuing token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, UserID: user.ID, Username: user.Username})
}
