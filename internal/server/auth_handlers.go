package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alandsidel/kanban/internal/auth"
	"github.com/alandsidel/kanban/internal/models"
)

// userShape is what the frontend gets back about the logged-in user.
type userShape struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

type credentialsRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess.Username() == "" {
		http.Error(w, "logged out", http.StatusUnauthorized)
		return
	}

	user, err := s.repo.GetUser(r.Context(), sess.Username())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Account deleted out from under a live session.
			http.Error(w, "logged out", http.StatusUnauthorized)
			return
		}
		slog.Error("authcheck failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, userShape{Username: user.Username, IsAdmin: user.IsAdmin})
}

// handleLogin authenticates and promotes the session. Every failure mode
// returns the same generic message so usernames can't be probed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	const genericFailure = "Login failed"

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		http.Error(w, genericFailure, http.StatusUnauthorized)
		return
	}

	user, err := s.repo.GetUser(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			slog.Error("login lookup failed", "error", err)
		}
		http.Error(w, genericFailure, http.StatusUnauthorized)
		return
	}

	if !auth.VerifyPassword(user.Password, req.Password) {
		http.Error(w, genericFailure, http.StatusUnauthorized)
		return
	}

	sess := sessionFrom(r)
	sess.SetIdentity(user.Username, user.IsAdmin)

	// Swap to a fresh session ID on privilege change so a fixated
	// pre-login ID can't ride along into the authenticated session.
	if err := s.sessions.Regenerate(w, r, sess); err != nil {
		slog.Error("failed to regenerate session", "error", err)
		http.Error(w, genericFailure, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, userShape{Username: user.Username, IsAdmin: user.IsAdmin})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r, sessionFrom(r)); err != nil {
		slog.Error("logout failed", "error", err)
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleSignup self-registers a regular (non-admin) account.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("signup hash failed", "error", err)
		http.Error(w, "Failed to sign up", http.StatusInternalServerError)
		return
	}

	if err := s.repo.CreateUser(r.Context(), username, hash, false, req.Email); err != nil {
		writeOpError(w, "Failed to sign up", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
