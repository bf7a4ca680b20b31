package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/alandsidel/kanban/internal/auth"
)

// The guard already rejects non-admins under /api/admin/, but each handler
// re-checks the session flag so these endpoints stay safe even if routed
// differently someday.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !sessionFrom(r).IsAdmin() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// respondUsers sends the refreshed account list, the payload the admin UI
// re-renders from after every mutation.
func (s *Server) respondUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "Failed fetching users", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	s.respondUsers(w, r)
}

type adminUserRequest struct {
	Password string  `json:"password"`
	IsAdmin  bool    `json:"is_admin"`
	Email    *string `json:"email"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	username := strings.TrimSpace(mux.Vars(r)["username"])
	var req adminUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || username == "" || req.Password == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	var email *string
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		if trimmed != "" {
			email = &trimmed
		}
	}

	if err := s.repo.CreateUser(r.Context(), username, hash, req.IsAdmin, email); err != nil {
		writeOpError(w, "Failed to create user", err)
		return
	}

	s.respondUsers(w, r)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	username := strings.TrimSpace(mux.Vars(r)["username"])
	if username == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if username == sessionFrom(r).Username() {
		http.Error(w, "Cannot delete self", http.StatusBadRequest)
		return
	}

	if err := s.repo.DeleteUser(r.Context(), username); err != nil {
		slog.Error("failed to delete user", "error", err)
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	s.respondUsers(w, r)
}

type setAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	username := strings.TrimSpace(mux.Vars(r)["username"])
	if username == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if username == sessionFrom(r).Username() {
		http.Error(w, "Cannot toggle own admin status", http.StatusBadRequest)
		return
	}

	var req setAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := s.repo.SetAdmin(r.Context(), username, req.IsAdmin); err != nil {
		slog.Error("failed to set admin status", "error", err)
		http.Error(w, "Failed setting admin status", http.StatusInternalServerError)
		return
	}

	s.respondUsers(w, r)
}

type setEmailRequest struct {
	Email *string `json:"email"`
}

func (s *Server) handleSetEmail(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	username := strings.TrimSpace(mux.Vars(r)["username"])
	if username == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var req setEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var email *string
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		if trimmed != "" {
			email = &trimmed
		}
	}

	if err := s.repo.SetEmail(r.Context(), username, email); err != nil {
		slog.Error("failed to update user", "error", err)
		http.Error(w, "Failed to update user", http.StatusInternalServerError)
		return
	}

	s.respondUsers(w, r)
}
