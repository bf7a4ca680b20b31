package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.ListProjects(r.Context(), sessionFrom(r).Username())
	if err != nil {
		slog.Error("failed to list projects", "error", err)
		http.Error(w, "Failed fetching projects", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["projectName"])
	if name == "" {
		http.Error(w, "Project name cannot be empty or 100% whitespace.", http.StatusBadRequest)
		return
	}

	owner := sessionFrom(r).Username()
	if _, err := s.repo.CreateProject(r.Context(), owner, name, s.cfg.DefaultBuckets); err != nil {
		writeOpError(w, "Failed adding new project", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(mux.Vars(r)["projectId"], 10, 64)
	if err != nil || projectID <= 0 {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	username := sessionFrom(r).Username()
	ok, err := s.guard.CanModifyProject(r.Context(), username, projectID)
	if err != nil {
		slog.Error("failed to check project access", "error", err)
		http.Error(w, "Failed to delete project", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.repo.DeleteProject(r.Context(), projectID); err != nil {
		slog.Error("failed to delete project", "error", err)
		http.Error(w, "Failed to delete project", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(mux.Vars(r)["projectId"], 10, 64)
	if err != nil || projectID <= 0 {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	// The query joins through project_users, so a user outside the
	// project simply sees an empty board rather than learning whether it
	// exists.
	buckets, err := s.repo.Board(r.Context(), projectID, sessionFrom(r).Username())
	if err != nil {
		slog.Error("failed to fetch board", "error", err)
		http.Error(w, "Failed fetching buckets", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
