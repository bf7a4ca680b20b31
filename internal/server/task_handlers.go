package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/alandsidel/kanban/internal/models"
)

type taskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(mux.Vars(r)["projectId"], 10, 64)
	if err != nil || projectID <= 0 {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Task name is required", http.StatusBadRequest)
		return
	}

	username := sessionFrom(r).Username()
	ok, err := s.guard.CanModifyProject(r.Context(), username, projectID)
	if err != nil {
		slog.Error("failed to check project access", "error", err)
		http.Error(w, "Failed adding new task to project", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.repo.CreateTask(r.Context(), projectID, strings.TrimSpace(req.Name), req.Description); err != nil {
		writeOpError(w, "Failed adding new task to project", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := strconv.ParseInt(mux.Vars(r)["taskId"], 10, 64)
	if err != nil || taskID <= 0 {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	username := sessionFrom(r).Username()
	ok, err := s.guard.CanModifyTask(r.Context(), username, taskID)
	if err != nil {
		slog.Error("failed to check task access", "error", err)
		http.Error(w, "Failed updating task", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "Task name is required", http.StatusBadRequest)
		return
	}

	projectID, err := s.repo.ProjectForTask(r.Context(), taskID)
	if err != nil {
		writeOpError(w, "Failed updating task", err)
		return
	}

	err = s.repo.UpdateTask(r.Context(), taskID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		writeOpError(w, "Failed updating task", err)
		return
	}

	s.respondBoard(w, r, projectID, username)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	taskID, err1 := strconv.ParseInt(vars["taskId"], 10, 64)
	fromBucketID, err2 := strconv.ParseInt(vars["fromBucketId"], 10, 64)
	toBucketID, err3 := strconv.ParseInt(vars["toBucketId"], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	// The source and destination buckets must share a project before any
	// permission question is even asked; an authorized user of two
	// projects still can't drag a task across them.
	fromProject, err := s.repo.ProjectForTaskInBucket(r.Context(), taskID, fromBucketID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		slog.Error("failed to resolve source project", "error", err)
		http.Error(w, "Failed to move task", http.StatusInternalServerError)
		return
	}
	toProject, err2x := s.repo.ProjectForBucket(r.Context(), toBucketID)
	if err2x != nil && !errors.Is(err2x, models.ErrNotFound) {
		slog.Error("failed to resolve destination project", "error", err2x)
		http.Error(w, "Failed to move task", http.StatusInternalServerError)
		return
	}
	if err != nil || err2x != nil || fromProject != toProject {
		http.Error(w, "Cannot move a task from one project to another", http.StatusBadRequest)
		return
	}

	username := sessionFrom(r).Username()
	ok, err := s.guard.CanModifyProject(r.Context(), username, fromProject)
	if err != nil {
		slog.Error("failed to check project access", "error", err)
		http.Error(w, "Failed to move task", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.repo.MoveTask(r.Context(), taskID, fromBucketID, toBucketID); err != nil {
		writeOpError(w, "Failed to move task", err)
		return
	}

	s.respondBoard(w, r, fromProject, username)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	taskID, err1 := strconv.ParseInt(vars["taskId"], 10, 64)
	fromBucketID, err2 := strconv.ParseInt(vars["fromBucketId"], 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "Improper parameters", http.StatusBadRequest)
		return
	}

	projectID, err := s.repo.ProjectForTaskInBucket(r.Context(), taskID, fromBucketID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Cannot delete a task from a different project", http.StatusBadRequest)
			return
		}
		slog.Error("failed to resolve task project", "error", err)
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}

	username := sessionFrom(r).Username()
	ok, err := s.guard.CanModifyProject(r.Context(), username, projectID)
	if err != nil {
		slog.Error("failed to check project access", "error", err)
		http.Error(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.repo.DeleteTask(r.Context(), taskID, fromBucketID); err != nil {
		writeOpError(w, "Failed to delete task", err)
		return
	}

	s.respondBoard(w, r, projectID, username)
}

// respondBoard sends the project's refreshed board state, the payload the
// frontend re-renders from after every task mutation.
func (s *Server) respondBoard(w http.ResponseWriter, r *http.Request, projectID int64, username string) {
	buckets, err := s.repo.Board(r.Context(), projectID, username)
	if err != nil {
		slog.Error("failed to fetch board", "error", err)
		http.Error(w, "Failed fetching buckets", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
