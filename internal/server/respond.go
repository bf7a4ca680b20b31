package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alandsidel/kanban/internal/models"
)

// errResponse is the error shape the frontend expects for operations that
// can fail with a user-facing reason.
type errResponse struct {
	Msg    string `json:"msg"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeOpError maps a repository error onto the response. Constraint
// violations carry their specific detail; anything else is reported
// generically so persistence internals don't leak.
func writeOpError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)

	resp := errResponse{Msg: msg, Detail: "Unknown error"}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrDuplicate):
		resp.Detail = err.Error()
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrCrossProject):
		resp.Detail = err.Error()
		status = http.StatusBadRequest
	}

	writeJSON(w, status, resp)
}
