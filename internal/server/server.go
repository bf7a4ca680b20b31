// Package server wires the session manager, authorization guard and kanban
// repositories into the HTTP API.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alandsidel/kanban/internal/auth"
	"github.com/alandsidel/kanban/internal/config"
	"github.com/alandsidel/kanban/internal/kanban"
	"github.com/alandsidel/kanban/internal/session"
)

type Server struct {
	cfg      config.Config
	repo     *kanban.Repository
	guard    *auth.Guard
	sessions *session.Manager
	handler  http.Handler
}

func New(cfg config.Config, repo *kanban.Repository, guard *auth.Guard, sessions *session.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		repo:     repo,
		guard:    guard,
		sessions: sessions,
	}

	r := mux.NewRouter()

	r.HandleFunc("/api/authcheck", s.handleAuthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/signup", s.handleSignup).Methods(http.MethodPost)

	r.HandleFunc("/api/projects/", s.handleListProjects).Methods(http.MethodGet)
	r.HandleFunc("/api/projects/{projectName}", s.handleCreateProject).Methods(http.MethodPut)
	r.HandleFunc("/api/projects/{projectId}", s.handleDeleteProject).Methods(http.MethodDelete)

	r.HandleFunc("/api/buckets/{projectId}", s.handleBoard).Methods(http.MethodGet)

	r.HandleFunc("/api/task/{projectId}", s.handleCreateTask).Methods(http.MethodPut)
	r.HandleFunc("/api/task/{taskId}", s.handleUpdateTask).Methods(http.MethodPost)
	r.HandleFunc("/api/task/{fromBucketId}/{taskId}", s.handleDeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/api/movetask/{taskId}/{fromBucketId}/{toBucketId}", s.handleMoveTask).Methods(http.MethodPost)

	r.HandleFunc("/api/admin/users", s.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/users/{username}/", s.handleCreateUser).Methods(http.MethodPut)
	r.HandleFunc("/api/admin/users/{username}", s.handleDeleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/api/admin/users/{username}/set-admin/", s.handleSetAdmin).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/users/{username}/set-email", s.handleSetEmail).Methods(http.MethodPost)

	// Preflight requests and forbidden paths never reach the router, so
	// the middleware order is CORS outermost, then session resolution,
	// then the guard.
	s.handler = s.corsMiddleware(s.sessionMiddleware(s.guardMiddleware(r)))
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
