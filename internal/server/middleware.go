package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alandsidel/kanban/internal/session"
)

type sessionContextKey struct{}

// sessionFrom extracts the request's resolved session. The session
// middleware guarantees it is present for every non-OPTIONS request that
// reaches a handler.
func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionContextKey{}).(*session.Session)
	return s
}

// sessionMiddleware resolves (or creates) the session for each request and
// attaches it to the context. OPTIONS requests don't carry credentials and
// are passed through untouched.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Resolve(w, r)
		if err != nil {
			slog.Error("failed to resolve session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guardMiddleware applies the blanket authorization policy before any
// business logic runs.
func (s *Server) guardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if err := s.guard.Authorize(r.Context(), sessionFrom(r), r.Method, r.URL.Path); err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows credentialed requests from the configured origins
// and answers preflight requests directly.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Origins {
		if origin == allowed {
			return true
		}
	}
	return false
}
