// Package session resolves HTTP requests to server-side session state.
// Sessions are identified by an opaque UUID cookie and persisted through a
// pluggable store; the manager owns cookie issuance, rolling expiration and
// ID regeneration.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alandsidel/kanban/internal/store"
	"github.com/google/uuid"
)

// Session value keys. The payload is a free-form bag; these are the keys
// the application cares about.
const (
	KeyUsername = "username"
	KeyIsAdmin  = "isAdmin"
)

// Session is the per-request view of a stored session.
type Session struct {
	ID     string
	Values map[string]any
	// IsNew marks sessions created for this request rather than resolved
	// from the store.
	IsNew bool
}

// Username returns the logged-in username, or "" for anonymous sessions.
func (s *Session) Username() string {
	if v, ok := s.Values[KeyUsername].(string); ok {
		return v
	}
	return ""
}

// IsAdmin reports whether the session carries an admin identity.
func (s *Session) IsAdmin() bool {
	if v, ok := s.Values[KeyIsAdmin].(bool); ok {
		return v
	}
	return false
}

// SetIdentity records a login in the session payload.
func (s *Session) SetIdentity(username string, isAdmin bool) {
	s.Values[KeyUsername] = username
	s.Values[KeyIsAdmin] = isAdmin
}

// Manager ties the session store to HTTP cookies.
type Manager struct {
	store      store.Store
	cookieName string
	lifetime   time.Duration
	secure     *bool
}

// Config configures a Manager. Zero values get safe defaults.
type Config struct {
	Store      store.Store
	CookieName string        // default "sessionid"
	Lifetime   time.Duration // default 24h, used for the cookie MaxAge
	// Secure overrides the cookie Secure attribute. When nil it follows
	// whether the request arrived over TLS.
	Secure *bool
}

func NewManager(cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "sessionid"
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = 24 * time.Hour
	}
	return &Manager{
		store:      cfg.Store,
		cookieName: cfg.CookieName,
		lifetime:   cfg.Lifetime,
		secure:     cfg.Secure,
	}
}

// Store exposes the underlying store for administrative use.
func (m *Manager) Store() store.Store {
	return m.store
}

// New creates an anonymous session with a fresh ID. It is not persisted
// until Save is called.
func (m *Manager) New() *Session {
	return &Session{
		ID:     uuid.NewString(),
		Values: make(map[string]any),
		IsNew:  true,
	}
}

// Resolve returns the session for the request's cookie, creating and
// persisting a fresh anonymous session when the cookie is absent, invalid,
// or no longer resolves. Resolved sessions are touched so activity extends
// their lifetime (rolling sessions), and the cookie is re-issued with the
// pushed-out expiry.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err == nil {
		// Validate the ID format before it reaches the store. Anything
		// that isn't a UUID is treated the same as no cookie at all.
		if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			values, err := m.store.Get(r.Context(), cookie.Value)
			if err != nil {
				return nil, err
			}
			if values != nil {
				s := &Session{ID: cookie.Value, Values: values}
				if err := m.store.Touch(r.Context(), s.ID); err != nil {
					return nil, err
				}
				m.setCookie(w, r, s.ID)
				return s, nil
			}
		}
	}

	// First visit (or expired/garbage cookie): issue a fresh anonymous
	// session immediately so the ID is stable across the visit.
	s := m.New()
	if err := m.store.Set(r.Context(), s.ID, s.Values); err != nil {
		return nil, err
	}
	m.setCookie(w, r, s.ID)
	return s, nil
}

// Save persists the session payload and re-issues the cookie.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if err := m.store.Set(r.Context(), s.ID, s.Values); err != nil {
		return err
	}
	m.setCookie(w, r, s.ID)
	return nil
}

// Regenerate swaps the session onto a fresh ID, invalidating the old one.
// Called on login to prevent session fixation.
func (m *Manager) Regenerate(w http.ResponseWriter, r *http.Request, s *Session) error {
	oldID := s.ID
	s.ID = uuid.NewString()

	if err := m.store.Set(r.Context(), s.ID, s.Values); err != nil {
		s.ID = oldID
		return err
	}

	if err := m.store.Destroy(r.Context(), oldID); err != nil {
		// Fail closed: if the old ID cannot be invalidated, remove the new
		// session and log the client out rather than leaving two valid IDs.
		_ = m.store.Destroy(r.Context(), s.ID)
		m.clearCookie(w, r)
		return fmt.Errorf("failed to invalidate old session: %w", err)
	}

	m.setCookie(w, r, s.ID)
	return nil
}

// Destroy deletes the session and clears the cookie. The cookie is cleared
// even when store deletion fails so the client ends up logged out.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	m.clearCookie(w, r)
	clear(s.Values)
	return m.store.Destroy(r.Context(), s.ID)
}

func (m *Manager) isSecure(r *http.Request) bool {
	if m.secure != nil {
		return *m.secure
	}
	return r.TLS != nil
}

func (m *Manager) setCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(m.lifetime),
		MaxAge:   int(m.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}
