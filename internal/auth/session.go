// Package auth signs brokers in and keeps their sessions.
//
// Sessions are explicit objects held by a Manager and referenced by an
// opaque cookie. Handlers read the current session from the request
// context; nothing is cached in package state.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoSession          = errors.New("not signed in")
)

// User is a signed-in identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is one sign-in. AccessToken is set when the identity provider
// issues one and is forwarded to it on data requests.
type Session struct {
	ID          string
	User        User
	AccessToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ManagerConfig configures session lifetime and the cookie.
type ManagerConfig struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// Manager stores sessions in memory.
type Manager struct {
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewManager creates an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "sb_session"
	}
	return &Manager{
		ttl:      cfg.TTL,
		cookie:   cfg.CookieName,
		secure:   cfg.CookieSecure,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Create starts a session for u.
func (m *Manager) Create(u User, accessToken string) Session {
	now := m.now()
	s := Session{
		ID:          uuid.NewString(),
		User:        u,
		AccessToken: accessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session. Expired sessions are removed on access.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if s.Expired(m.now()) {
		m.Destroy(id)
		return Session{}, false
	}
	return s, true
}

// Destroy ends a session.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Count returns the number of stored sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetCookie writes the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, s Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest looks up the session named by the request cookie.
func (m *Manager) FromRequest(r *http.Request) (Session, bool) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	return m.Get(c.Value)
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the session stored by WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// SignOut ends the session named by the request cookie and expires the
// cookie.
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
		m.Destroy(c.Value)
	}
	m.ClearCookie(w)
}
