package session

import (
	"fmt"
	"net/http"
	"time"
)

// Manager binds stored sessions to requests through the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieOptions
	now    func() time.Time
}

// NewManager creates a Manager persisting sessions in store for ttl.
func NewManager(store Store, ttl time.Duration, cookie CookieOptions) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		cookie: cookie,
		now:    time.Now,
	}
}

// Load returns the caller's session, or a fresh empty one when the request
// carries no cookie or the stored session is gone.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		values, err := m.store.Load(r.Context(), cookie.Value)
		if err != nil {
			return nil, fmt.Errorf("session: load: %w", err)
		}
		if values != nil {
			return newSession(cookie.Value, values, false), nil
		}
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	return newSession(id, nil, true), nil
}

// Save persists a modified session and refreshes the cookie. It must be
// called before the response headers are written.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if !s.modified {
		return nil
	}

	if len(s.values) == 0 {
		if !s.isNew {
			if err := m.store.Delete(r.Context(), s.id); err != nil {
				return fmt.Errorf("session: delete: %w", err)
			}
			ClearCookie(w, m.cookie)
		}
		s.modified = false
		return nil
	}

	if err := m.store.Save(r.Context(), s.id, s.snapshot(), m.ttl); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	SetCookie(w, s.id, m.now().Add(m.ttl), m.cookie)
	s.modified = false
	return nil
}
