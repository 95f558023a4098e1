package session

// Session is the per-request view of a stored session. Mutations are kept
// in memory until Manager.Save persists them.
type Session struct {
	id       string
	values   Values
	isNew    bool
	modified bool
}

func newSession(id string, values Values, isNew bool) *Session {
	if values == nil {
		values = Values{}
	}
	return &Session{id: id, values: values, isNew: isNew}
}

// ID returns the opaque identifier carried in the session cookie.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.modified = true
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.modified = true
}

// Modified reports whether the session has unsaved changes.
func (s *Session) Modified() bool {
	return s.modified
}

func (s *Session) snapshot() Values {
	out := make(Values, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
