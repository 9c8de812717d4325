package application

import "http-proxy/internal/domain"

// SessionRegistry maps connection identities to sessions. A relaying
// session is present under both its downstream and its upstream identity,
// pointing at the same instance.
type SessionRegistry struct {
	sessions map[int]*domain.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[int]*domain.Session)}
}

func (r *SessionRegistry) Insert(id int, sess *domain.Session) {
	r.sessions[id] = sess
}

func (r *SessionRegistry) Get(id int) *domain.Session {
	return r.sessions[id]
}

// Remove deletes every identity mapped to the session id belongs to and
// returns the session. Removing an unknown identity is a no-op.
func (r *SessionRegistry) Remove(id int) *domain.Session {
	sess := r.sessions[id]
	if sess == nil {
		return nil
	}
	delete(r.sessions, id)
	if other := sess.OtherFD(id); other != 0 {
		delete(r.sessions, other)
	}
	return sess
}

func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}

// Each visits every identity mapping, for diagnostics.
func (r *SessionRegistry) Each(fn func(id int, sess *domain.Session)) {
	for id, sess := range r.sessions {
		fn(id, sess)
	}
}
