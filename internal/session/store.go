// Package session provides the in-memory conversation session store.
// Sessions live for the life of the process; there is no persistence.
package session

import (
	"sync"
	"time"

	"github.com/choosielabs/choosie/internal/domain"
)

// entry pairs a session with the mutex that serializes its turns.
type entry struct {
	mu   sync.Mutex
	sess *domain.Session
}

// Store holds all sessions, keyed by the caller-supplied opaque id.
// Sessions are created lazily on first reference and never destroyed.
//
// Concurrency contract: all mutation of a given session happens inside
// WithSession, which holds that session's mutex for the duration of the
// callback. The convenience methods (Append, Trim, History, ...) take the
// same lock themselves and must not be called from inside a WithSession
// callback.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) entryFor(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	now := time.Now()
	e = &entry{sess: &domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}}
	s.entries[id] = e
	return e
}

// WithSession runs fn with exclusive access to the session, creating it
// if needed. Concurrent turns on the same session are fully serialized;
// turns on different sessions proceed independently.
func (s *Store) WithSession(id string, fn func(*domain.Session)) {
	e := s.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
}

// GetOrCreate returns the session for id, creating an empty one if it
// does not exist. Idempotent.
func (s *Store) GetOrCreate(id string) *domain.Session {
	return s.entryFor(id).sess
}

// Append adds a message to the session history.
func (s *Store) Append(id string, role domain.Role, content string) {
	s.WithSession(id, func(sess *domain.Session) {
		sess.Append(domain.Message{Role: role, Content: content})
	})
}

// Trim retains only the most recent max messages of the session.
func (s *Store) Trim(id string, max int) {
	s.WithSession(id, func(sess *domain.Session) {
		sess.Trim(max)
	})
}

// History returns a copy of the session's message sequence.
func (s *Store) History(id string) []domain.Message {
	var out []domain.Message
	s.WithSession(id, func(sess *domain.Session) {
		out = sess.History()
	})
	return out
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ClearExpiredOffers discards pending offers whose confirmation window has
// passed. Returns the number of offers cleared.
func (s *Store) ClearExpiredOffers(now time.Time) int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	cleared := 0
	for _, id := range ids {
		s.WithSession(id, func(sess *domain.Session) {
			if sess.Pending != nil && sess.Pending.Expired(now) {
				sess.TakePending()
				cleared++
			}
		})
	}
	return cleared
}
