package session

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store maps session IDs to state. It is safe for concurrent use.
type Store struct {
	now      func() time.Time
	sessions map[string]*State
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		now:      time.Now,
		sessions: make(map[string]*State),
		ttl:      ttl,
	}
}

// Get returns the live session for id, if any, and marks it as seen.
func (s *Store) Get(id string) (*State, bool) {
	if id == "" {
		return nil, false
	}

	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	now := s.now()
	if st.idleSince(now) > s.ttl {
		s.Delete(id)
		return nil, false
	}

	st.touch(now)

	return st, true
}

// Create starts a new session with a random ID.
func (s *Store) Create() *State {
	st := newState(uuid.NewString(), s.now())

	s.mu.Lock()
	s.sessions[st.id] = st
	s.mu.Unlock()

	return st
}

// GetOrCreate returns the session for id or a fresh one; created reports
// whether a new session was made.
func (s *Store) GetOrCreate(id string) (st *State, created bool) {
	if st, ok := s.Get(id); ok {
		return st, false
	}

	return s.Create(), true
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.RLock()
	all := slices.Collect(maps.Values(s.sessions))
	s.mu.RUnlock()

	removed := 0

	for _, st := range all {
		if st.idleSince(now) > s.ttl {
			s.Delete(st.id)
			removed++
		}
	}

	return removed
}
