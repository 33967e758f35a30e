// Package session keeps per-visitor dashboard state in memory.
package session

import (
	"sync"
	"time"

	"formdwatch/internal/models"
)

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FilingsState is owned by the filings view. It never holds chat data.
type FilingsState struct {
	// Last is the last successful result. A failed fetch leaves it in place.
	Last      *models.FilingResult
	Requested models.DateRange
	Error     string
}

// ChatState is owned by the chat panel. It never holds filing data.
type ChatState struct {
	APIKey  string
	Error   string
	History []Message
}

// State is one visitor's session. Filings and Chat are disjoint; each
// accessor takes the session lock only for the duration of the callback.
type State struct {
	lastSeen time.Time
	filings  FilingsState
	chat     ChatState
	id       string
	mu       sync.Mutex
}

func newState(id string, now time.Time) *State {
	return &State{id: id, lastSeen: now}
}

// ID returns the session identifier.
func (s *State) ID() string {
	return s.id
}

// Filings returns a copy of the filings sub-state.
func (s *State) Filings() FilingsState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.filings
}

// Chat returns a copy of the chat sub-state with its own history slice.
func (s *State) Chat() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.chat
	c.History = append([]Message(nil), s.chat.History...)

	return c
}

// UpdateFilings mutates the filings sub-state under the session lock.
func (s *State) UpdateFilings(fn func(f *FilingsState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.filings)
}

// UpdateChat mutates the chat sub-state under the session lock.
func (s *State) UpdateChat(fn func(c *ChatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.chat)
}

// RecordFetch applies the outcome of a fetch. On success the result replaces
// the previous one and the error clears; on failure only the error changes.
func (s *State) RecordFetch(requested models.DateRange, result *models.FilingResult, errMsg string) {
	s.UpdateFilings(func(f *FilingsState) {
		f.Requested = requested

		if result != nil {
			f.Last = result
			f.Error = ""

			return
		}

		f.Error = errMsg
	})
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *State) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.lastSeen)
}
