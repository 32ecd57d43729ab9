// Package session tracks conversation threads: lifecycle metadata per thread
// plus a manager that serializes history writes so hosts may run turns for
// different threads in parallel.
package session

import (
	"time"
)

// State represents the state of a session
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateClosed   State = "closed"
)

// Session holds lifecycle metadata for one conversation thread.
type Session struct {
	id        string
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

// NewSession initializes metadata for a thread.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		State:     StateActive,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// SetState updates the session state
func (s *Session) SetState(state State) {
	s.State = state
	s.UpdatedAt = time.Now()
}

// Touch bumps the last-activity timestamp.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// SetMetadata sets metadata for the session
func (s *Session) SetMetadata(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = value
	s.UpdatedAt = time.Now()
}

// GetMetadata returns metadata for the session
func (s *Session) GetMetadata(key string) (any, bool) {
	if s.Metadata == nil {
		return nil, false
	}
	value, ok := s.Metadata[key]
	return value, ok
}
