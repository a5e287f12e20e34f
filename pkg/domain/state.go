package domain

import (
	"maps"
	"slices"
	"time"
)

// MaxHistory bounds the paths kept in State.History.
const MaxHistory = 32

// State is the persisted snapshot of a chat session.
type State struct {
	// SessionID identifies the chat user.
	SessionID string `json:"session_id"`

	// Path is the canonical path of the world state the session rests in.
	Path string `json:"path"`

	// Data holds session variables such as the registered nickname.
	Data map[string]string `json:"data,omitempty"`

	// History lists the most recent paths, oldest first.
	History []string `json:"history,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a clean state resting at path.
func NewState(sessionID, path string) *State {
	s := &State{
		SessionID: sessionID,
		Path:      path,
		Data:      make(map[string]string),
		UpdatedAt: time.Now().UTC(),
	}
	if path != "" {
		s.History = []string{path}
	}
	return s
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = maps.Clone(s.Data)
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	c.History = slices.Clone(s.History)
	return &c
}

// Visit moves the state to path and records it in History.
func (s *State) Visit(path string) {
	s.Path = path
	if n := len(s.History); n > 0 && s.History[n-1] == path {
		return
	}
	s.History = append(s.History, path)
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = slices.Delete(s.History, 0, over)
	}
}
