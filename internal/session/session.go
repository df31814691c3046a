package session

import (
	"sync"
	"time"

	"github.com/bookrag/bookrag/internal/schema"
)

// Session holds one CLI conversation's turns. The turns are the caller-side
// history handed to the assistant with each query.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	mu    sync.Mutex
	turns []schema.Turn
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{Key: key, CreatedAt: now, UpdatedAt: now, Metadata: map[string]any{}}
}

// AddExchange appends one user query and the assistant's reply.
func (s *Session) AddExchange(query, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns,
		schema.Turn{Role: "user", Content: query},
		schema.Turn{Role: "assistant", Content: response},
	)
	s.UpdatedAt = time.Now()
}

// History returns the last maxTurns turns; zero returns all.
func (s *Session) History(maxTurns int) []schema.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return append([]schema.Turn(nil), turns...)
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Clear drops all turns.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.UpdatedAt = time.Now()
}

func (s *Session) snapshot() (turns []schema.Turn, meta map[string]any, created time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Turn(nil), s.turns...), s.Metadata, s.CreatedAt
}
