// Package session keeps per-session conversation state and knowledge in
// memory for the lifetime of the process.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTurnInProgress  = errors.New("a message is already being processed for this session")
)

type entry struct {
	info   chat.Session
	state  State
	memory *knowledge.Memory
	busy   bool
}

// Store holds every live session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	clock    clock.Clock
	cacheTTL time.Duration
}

// NewStore creates an empty store. cacheTTL is the default lifetime of each
// session's cached search results.
func NewStore(clk clock.Clock, cacheTTL time.Duration) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{
		sessions: make(map[string]*entry),
		clock:    clk,
		cacheTTL: cacheTTL,
	}
}

// Create provisions a session for user (nil for a guest).
func (s *Store) Create(_ context.Context, user *catalog.User) (chat.Session, error) {
	info := chat.Session{
		ID:        uuid.NewString(),
		User:      copyUser(user),
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &entry{
		info:   info,
		state:  State{Messages: make([]chat.Message, 0, 16)},
		memory: knowledge.NewMemory(s.clock, s.cacheTTL),
	}
	s.mu.Unlock()

	return info, nil
}

// Get retrieves a session by identifier.
func (s *Store) Get(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.info, nil
}

// SetUser attaches an authenticated user to the session (nil signs out).
// When the identity or role changes, knowledge fetched for the previous user
// is dropped.
func (s *Store) SetUser(_ context.Context, sessionID string, user *catalog.User) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if !sameIdentity(e.info.User, user) {
		e.memory.ResetUserScope()
	}
	e.info.User = copyUser(user)
	return e.info, nil
}

func sameIdentity(a, b *catalog.User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID && a.Role == b.Role
}

// State returns a copy of the session's current state.
func (s *Store) State(_ context.Context, sessionID string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	return copyState(e.state), nil
}

// Memory returns the session's knowledge.
func (s *Store) Memory(sessionID string) (*knowledge.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.memory, nil
}

// Dispatch applies ev through Reduce and returns the new state.
func (s *Store) Dispatch(_ context.Context, sessionID string, ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return State{}, ErrSessionNotFound
	}
	e.state = Reduce(e.state, ev)
	return copyState(e.state), nil
}

// BeginTurn claims the session for one message. The returned release func
// must be called when the turn ends.
func (s *Store) BeginTurn(sessionID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.busy {
		return nil, ErrTurnInProgress
	}
	e.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			e.busy = false
			s.mu.Unlock()
		})
	}, nil
}

// NewMessage stamps a message with a fresh id and the store's clock.
func (s *Store) NewMessage(role chat.Role, content string, metadata map[string]any) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.clock.Now(),
		Metadata:  metadata,
	}
}

// Len counts live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops expired search results from every session.
func (s *Store) Sweep() int {
	s.mu.RLock()
	memories := make([]*knowledge.Memory, 0, len(s.sessions))
	for _, e := range s.sessions {
		memories = append(memories, e.memory)
	}
	s.mu.RUnlock()

	removed := 0
	for _, m := range memories {
		removed += m.SweepSearch()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Printf("[session] swept %d expired search results", removed)
			}
		}
	}
}

func copyState(st State) State {
	st.Messages = append([]chat.Message(nil), st.Messages...)
	return st
}

func copyUser(u *catalog.User) *catalog.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
