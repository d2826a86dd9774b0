// Package pending stores the single pending navigation of each session, the
// target a user returns to after fixing access (usually after logging in).
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
)

type memoryEntry struct {
	nav     chat.NavigatePayload
	expires time.Time
}

// MemoryStore keeps pending navigations in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
	ttl     time.Duration
}

// NewMemoryStore creates a store. ttl <= 0 keeps entries until consumed.
func NewMemoryStore(clk clock.Clock, ttl time.Duration) *MemoryStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), clock: clk, ttl: ttl}
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, nav chat.NavigatePayload) error {
	e := memoryEntry{nav: copyNav(nav)}
	if s.ttl > 0 {
		e.expires = s.clock.Now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[sessionID] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (chat.NavigatePayload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav, ok := s.lookup(sessionID)
	return nav, ok, nil
}

func (s *MemoryStore) Consume(_ context.Context, sessionID string) (chat.NavigatePayload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav, ok := s.lookup(sessionID)
	delete(s.entries, sessionID)
	return nav, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(sessionID string) (chat.NavigatePayload, bool) {
	e, ok := s.entries[sessionID]
	if !ok {
		return chat.NavigatePayload{}, false
	}
	if !e.expires.IsZero() && !s.clock.Now().Before(e.expires) {
		delete(s.entries, sessionID)
		return chat.NavigatePayload{}, false
	}
	return copyNav(e.nav), true
}

func copyNav(nav chat.NavigatePayload) chat.NavigatePayload {
	if nav.Params == nil {
		return nav
	}
	params := make(map[string]string, len(nav.Params))
	for k, v := range nav.Params {
		params[k] = v
	}
	nav.Params = params
	return nav
}

var _ ports.PendingStore = (*MemoryStore)(nil)
