package knowledge

import (
	"sync"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/cache"
)

// Resource names an independently refreshed slice of Memory.
type Resource string

const (
	ResourceEvents      Resource = "events"
	ResourceCategories  Resource = "categories"
	ResourceTickets     Resource = "tickets"
	ResourceSystemStats Resource = "systemStats"
)

// Resources lists every resource in refresh order.
var Resources = []Resource{ResourceEvents, ResourceCategories, ResourceTickets, ResourceSystemStats}

// Preferences are lightweight hints gathered during the session.
type Preferences struct {
	Categories []string `json:"categories,omitempty"`
}

// Memory is what one session currently knows. Collections change only through
// the Update* methods, which replace them wholesale and recompute Stats.
type Memory struct {
	mu          sync.RWMutex
	clock       clock.Clock
	events      []catalog.Event
	categories  []catalog.Category
	tickets     []catalog.Ticket
	admin       *catalog.AdminStats
	stats       Stats
	lastFetch   map[Resource]time.Time
	preferences Preferences
	search      *cache.Cache
}

// NewMemory creates an empty Memory whose search cache defaults to searchTTL.
func NewMemory(clk clock.Clock, searchTTL time.Duration) *Memory {
	if clk == nil {
		clk = clock.System{}
	}
	return &Memory{
		clock:     clk,
		lastFetch: make(map[Resource]time.Time),
		search:    cache.New(clk, searchTTL),
	}
}

// UpdateEvents replaces the event collection.
func (m *Memory) UpdateEvents(events []catalog.Event) {
	m.update(ResourceEvents, func() {
		m.events = append([]catalog.Event(nil), events...)
	})
}

// UpdateCategories replaces the category collection.
func (m *Memory) UpdateCategories(categories []catalog.Category) {
	m.update(ResourceCategories, func() {
		m.categories = append([]catalog.Category(nil), categories...)
	})
}

// UpdateTickets replaces the ticket collection.
func (m *Memory) UpdateTickets(tickets []catalog.Ticket) {
	m.update(ResourceTickets, func() {
		m.tickets = append([]catalog.Ticket(nil), tickets...)
	})
}

// UpdateAdminStats replaces the system-wide statistics.
func (m *Memory) UpdateAdminStats(admin catalog.AdminStats) {
	m.update(ResourceSystemStats, func() {
		m.admin = &admin
	})
}

func (m *Memory) update(res Resource, apply func()) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	apply()
	m.lastFetch[res] = now
	m.stats = ComputeStats(m.events, m.categories, m.tickets, now)
}

// ResetUserScope forgets everything fetched on behalf of the previous user:
// tickets, system statistics, their fetch stamps and cached searches.
func (m *Memory) ResetUserScope() {
	m.mu.Lock()
	m.tickets = nil
	m.admin = nil
	delete(m.lastFetch, ResourceTickets)
	delete(m.lastFetch, ResourceSystemStats)
	m.stats = ComputeStats(m.events, m.categories, nil, m.clock.Now())
	m.mu.Unlock()

	m.search.Clear()
}

// LastFetch returns when res was last replaced.
func (m *Memory) LastFetch(res Resource) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.lastFetch[res]
	return t, ok
}

// CacheSearch stores a search result set. ttl <= 0 uses the cache default.
func (m *Memory) CacheSearch(key string, results []any, ttl time.Duration) {
	m.search.Put(key, results, ttl)
}

// LookupSearch returns a still-valid cached search result set.
func (m *Memory) LookupSearch(key string) ([]any, bool) {
	return m.search.Get(key)
}

// SweepSearch drops expired search results.
func (m *Memory) SweepSearch() int {
	return m.search.Sweep()
}

// ClearSearch forgets every cached search result.
func (m *Memory) ClearSearch() {
	m.search.Clear()
}

// Events returns a copy of the event collection.
func (m *Memory) Events() []catalog.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.Event(nil), m.events...)
}

// Stats returns the statistics computed at the last update.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyStats(m.stats)
}

// Preferences returns the session's gathered preferences.
func (m *Memory) Preferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Preferences{Categories: append([]string(nil), m.preferences.Categories...)}
}

// RememberCategory records interest in a category, most recent first.
func (m *Memory) RememberCategory(categoryID string) {
	if categoryID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := []string{categoryID}
	for _, c := range m.preferences.Categories {
		if c != categoryID {
			kept = append(kept, c)
		}
	}
	if len(kept) > 5 {
		kept = kept[:5]
	}
	m.preferences.Categories = kept
}

// Snapshot is a consistent copy of Memory at one point in time.
type Snapshot struct {
	Events     []catalog.Event        `json:"events"`
	Categories []catalog.Category     `json:"categories"`
	Tickets    []catalog.Ticket       `json:"tickets"`
	Stats      Stats                  `json:"stats"`
	Admin      *catalog.AdminStats    `json:"admin,omitempty"`
	LastFetch  map[Resource]time.Time `json:"lastFetch"`
}

// Snapshot copies the current knowledge.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Events:     append([]catalog.Event(nil), m.events...),
		Categories: append([]catalog.Category(nil), m.categories...),
		Tickets:    append([]catalog.Ticket(nil), m.tickets...),
		Stats:      copyStats(m.stats),
		LastFetch:  make(map[Resource]time.Time, len(m.lastFetch)),
	}
	if m.admin != nil {
		admin := *m.admin
		snap.Admin = &admin
	}
	for k, v := range m.lastFetch {
		snap.LastFetch[k] = v
	}
	return snap
}

// VisibleTo drops what user may not see: system statistics for non-admins
// and tickets when nobody is signed in.
func (s Snapshot) VisibleTo(user *catalog.User) Snapshot {
	if !user.IsAdmin() {
		s.Admin = nil
	}
	if user == nil {
		s.Tickets = nil
	}
	return s
}

func copyStats(s Stats) Stats {
	s.PopularCategories = append([]CategoryCount(nil), s.PopularCategories...)
	return s
}
