// Package knowledge keeps a session's view of the storefront catalog fresh
// and derives aggregate statistics from it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
)

const (
	// DefaultMaxAge is how old a collection may get before a normal refresh
	// goes back to the data API.
	DefaultMaxAge = 60 * time.Second

	eventPageSize = 100
	maxEventPages = 20
)

// Synchronizer pulls snapshots from the data API into a Memory.
type Synchronizer struct {
	api    ports.DataAPI
	clock  clock.Clock
	maxAge time.Duration
}

// NewSynchronizer creates a Synchronizer. maxAge <= 0 uses DefaultMaxAge.
func NewSynchronizer(api ports.DataAPI, clk clock.Clock, maxAge time.Duration) *Synchronizer {
	if clk == nil {
		clk = clock.System{}
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Synchronizer{api: api, clock: clk, maxAge: maxAge}
}

// Stale reports whether res must be fetched. A forced refresh uses a zero
// threshold.
func (s *Synchronizer) Stale(mem *Memory, res Resource, force bool) bool {
	if force {
		return true
	}
	last, ok := mem.LastFetch(res)
	if !ok {
		return true
	}
	return s.clock.Now().Sub(last) > s.maxAge
}

// Refresh brings one resource up to date. Fresh data replaces the collection
// in full; a failed fetch leaves the previous collection untouched and returns
// a *FetchError. System statistics require an admin user.
func (s *Synchronizer) Refresh(ctx context.Context, mem *Memory, user *catalog.User, res Resource, force bool) error {
	if res == ResourceSystemStats && !user.IsAdmin() {
		return ErrAdminRequired
	}
	if res == ResourceTickets && user == nil {
		return nil
	}
	if !s.Stale(mem, res, force) {
		return nil
	}

	if err := s.fetch(ctx, mem, user, res); err != nil {
		log.Printf("[knowledge] warning: refresh %s failed, keeping previous data: %v", res, err)
		return &FetchError{Resource: res, Err: err}
	}
	return nil
}

// RefreshAll refreshes every resource the user may read and returns the
// warnings of the ones that failed.
func (s *Synchronizer) RefreshAll(ctx context.Context, mem *Memory, user *catalog.User, force bool) []error {
	var warnings []error
	for _, res := range Resources {
		err := s.Refresh(ctx, mem, user, res, force)
		if err == nil || errors.Is(err, ErrAdminRequired) {
			continue
		}
		warnings = append(warnings, err)
	}
	return warnings
}

func (s *Synchronizer) fetch(ctx context.Context, mem *Memory, user *catalog.User, res Resource) error {
	switch res {
	case ResourceEvents:
		events, err := s.fetchEvents(ctx)
		if err != nil {
			return err
		}
		mem.UpdateEvents(events)
	case ResourceCategories:
		categories, err := s.api.ListCategories(ctx)
		if err != nil {
			return err
		}
		mem.UpdateCategories(categories)
	case ResourceTickets:
		tickets, err := s.api.ListUserTickets(ctx, user.ID)
		if err != nil {
			return err
		}
		mem.UpdateTickets(tickets)
	case ResourceSystemStats:
		admin, err := s.api.GetAdminStats(ctx)
		if err != nil {
			return err
		}
		mem.UpdateAdminStats(admin)
	default:
		return fmt.Errorf("unknown resource %q", res)
	}
	return nil
}

// fetchEvents walks every page so the replacement collection is complete.
func (s *Synchronizer) fetchEvents(ctx context.Context) ([]catalog.Event, error) {
	var all []catalog.Event
	for page := 1; page <= maxEventPages; page++ {
		events, pagination, err := s.api.ListEvents(ctx, catalog.EventFilter{Page: page, Limit: eventPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		if pagination.Pages <= page || len(events) == 0 {
			break
		}
	}
	return all, nil
}
