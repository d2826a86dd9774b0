// Package testutil holds in-memory stand-ins shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

// DataAPI is an in-memory ports.DataAPI that counts calls per operation.
// Set the exported fields before handing it to the code under test; use
// SetErr to change failure behavior while calls may be in flight.
type DataAPI struct {
	Events     []catalog.Event
	Categories []catalog.Category
	Tickets    map[string][]catalog.Ticket
	Admin      catalog.AdminStats
	// PageSize > 0 splits ListEvents into pages.
	PageSize int

	mu       sync.Mutex
	err      error
	calls    map[string]int
	bookings []catalog.BookingRequest
}

// NewDataAPI returns an empty DataAPI.
func NewDataAPI() *DataAPI {
	return &DataAPI{Tickets: make(map[string][]catalog.Ticket), calls: make(map[string]int)}
}

// SetErr makes every following call fail with err (nil restores success).
func (f *DataAPI) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Count reports how many times an operation was called: "events", "event",
// "categories", "tickets", "admin" or "booking".
func (f *DataAPI) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// Bookings returns every booking request received.
func (f *DataAPI) Bookings() []catalog.BookingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.BookingRequest(nil), f.bookings...)
}

func (f *DataAPI) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *DataAPI) ListEvents(_ context.Context, filter catalog.EventFilter) ([]catalog.Event, catalog.Pagination, error) {
	if err := f.record("events"); err != nil {
		return nil, catalog.Pagination{}, err
	}
	if f.PageSize == 0 {
		return f.Events, catalog.Pagination{Page: 1, Pages: 1, Total: len(f.Events)}, nil
	}

	pages := (len(f.Events) + f.PageSize - 1) / f.PageSize
	page := filter.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * f.PageSize
	if start >= len(f.Events) {
		return nil, catalog.Pagination{Page: page, Pages: pages, Total: len(f.Events)}, nil
	}
	end := start + f.PageSize
	if end > len(f.Events) {
		end = len(f.Events)
	}
	return f.Events[start:end], catalog.Pagination{Page: page, Limit: f.PageSize, Pages: pages, Total: len(f.Events)}, nil
}

func (f *DataAPI) GetEvent(_ context.Context, id string) (*catalog.Event, error) {
	if err := f.record("event"); err != nil {
		return nil, err
	}
	for _, e := range f.Events {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (f *DataAPI) ListCategories(context.Context) ([]catalog.Category, error) {
	if err := f.record("categories"); err != nil {
		return nil, err
	}
	return f.Categories, nil
}

func (f *DataAPI) ListUserTickets(_ context.Context, userID string) ([]catalog.Ticket, error) {
	if err := f.record("tickets"); err != nil {
		return nil, err
	}
	return f.Tickets[userID], nil
}

func (f *DataAPI) GetAdminStats(context.Context) (catalog.AdminStats, error) {
	if err := f.record("admin"); err != nil {
		return catalog.AdminStats{}, err
	}
	return f.Admin, nil
}

func (f *DataAPI) CreateBooking(_ context.Context, req catalog.BookingRequest) (catalog.BookingRecord, error) {
	if err := f.record("booking"); err != nil {
		return catalog.BookingRecord{}, err
	}
	f.mu.Lock()
	f.bookings = append(f.bookings, req)
	f.mu.Unlock()
	return catalog.BookingRecord{EventID: req.EventID, TicketType: req.TicketType, Quantity: req.Quantity, Status: "pending"}, nil
}
