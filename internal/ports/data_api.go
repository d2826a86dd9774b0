package ports

import (
	"context"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

// DataAPI is the storefront's event/ticket backend. Every listing returns a
// full replacement collection.
type DataAPI interface {
	ListEvents(ctx context.Context, filter catalog.EventFilter) ([]catalog.Event, catalog.Pagination, error)
	// GetEvent returns (nil, nil) when the event does not exist.
	GetEvent(ctx context.Context, id string) (*catalog.Event, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	ListUserTickets(ctx context.Context, userID string) ([]catalog.Ticket, error)
	GetAdminStats(ctx context.Context) (catalog.AdminStats, error)
	CreateBooking(ctx context.Context, req catalog.BookingRequest) (catalog.BookingRecord, error)
}
