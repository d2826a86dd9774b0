package dataapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/api/", Token: "secret"})
}

func TestListEventsSendsFilterAndToken(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.Equal(t, "jazz", r.URL.Query().Get("search"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"events": [{"id": "e1", "title": "Jazz Night", "pricing": {"vip": 2500},
			            "schedule": {"startDate": "2026-07-01T19:00:00Z", "endDate": "2026-07-01T22:00:00Z"},
			            "capacity": {"total": 100, "available": 3}}],
			"pagination": {"page": 2, "limit": 100, "total": 101, "pages": 2}
		}`))
	})

	events, page, err := client.ListEvents(context.Background(), catalog.EventFilter{Search: "jazz", Page: 2, Limit: 100})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Jazz Night", events[0].Title)
	assert.Equal(t, 2500.0, events[0].Pricing["vip"])
	assert.Equal(t, 3, events[0].Capacity.Available)
	assert.Equal(t, 2, page.Pages)
}

func TestGetEventNotFoundIsNil(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	ev, err := client.GetEvent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestServerErrorIsStatusError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.ListCategories(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "/categories", statusErr.Path)
}

func TestListUserTicketsOptionalTotal(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/u%201/tickets", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"tickets": [{"id": "t1", "eventId": "e1", "price": 500}, {"id": "t2", "eventId": "e1", "price": 500, "totalAmount": 1500}]}`))
	})

	tickets, err := client.ListUserTickets(context.Background(), "u 1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Nil(t, tickets[0].TotalAmount)
	assert.Equal(t, 1500.0, tickets[1].Amount())
}

func TestCreateBookingPostsJSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req catalog.BookingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "vip", req.TicketType)

		_, _ = w.Write([]byte(`{"booking": {"id": "b1", "eventId": "e1", "ticketType": "vip", "quantity": 2, "totalAmount": 5000, "status": "pending"}}`))
	})

	rec, err := client.CreateBooking(context.Background(), catalog.BookingRequest{EventID: "e1", TicketType: "vip", Quantity: 2, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID)
	assert.Equal(t, 5000.0, rec.TotalAmount)
}

func TestGetAdminStats(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"stats": {"totalUsers": 10, "totalBookings": 4, "totalRevenue": 1234.5}}`))
	})

	stats, err := client.GetAdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.AdminStats{TotalUsers: 10, TotalBookings: 4, TotalRevenue: 1234.5}, stats)
}
