// Package dataapi talks to the storefront's REST data API.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
)

// StatusError is a non-2xx answer from the data API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data api %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Config configures the client.
type Config struct {
	BaseURL string        // e.g. "http://localhost:5000/api"
	Token   string        // optional bearer token
	Timeout time.Duration // per request, default 10s
}

// Client implements ports.DataAPI over HTTP/JSON.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListEvents(ctx context.Context, filter catalog.EventFilter) ([]catalog.Event, catalog.Pagination, error) {
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.CategoryID != "" {
		query.Set("category", filter.CategoryID)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var resp struct {
		Events     []catalog.Event    `json:"events"`
		Pagination catalog.Pagination `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodGet, "/events", query, nil, &resp); err != nil {
		return nil, catalog.Pagination{}, err
	}
	return resp.Events, resp.Pagination, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*catalog.Event, error) {
	var resp struct {
		Event *catalog.Event `json:"event"`
	}
	err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(id), nil, nil, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var resp struct {
		Categories []catalog.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *Client) ListUserTickets(ctx context.Context, userID string) ([]catalog.Ticket, error) {
	var resp struct {
		Tickets []catalog.Ticket `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/tickets", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

func (c *Client) GetAdminStats(ctx context.Context) (catalog.AdminStats, error) {
	var resp struct {
		Stats catalog.AdminStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/stats", nil, nil, &resp); err != nil {
		return catalog.AdminStats{}, err
	}
	return resp.Stats, nil
}

func (c *Client) CreateBooking(ctx context.Context, req catalog.BookingRequest) (catalog.BookingRecord, error) {
	var resp struct {
		Booking catalog.BookingRecord `json:"booking"`
	}
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, req, &resp); err != nil {
		return catalog.BookingRecord{}, err
	}
	return resp.Booking, nil
}

var _ ports.DataAPI = (*Client)(nil)
