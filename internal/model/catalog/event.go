package catalog

import "time"

// Schedule bounds an event in time.
type Schedule struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Capacity tracks seats for an event.
type Capacity struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// Event is a sellable show as returned by the data API.
type Event struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	CategoryID   string             `json:"categoryId,omitempty"`
	CategoryName string             `json:"categoryName,omitempty"`
	Location     string             `json:"location,omitempty"`
	Schedule     Schedule           `json:"schedule"`
	Pricing      map[string]float64 `json:"pricing,omitempty"`
	Capacity     Capacity           `json:"capacity"`
	Status       string             `json:"status,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
}

// Started reports whether the event has begun at now.
func (e Event) Started(now time.Time) bool {
	return !e.Schedule.StartDate.IsZero() && !e.Schedule.StartDate.After(now)
}

// SoldOut reports whether no seats remain. Events without a declared total
// capacity are treated as unlimited.
func (e Event) SoldOut() bool {
	return e.Capacity.Total > 0 && e.Capacity.Available <= 0
}

// Bookable reports whether a ticket can still be sold for the event.
func (e Event) Bookable(now time.Time) bool {
	return !e.Started(now) && !e.SoldOut()
}

// Category groups events for browsing.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EventFilter narrows an event listing.
type EventFilter struct {
	Search     string `json:"search,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
	Status     string `json:"status,omitempty"`
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}
