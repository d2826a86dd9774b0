package knowledge

import (
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

const popularCategoryLimit = 3

// CategoryCount is a category ranked by how many events it holds.
type CategoryCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats are aggregate figures derived from the current collections.
type Stats struct {
	TotalEvents        int             `json:"totalEvents"`
	ActiveEvents       int             `json:"activeEvents"`
	UpcomingEvents     int             `json:"upcomingEvents"`
	PastEvents         int             `json:"pastEvents"`
	TotalRevenue       float64         `json:"totalRevenue"`
	AverageTicketPrice float64         `json:"averageTicketPrice"`
	PopularCategories  []CategoryCount `json:"popularCategories"`
}

// ComputeStats derives Stats from scratch. It depends only on its arguments.
func ComputeStats(events []catalog.Event, categories []catalog.Category, tickets []catalog.Ticket, now time.Time) Stats {
	stats := Stats{TotalEvents: len(events)}

	for _, e := range events {
		start, end := e.Schedule.StartDate, e.Schedule.EndDate
		if !start.IsZero() && start.After(now) {
			stats.UpcomingEvents++
		}
		if !end.IsZero() && end.Before(now) {
			stats.PastEvents++
		}
		if !start.IsZero() && !end.IsZero() && !start.After(now) && !now.After(end) {
			stats.ActiveEvents++
		}
	}

	var priced int
	var priceSum float64
	for _, t := range tickets {
		stats.TotalRevenue += t.Amount()
		if t.Price > 0 {
			priced++
			priceSum += t.Price
		}
	}
	if priced > 0 {
		stats.AverageTicketPrice = priceSum / float64(priced)
	}

	stats.PopularCategories = popularCategories(events, categories, popularCategoryLimit)
	return stats
}

// popularCategories ranks categories by event count; ties keep the order in
// which a category was first seen in events.
func popularCategories(events []catalog.Event, categories []catalog.Category, limit int) []CategoryCount {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	index := make(map[string]int)
	counts := make([]CategoryCount, 0)
	for _, e := range events {
		key := e.CategoryID
		if key == "" {
			key = e.CategoryName
		}
		if key == "" {
			continue
		}

		i, seen := index[key]
		if !seen {
			name := names[key]
			if name == "" {
				name = e.CategoryName
			}
			if name == "" {
				name = key
			}
			index[key] = len(counts)
			counts = append(counts, CategoryCount{ID: key, Name: name})
			i = len(counts) - 1
		}
		counts[i].Count++
	}

	// Stable insertion sort: equal counts never swap, so first-seen order wins.
	for i := 1; i < len(counts); i++ {
		for j := i; j > 0 && counts[j].Count > counts[j-1].Count; j-- {
			counts[j], counts[j-1] = counts[j-1], counts[j]
		}
	}

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
