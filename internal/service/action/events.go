package action

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
)

const recommendLimit = 5

// cachedEvents serves key from the session's search cache, or computes it
// from freshly synchronized events. Only results built on a successful
// refresh are cached; stale ones are recomputed on the next request.
func (e *Executor) cachedEvents(ctx context.Context, req Request, key string, pick func([]catalog.Event) []catalog.Event) ([]catalog.Event, string) {
	if hit, ok := req.Memory.LookupSearch(key); ok {
		return fromAny(hit), ""
	}

	warning := e.refresh(ctx, req, knowledge.ResourceEvents)
	events := pick(req.Memory.Events())
	if warning == "" {
		req.Memory.CacheSearch(key, toAny(events), e.cacheTTL)
	}
	return events, warning
}

func (e *Executor) getEvents(ctx context.Context, req Request) (chat.Response, error) {
	events, warning := e.cachedEvents(ctx, req, "events:all", func(all []catalog.Event) []catalog.Event {
		now := e.clock.Now()
		kept := make([]catalog.Event, 0, len(all))
		for _, ev := range all {
			if ev.Schedule.EndDate.IsZero() || !ev.Schedule.EndDate.Before(now) {
				kept = append(kept, ev)
			}
		}
		return kept
	})

	msg := fmt.Sprintf("ขณะนี้มีอีเวนต์ทั้งหมด %d งาน", len(events))
	if len(events) == 0 {
		msg = "ขณะนี้ยังไม่มีอีเวนต์ที่เปิดให้ชม"
	}
	return listing(msg, events, warning), nil
}

func (e *Executor) searchEvents(ctx context.Context, req Request) (chat.Response, error) {
	query := req.Classification.Query
	if query == "" {
		return e.getEvents(ctx, req)
	}

	events, warning := e.cachedEvents(ctx, req, "search:"+query, func(all []catalog.Event) []catalog.Event {
		return matchEvents(all, query)
	})
	if len(events) > 0 {
		req.Memory.RememberCategory(events[0].CategoryID)
	}

	msg := fmt.Sprintf("พบ %d อีเวนต์ที่เกี่ยวกับ \"%s\"", len(events), query)
	if len(events) == 0 {
		msg = fmt.Sprintf("ไม่พบอีเวนต์ที่เกี่ยวกับ \"%s\"", query)
	}
	return listing(msg, events, warning), nil
}

func (e *Executor) recommendEvents(ctx context.Context, req Request) (chat.Response, error) {
	prefs := req.Memory.Preferences().Categories
	key := "recommend:" + strings.Join(prefs, ",")

	events, warning := e.cachedEvents(ctx, req, key, func(all []catalog.Event) []catalog.Event {
		return recommend(all, prefs, e.clock.Now())
	})

	msg := fmt.Sprintf("อีเวนต์แนะนำสำหรับคุณ %d งาน", len(events))
	if len(events) == 0 {
		msg = "ยังไม่มีอีเวนต์ที่เปิดจองให้แนะนำในขณะนี้"
	}
	return listing(msg, events, warning), nil
}

func (e *Executor) browseCategories(ctx context.Context, req Request) (chat.Response, error) {
	warning := e.refresh(ctx, req, knowledge.ResourceCategories)
	categories := req.Memory.Snapshot().Categories

	if len(categories) == 0 {
		return chat.Response{
			Message:     "ยังไม่มีหมวดหมู่อีเวนต์ในระบบ",
			Data:        categories,
			Suggestions: []string{"ดูอีเวนต์ทั้งหมด"},
			Warning:     warning,
		}, nil
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	return chat.Response{
		Message: fmt.Sprintf("มีหมวดหมู่ทั้งหมด %d หมวด: %s", len(categories), strings.Join(names, ", ")),
		Action: &chat.Action{
			Type:    chat.ActionDisplayData,
			Payload: chat.DisplayDataPayload{Kind: "categories", Count: len(categories)},
		},
		Data:        categories,
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์"},
		Warning:     warning,
	}, nil
}

// forceRealtimeUpdate is the only path that ignores every freshness window.
func (e *Executor) forceRealtimeUpdate(ctx context.Context, req Request) (chat.Response, error) {
	warnings := e.sync.RefreshAll(ctx, req.Memory, req.User, true)
	req.Memory.ClearSearch()

	snap := req.Memory.Snapshot()
	msg := fmt.Sprintf("อัปเดตข้อมูลล่าสุดแล้ว: อีเวนต์ %d งาน (กำลังจะมาถึง %d), หมวดหมู่ %d หมวด",
		snap.Stats.TotalEvents, snap.Stats.UpcomingEvents, len(snap.Categories))
	if req.User != nil {
		msg += fmt.Sprintf(", ตั๋วของคุณ %d ใบ", len(snap.Tickets))
	}

	resp := chat.Response{
		Message:     msg,
		Data:        snap.Stats,
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์", "สถิติ"},
		// the page's own listing is now older than ours
		Action: &chat.Action{
			Type: chat.ActionAPICall,
			Payload: chat.APICallPayload{
				Endpoint: "/events",
				Params:   map[string]string{"refresh": "true"},
			},
		},
	}
	if len(warnings) > 0 {
		resp.Warning = staleWarning
	}
	return resp, nil
}

func listing(msg string, events []catalog.Event, warning string) chat.Response {
	suggestions := []string{"แนะนำอีเวนต์", "หมวดหมู่"}
	for _, title := range eventTitles(events, 2) {
		suggestions = append(suggestions, "จอง "+title)
	}

	return chat.Response{
		Message: msg,
		Action: &chat.Action{
			Type:    chat.ActionDisplayData,
			Payload: chat.DisplayDataPayload{Kind: "events", Count: len(events)},
		},
		Data:        events,
		Suggestions: suggestions,
		Warning:     warning,
	}
}

// matchEvents keeps events whose text fields contain the normalized query.
func matchEvents(events []catalog.Event, query string) []catalog.Event {
	query = intent.Normalize(query)
	matched := make([]catalog.Event, 0)
	for _, ev := range events {
		haystack := intent.Normalize(strings.Join(append([]string{
			ev.Title, ev.Description, ev.CategoryName, ev.Location,
		}, ev.Tags...), " "))
		if strings.Contains(haystack, query) {
			matched = append(matched, ev)
		}
	}
	return matched
}

// recommend ranks bookable events: preferred categories first, then soonest.
func recommend(events []catalog.Event, preferred []string, now time.Time) []catalog.Event {
	rank := make(map[string]int, len(preferred))
	for i, c := range preferred {
		rank[c] = i
	}

	var picked []catalog.Event
	for _, ev := range events {
		if ev.Schedule.StartDate.After(now) && !ev.SoldOut() {
			picked = append(picked, ev)
		}
	}

	score := func(ev catalog.Event) int {
		if r, ok := rank[ev.CategoryID]; ok {
			return r
		}
		return len(preferred)
	}
	sort.SliceStable(picked, func(i, j int) bool {
		si, sj := score(picked[i]), score(picked[j])
		if si != sj {
			return si < sj
		}
		return picked[i].Schedule.StartDate.Before(picked[j].Schedule.StartDate)
	})

	if len(picked) > recommendLimit {
		picked = picked[:recommendLimit]
	}
	if picked == nil {
		picked = []catalog.Event{}
	}
	return picked
}

func toAny(events []catalog.Event) []any {
	out := make([]any, len(events))
	for i, ev := range events {
		out[i] = ev
	}
	return out
}

func fromAny(items []any) []catalog.Event {
	out := make([]catalog.Event, 0, len(items))
	for _, item := range items {
		if ev, ok := item.(catalog.Event); ok {
			out = append(out, ev)
		}
	}
	return out
}
