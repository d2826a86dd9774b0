package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

const summaryEventLimit = 10

// Summary renders the snapshot as plain text for the generation prompt.
func (s Snapshot) Summary(now time.Time) string {
	var b strings.Builder

	st := s.Stats
	fmt.Fprintf(&b, "ข้อมูลอีเวนต์: ทั้งหมด %d งาน, กำลังจัด %d, กำลังจะมาถึง %d, จบแล้ว %d\n",
		st.TotalEvents, st.ActiveEvents, st.UpcomingEvents, st.PastEvents)

	if len(st.PopularCategories) > 0 {
		parts := make([]string, 0, len(st.PopularCategories))
		for _, c := range st.PopularCategories {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Name, c.Count))
		}
		fmt.Fprintf(&b, "หมวดหมู่ยอดนิยม: %s\n", strings.Join(parts, ", "))
	}

	if len(s.Categories) > 0 {
		names := make([]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, "หมวดหมู่ทั้งหมด: %s\n", strings.Join(names, ", "))
	}

	upcoming := s.upcoming(now)
	if len(upcoming) > 0 {
		b.WriteString("อีเวนต์ที่กำลังจะมาถึง:\n")
		for _, e := range upcoming {
			fmt.Fprintf(&b, "- %s | %s | %s | เหลือ %d ที่นั่ง\n",
				e.Title, e.Schedule.StartDate.Format("2006-01-02 15:04"), e.Location, e.Capacity.Available)
		}
	}

	if len(s.Tickets) > 0 {
		fmt.Fprintf(&b, "บัตรของผู้ใช้: %d ใบ, ยอดรวม %.2f บาท, ราคาเฉลี่ย %.2f บาท\n",
			len(s.Tickets), st.TotalRevenue, st.AverageTicketPrice)
	}

	if s.Admin != nil {
		fmt.Fprintf(&b, "สถิติระบบ (ผู้ดูแล): ผู้ใช้ %d คน, การจอง %d รายการ, รายได้รวม %.2f บาท\n",
			s.Admin.TotalUsers, s.Admin.TotalBookings, s.Admin.TotalRevenue)
	}

	return strings.TrimRight(b.String(), "\n")
}

// Freshness annotates how old each loaded resource is.
func (s Snapshot) Freshness(now time.Time) string {
	if len(s.LastFetch) == 0 {
		return "ยังไม่มีการโหลดข้อมูลจากระบบ"
	}

	parts := make([]string, 0, len(s.LastFetch))
	for _, res := range Resources {
		at, ok := s.LastFetch[res]
		if !ok {
			continue
		}
		age := now.Sub(at).Round(time.Second)
		if age < 0 {
			age = 0
		}
		parts = append(parts, fmt.Sprintf("%s อัปเดตเมื่อ %s ที่แล้ว", res, age))
	}
	return "ความสดของข้อมูล: " + strings.Join(parts, ", ")
}

func (s Snapshot) upcoming(now time.Time) []catalog.Event {
	events := make([]catalog.Event, 0, len(s.Events))
	for _, e := range s.Events {
		if e.Schedule.StartDate.After(now) {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Schedule.StartDate.Before(events[j].Schedule.StartDate)
	})
	if len(events) > summaryEventLimit {
		events = events[:summaryEventLimit]
	}
	return events
}
