package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
)

// adminFigureWords mark a statistics request that asks for admin-only data.
var adminFigureWords = []string{"รายได้", "ยอดขาย", "ผู้ใช้", "revenue", "users", "bookings"}

// Routes that need a signed-in user or an admin.
var (
	loginRoutes = map[string]bool{"/my-tickets": true, "/profile": true}
	adminRoutes = map[string]bool{"/admin": true}
)

func (e *Executor) navigate(_ context.Context, req Request) (chat.Response, error) {
	route := req.Classification.Route
	if route == "" {
		route = "/"
	}

	if (loginRoutes[route] || adminRoutes[route]) && req.User == nil {
		return chat.Response{}, loginRequired(&chat.NavigatePayload{URL: route})
	}
	if adminRoutes[route] && !req.User.IsAdmin() {
		return chat.Response{}, &AuthorizationError{
			Cause:   knowledge.ErrAdminRequired,
			Message: "หน้านี้สำหรับผู้ดูแลระบบเท่านั้น",
			Action:  chat.Navigate("/", nil),
		}
	}

	return chat.Response{
		Message:     fmt.Sprintf("กำลังพาไปที่หน้า %s", route),
		Action:      chat.Navigate(route, nil),
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "ช่วยเหลือ"},
	}, nil
}

func (e *Executor) ticketManagement(ctx context.Context, req Request) (chat.Response, error) {
	if req.User == nil {
		return chat.Response{}, loginRequired(&chat.NavigatePayload{URL: "/my-tickets"})
	}

	warning := e.refresh(ctx, req, knowledge.ResourceTickets)
	tickets := req.Memory.Snapshot().Tickets

	msg := fmt.Sprintf("คุณมีตั๋วทั้งหมด %d ใบ", len(tickets))
	if len(tickets) == 0 {
		msg = "คุณยังไม่มีตั๋วในระบบ"
	}

	return chat.Response{
		Message: msg,
		Action: &chat.Action{
			Type:    chat.ActionDisplayData,
			Payload: chat.DisplayDataPayload{Kind: "tickets", Count: len(tickets)},
		},
		Data:        tickets,
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์"},
		Warning:     warning,
	}, nil
}

// StatisticsView is the data returned for a statistics request. Admin is
// only populated for admins.
type StatisticsView struct {
	Stats knowledge.Stats     `json:"stats"`
	Admin *catalog.AdminStats `json:"admin,omitempty"`
}

func (e *Executor) statistics(ctx context.Context, req Request) (chat.Response, error) {
	wantsAdmin := containsAny(req.Classification.Text, adminFigureWords)
	if wantsAdmin && !req.User.IsAdmin() {
		return chat.Response{}, &AuthorizationError{
			Cause:   knowledge.ErrAdminRequired,
			Message: "ข้อมูลรายได้และจำนวนผู้ใช้ดูได้เฉพาะผู้ดูแลระบบ คุณยังดูสถิติอีเวนต์ทั่วไปได้",
		}
	}

	resources := []knowledge.Resource{knowledge.ResourceEvents, knowledge.ResourceCategories, knowledge.ResourceTickets}
	if req.User.IsAdmin() {
		resources = append(resources, knowledge.ResourceSystemStats)
	}
	warning := e.refresh(ctx, req, resources...)

	snap := req.Memory.Snapshot()
	st := snap.Stats

	var b strings.Builder
	fmt.Fprintf(&b, "สถิติอีเวนต์: ทั้งหมด %d งาน, กำลังจัด %d, กำลังจะมาถึง %d, จบแล้ว %d",
		st.TotalEvents, st.ActiveEvents, st.UpcomingEvents, st.PastEvents)
	if len(st.PopularCategories) > 0 {
		names := make([]string, 0, len(st.PopularCategories))
		for _, c := range st.PopularCategories {
			names = append(names, fmt.Sprintf("%s (%d)", c.Name, c.Count))
		}
		fmt.Fprintf(&b, "\nหมวดหมู่ยอดนิยม: %s", strings.Join(names, ", "))
	}

	view := StatisticsView{Stats: st}
	if req.User.IsAdmin() && snap.Admin != nil {
		view.Admin = snap.Admin
		fmt.Fprintf(&b, "\nสถิติระบบ: ผู้ใช้ %d คน, การจอง %d รายการ, รายได้รวม %s",
			snap.Admin.TotalUsers, snap.Admin.TotalBookings, formatPrice(snap.Admin.TotalRevenue))
	}

	return chat.Response{
		Message:     b.String(),
		Data:        view,
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "ข้อมูลล่าสุด"},
		Warning:     warning,
	}, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
