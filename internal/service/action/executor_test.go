package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
	"github.com/zhouzirui/ticket-assistant/backend/internal/testutil"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type stubGenerator struct {
	last  ai.PromptInput
	calls int
	panic bool
}

func (g *stubGenerator) Generate(_ context.Context, in ai.PromptInput) ai.Reply {
	g.calls++
	g.last = in
	if g.panic {
		panic("generator exploded")
	}
	return ai.Reply{Text: "generated", Suggestions: []string{"ต่อ"}}
}

type fixture struct {
	clk  *clock.Fake
	api  *testutil.DataAPI
	gen  *stubGenerator
	exec *Executor
	mem  *knowledge.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(now)
	api := testutil.NewDataAPI()
	api.Events = []catalog.Event{
		{
			ID: "jazz", Title: "Jazz Night", CategoryID: "music", CategoryName: "ดนตรี", Location: "Bangkok",
			Schedule: catalog.Schedule{StartDate: now.Add(72 * time.Hour), EndDate: now.Add(75 * time.Hour)},
			Pricing:  map[string]float64{"vip": 2500, "regular": 900, "backstage": 9000},
			Capacity: catalog.Capacity{Total: 100, Available: 40},
		},
		{
			ID: "run", Title: "City Run", CategoryID: "sport", CategoryName: "กีฬา",
			Schedule: catalog.Schedule{StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(2 * time.Hour)},
			Pricing:  map[string]float64{"regular": 500},
			Capacity: catalog.Capacity{Total: 100, Available: 10},
		},
		{
			ID: "expo", Title: "Art Expo", CategoryID: "art", CategoryName: "ศิลปะ",
			Schedule: catalog.Schedule{StartDate: now.Add(24 * time.Hour), EndDate: now.Add(30 * time.Hour)},
			Pricing:  map[string]float64{"regular": 300},
			Capacity: catalog.Capacity{Total: 50, Available: 0},
		},
		{
			ID: "fest", Title: "Food Festival", CategoryID: "food", CategoryName: "อาหาร",
			Schedule: catalog.Schedule{StartDate: now.Add(48 * time.Hour), EndDate: now.Add(60 * time.Hour)},
			Pricing:  map[string]float64{"student": 150, "regular": 250},
		},
	}
	api.Categories = []catalog.Category{{ID: "music", Name: "ดนตรี"}, {ID: "sport", Name: "กีฬา"}}
	api.Tickets["u1"] = []catalog.Ticket{{ID: "t1", EventID: "jazz", Price: 900}}
	api.Admin = catalog.AdminStats{TotalUsers: 12, TotalBookings: 30, TotalRevenue: 45000}

	gen := &stubGenerator{}
	syncer := knowledge.NewSynchronizer(api, clk, time.Minute)

	return &fixture{
		clk:  clk,
		api:  api,
		gen:  gen,
		exec: NewExecutor(syncer, api, gen, clk, 5*time.Minute),
		mem:  knowledge.NewMemory(clk, 5*time.Minute),
	}
}

func (f *fixture) run(user *catalog.User, in intent.Intent, input string, turn chat.TurnContext) chat.Response {
	text := intent.Normalize(input)
	cls := intent.Classification{Intent: in, Text: text, Query: text}
	return f.exec.Execute(context.Background(), Request{
		User:           user,
		Input:          input,
		Classification: cls,
		Turn:           turn,
		Memory:         f.mem,
	})
}

var member = &catalog.User{ID: "u1", Name: "Nok", Role: "user"}
var admin = &catalog.User{ID: "a1", Name: "Boss", Role: catalog.RoleAdmin}

func TestConfirmBookingWithoutUserRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.run(nil, intent.ConfirmBooking, "ยืนยันการจอง", chat.TurnContext{})

	require.NotNil(t, resp.Action)
	assert.Equal(t, chat.ActionNavigate, resp.Action.Type)
	assert.Equal(t, chat.NavigatePayload{URL: "/login"}, resp.Action.Payload)
	assert.Nil(t, resp.Pending)
	assert.Zero(t, f.api.Count("booking"))
}

func TestConfirmBookingWithoutUserNeverReachesCheckout(t *testing.T) {
	f := newFixture(t)
	turn := chat.TurnContext{TicketOptions: &chat.TicketOptionsPayload{
		EventID:    "jazz",
		EventTitle: "Jazz Night",
		Options:    []catalog.TicketOption{{Type: "regular", Label: "บัตรทั่วไป", Price: 900}},
	}}

	resp := f.run(nil, intent.ConfirmBooking, "ยืนยัน", turn)

	assert.Equal(t, "/login", resp.Action.NavigateURL())
	require.NotNil(t, resp.Pending)
	assert.Equal(t, "/checkout", resp.Pending.URL)
	assert.Equal(t, map[string]string{"eventId": "jazz", "ticketType": "regular"}, resp.Pending.Params)
	assert.Zero(t, f.api.Count("booking"))
}

func TestConfirmBookingFromTicketOptions(t *testing.T) {
	f := newFixture(t)
	turn := chat.TurnContext{TicketOptions: &chat.TicketOptionsPayload{
		EventID:    "jazz",
		EventTitle: "Jazz Night",
		Options: []catalog.TicketOption{
			{Type: "regular", Label: "บัตรทั่วไป", Price: 900},
			{Type: "vip", Label: "บัตร VIP", Price: 2500},
		},
	}}

	resp := f.run(member, intent.ConfirmBooking, "เอาบัตร VIP ยืนยัน", turn)

	require.NotNil(t, resp.Action)
	payload, ok := resp.Action.Payload.(chat.NavigatePayload)
	require.True(t, ok)
	assert.Equal(t, "/checkout", payload.URL)
	assert.Equal(t, map[string]string{"eventId": "jazz", "ticketType": "vip"}, payload.Params)
	assert.Equal(t, chat.ConfirmBookingPayload{EventID: "jazz", EventTitle: "Jazz Night", TicketType: "vip", Price: 2500}, resp.Data)
	require.NotNil(t, resp.Turn)
	assert.True(t, resp.Turn.Empty())
	assert.Zero(t, f.api.Count("booking"))
}

func TestConfirmBookingRechecksOfferedEvent(t *testing.T) {
	f := newFixture(t)
	// offered while seats were still left
	turn := chat.TurnContext{TicketOptions: &chat.TicketOptionsPayload{
		EventID:    "expo",
		EventTitle: "Art Expo",
		Options:    []catalog.TicketOption{{Type: "regular", Label: "บัตรทั่วไป", Price: 300}},
	}}

	resp := f.run(member, intent.ConfirmBooking, "ยืนยัน บัตรทั่วไป", turn)

	assert.Nil(t, resp.Action)
	assert.Contains(t, resp.Message, "ขายหมดแล้ว")
	assert.Equal(t, []string{"จอง Jazz Night", "จอง Food Festival"}, resp.Suggestions)
	assert.Equal(t, 1, f.api.Count("events"))
}

func TestConfirmBookingAmbiguousTicketType(t *testing.T) {
	f := newFixture(t)
	turn := chat.TurnContext{TicketOptions: &chat.TicketOptionsPayload{
		EventID: "jazz",
		Options: []catalog.TicketOption{
			{Type: "regular", Label: "บัตรทั่วไป", Price: 900},
			{Type: "vip", Label: "บัตร VIP", Price: 2500},
		},
	}}

	resp := f.run(member, intent.ConfirmBooking, "ยืนยัน", turn)

	assert.Nil(t, resp.Action)
	assert.Equal(t, []string{"บัตรทั่วไป", "บัตร VIP"}, resp.Suggestions)
}

func TestConfirmBookingByTitleMatch(t *testing.T) {
	f := newFixture(t)
	f.mem.UpdateEvents(f.api.Events)

	resp := f.run(member, intent.ConfirmBooking, "ยืนยันจอง food festival บัตรนักศึกษา", chat.TurnContext{})

	payload, ok := resp.Action.Payload.(chat.NavigatePayload)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"eventId": "fest", "ticketType": "student"}, payload.Params)
}

func TestSpecificEventBookingOffersSortedKnownTypes(t *testing.T) {
	f := newFixture(t)

	resp := f.exec.Execute(context.Background(), Request{
		User:           member,
		Input:          "จอง Jazz Night",
		Classification: intent.Classification{Intent: intent.SpecificEventBooking, EventID: "jazz", Text: "จอง jazz night"},
		Memory:         f.mem,
	})

	require.NotNil(t, resp.Action)
	assert.Equal(t, chat.ActionShowTicketOptions, resp.Action.Type)
	payload := resp.Action.Payload.(chat.TicketOptionsPayload)
	assert.Equal(t, []catalog.TicketOption{
		{Type: "regular", Label: "บัตรทั่วไป", Price: 900},
		{Type: "vip", Label: "บัตร VIP", Price: 2500},
	}, payload.Options)
	require.NotNil(t, resp.Turn)
	assert.Equal(t, "jazz", resp.Turn.TicketOptions.EventID)
}

func TestSpecificEventBookingRejectsStartedAndSoldOut(t *testing.T) {
	for _, id := range []string{"run", "expo"} {
		t.Run(id, func(t *testing.T) {
			f := newFixture(t)
			resp := f.exec.Execute(context.Background(), Request{
				Classification: intent.Classification{Intent: intent.SpecificEventBooking, EventID: id},
				Memory:         f.mem,
			})

			assert.Nil(t, resp.Action)
			assert.Nil(t, resp.Turn)
			assert.NotEmpty(t, resp.Suggestions)
		})
	}
}

func TestAIBookingThenConfirmByNumber(t *testing.T) {
	f := newFixture(t)

	resp := f.run(member, intent.AIBooking, "ช่วยจองให้หน่อย", chat.TurnContext{})
	require.NotNil(t, resp.Action)
	assert.Equal(t, chat.ActionShowBookingChoices, resp.Action.Type)
	require.NotNil(t, resp.Turn)

	choices := resp.Turn.BookingChoices.Choices
	require.Len(t, choices, 2)
	assert.Equal(t, "fest", choices[0].EventID)
	assert.Equal(t, 150.0, choices[0].FromPrice)
	assert.Equal(t, "jazz", choices[1].EventID)

	confirm := f.run(member, intent.ConfirmBooking, "ยืนยัน 2 บัตรทั่วไป", *resp.Turn)
	payload, ok := confirm.Action.Payload.(chat.NavigatePayload)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"eventId": "jazz", "ticketType": "regular"}, payload.Params)
}

func TestGetEventsServesCacheWithinTTL(t *testing.T) {
	f := newFixture(t)

	first := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	events := first.Data.([]catalog.Event)
	assert.Len(t, events, 4)
	assert.Contains(t, first.Message, "4")
	assert.Equal(t, chat.DisplayDataPayload{Kind: "events", Count: 4}, first.Action.Payload)

	// past the synchronizer max age but inside the cache TTL
	f.clk.Advance(2 * time.Minute)
	second := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	assert.Equal(t, events, second.Data)
	assert.Equal(t, 1, f.api.Count("events"))

	f.clk.Advance(4 * time.Minute)
	f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	assert.Equal(t, 2, f.api.Count("events"))
}

func TestForceRealtimeUpdateBypassesFreshness(t *testing.T) {
	f := newFixture(t)

	f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	require.Equal(t, 1, f.api.Count("events"))

	f.api.Events = f.api.Events[:1]
	resp := f.run(member, intent.ForceRealtimeUpdate, "ขอข้อมูลล่าสุด", chat.TurnContext{})
	assert.Equal(t, 2, f.api.Count("events"))
	assert.Equal(t, 1, f.api.Count("tickets"))
	assert.Zero(t, f.api.Count("admin"))
	assert.Empty(t, resp.Warning)
	require.NotNil(t, resp.Action)
	assert.Equal(t, chat.ActionAPICall, resp.Action.Type)
	assert.Equal(t, chat.APICallPayload{Endpoint: "/events", Params: map[string]string{"refresh": "true"}}, resp.Action.Payload)

	after := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	assert.Len(t, after.Data, 1)
}

func TestSearchEventsMatchesAndCounts(t *testing.T) {
	f := newFixture(t)

	resp := f.exec.Execute(context.Background(), Request{
		Classification: intent.Classification{Intent: intent.SearchEvents, Query: "jazz"},
		Memory:         f.mem,
	})

	events := resp.Data.([]catalog.Event)
	require.Len(t, events, 1)
	assert.Equal(t, "jazz", events[0].ID)
	assert.Equal(t, []string{"music"}, f.mem.Preferences().Categories)
}

func TestFetchFailureKeepsStaleDataWithWarning(t *testing.T) {
	f := newFixture(t)
	f.mem.UpdateEvents(f.api.Events[:2])
	f.clk.Advance(10 * time.Minute)
	f.api.SetErr(errors.New("connection refused"))

	resp := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})

	assert.Equal(t, staleWarning, resp.Warning)
	assert.Len(t, resp.Data, 2)
}

func TestFailedRefreshIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.mem.UpdateEvents(f.api.Events[:2])
	f.clk.Advance(10 * time.Minute)
	f.api.SetErr(errors.New("connection refused"))

	stale := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})
	require.Equal(t, staleWarning, stale.Warning)
	assert.Len(t, stale.Data, 2)

	f.api.SetErr(nil)
	f.clk.Advance(2 * time.Minute)
	fresh := f.run(nil, intent.GetEvents, "อีเวนต์ทั้งหมด", chat.TurnContext{})

	assert.Equal(t, 2, f.api.Count("events"))
	assert.Len(t, fresh.Data, 4)
	assert.Empty(t, fresh.Warning)
}

func TestPrefetchedResourceIsNotFetchedAgain(t *testing.T) {
	f := newFixture(t)
	f.api.SetErr(errors.New("connection refused"))

	resp := f.exec.Execute(context.Background(), Request{
		Classification: intent.Classification{Intent: intent.GetEvents, Text: "อีเวนต์ทั้งหมด"},
		Memory:         f.mem,
		Prefetched: map[knowledge.Resource]error{
			knowledge.ResourceEvents: &knowledge.FetchError{Resource: knowledge.ResourceEvents, Err: errors.New("connection refused")},
		},
	})
	assert.Equal(t, staleWarning, resp.Warning)
	assert.Zero(t, f.api.Count("events"))

	f.api.SetErr(nil)
	resp = f.exec.Execute(context.Background(), Request{
		Classification: intent.Classification{Intent: intent.GetEvents, Text: "อีเวนต์ทั้งหมด"},
		Memory:         f.mem,
		Prefetched:     map[knowledge.Resource]error{knowledge.ResourceEvents: nil},
	})
	assert.Empty(t, resp.Warning)
	assert.Zero(t, f.api.Count("events"))
}

func TestStatisticsAdminFiguresRequireAdmin(t *testing.T) {
	f := newFixture(t)

	resp := f.run(member, intent.Statistics, "ขอดูรายได้", chat.TurnContext{})
	assert.Nil(t, resp.Data)
	assert.Contains(t, resp.Message, "ผู้ดูแลระบบ")
	assert.Zero(t, f.api.Count("admin"))

	public := f.run(member, intent.Statistics, "สถิติ", chat.TurnContext{})
	view := public.Data.(StatisticsView)
	assert.Nil(t, view.Admin)
	assert.Equal(t, 4, view.Stats.TotalEvents)

	adminResp := f.run(admin, intent.Statistics, "ขอดูรายได้", chat.TurnContext{})
	adminView := adminResp.Data.(StatisticsView)
	require.NotNil(t, adminView.Admin)
	assert.Equal(t, 45000.0, adminView.Admin.TotalRevenue)
}

func TestTicketManagementRequiresLogin(t *testing.T) {
	f := newFixture(t)

	resp := f.run(nil, intent.TicketManagement, "ตั๋วของฉัน", chat.TurnContext{})
	assert.Equal(t, "/login", resp.Action.NavigateURL())
	assert.Zero(t, f.api.Count("tickets"))

	resp = f.run(member, intent.TicketManagement, "ตั๋วของฉัน", chat.TurnContext{})
	assert.Len(t, resp.Data, 1)
}

func TestNavigateAdminRouteForbiddenForMember(t *testing.T) {
	f := newFixture(t)

	resp := f.exec.Execute(context.Background(), Request{
		User:           member,
		Classification: intent.Classification{Intent: intent.Navigate, Route: "/admin"},
		Memory:         f.mem,
	})
	assert.Equal(t, "/", resp.Action.NavigateURL())

	resp = f.exec.Execute(context.Background(), Request{
		User:           member,
		Classification: intent.Classification{Intent: intent.Navigate, Route: "/events"},
		Memory:         f.mem,
	})
	assert.Equal(t, "/events", resp.Action.NavigateURL())
}

func TestFreeFormUsesGeneratorWithKnowledge(t *testing.T) {
	f := newFixture(t)

	resp := f.run(member, intent.FreeForm, "งานไหนเหมาะกับครอบครัว", chat.TurnContext{})

	assert.Equal(t, "generated", resp.Message)
	assert.Equal(t, 1, f.gen.calls)
	assert.Contains(t, f.gen.last.Summary, "Jazz Night")
	assert.Equal(t, "Nok", f.gen.last.UserName)
	assert.Equal(t, string(intent.FreeForm), resp.Intent)
}

func TestFreeFormHidesAdminFiguresFromMember(t *testing.T) {
	f := newFixture(t)
	f.run(admin, intent.Statistics, "ขอดูรายได้", chat.TurnContext{})
	require.Equal(t, 1, f.api.Count("admin"))

	f.run(member, intent.FreeForm, "ขายได้เท่าไหร่แล้ว", chat.TurnContext{})

	assert.NotContains(t, f.gen.last.Summary, "45000")
	assert.NotContains(t, f.gen.last.Summary, "45,000")
}

func TestHandlerPanicBecomesApology(t *testing.T) {
	f := newFixture(t)
	f.gen.panic = true

	resp := f.run(nil, intent.FreeForm, "อะไรก็ได้", chat.TurnContext{})

	assert.Equal(t, apologyMessage, resp.Message)
	assert.Equal(t, retrySuggestions, resp.Suggestions)
}
