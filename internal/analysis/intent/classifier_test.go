package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New()
	require.NoError(t, err)
	return c
}

func TestPriorityOrderIsExplicit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Intent{
		ConfirmBooking,
		Navigate,
		ForceRealtimeUpdate,
		AIBooking,
		SpecificEventBooking,
		GetEvents,
		RecommendEvents,
		SearchEvents,
		TicketManagement,
		Statistics,
		GenericSearch,
		Help,
		BrowseCategories,
		FreeForm,
	}, Priority)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := newClassifier(t)
	events := []EventRef{{ID: "e1", Title: "Jazz Night"}, {ID: "e2", Title: "Jazz Night Special"}}

	cases := []struct {
		name    string
		input   string
		hints   Hints
		intent  Intent
		query   string
		route   string
		eventID string
	}{
		{name: "confirm phrase", input: "ยืนยันการจอง", intent: ConfirmBooking},
		{name: "confirm beats ticket type and booking verb", input: "ยืนยันจองบัตร VIP Jazz Night", hints: Hints{Events: events}, intent: ConfirmBooking},
		{name: "ticket type while awaiting choice", input: "เอาบัตร VIP", hints: Hints{AwaitingTicketChoice: true}, intent: ConfirmBooking},
		{name: "ticket type without pending options", input: "เอาบัตร VIP", intent: FreeForm},
		{name: "navigate to events", input: "ไปหน้าอีเวนต์", intent: Navigate, route: "/events"},
		{name: "navigate to my tickets", input: "Go to my tickets", intent: Navigate, route: "/my-tickets"},
		{name: "navigate home", input: "พาไปหน้าแรก", intent: Navigate, route: "/"},
		{name: "realtime refresh", input: "ขอข้อมูลล่าสุดหน่อย", intent: ForceRealtimeUpdate},
		{name: "ai booking", input: "ช่วยจองคอนเสิร์ตให้หน่อย", intent: AIBooking},
		{name: "ai booking defers to named event", input: "อยากจอง Jazz Night", hints: Hints{Events: events}, intent: SpecificEventBooking, eventID: "e1", query: "jazz night"},
		{name: "longest title wins", input: "book jazz night special", hints: Hints{Events: events}, intent: SpecificEventBooking, eventID: "e2", query: "jazz night special"},
		{name: "booking verb without known title", input: "จอง Unknown Fest", hints: Hints{Events: events}, intent: FreeForm},
		{name: "list events", input: "มีงานอะไรบ้าง", intent: GetEvents},
		{name: "recommend", input: "แนะนำงานหน่อย", intent: RecommendEvents},
		{name: "explicit search extracts query", input: "ค้นหา คอนเสิร์ต jazz", intent: SearchEvents, query: "คอนเสิร์ต jazz"},
		{name: "english search", input: "Search rock festival?", intent: SearchEvents, query: "rock festival"},
		{name: "ticket management", input: "ตั๋วของฉันมีอะไรบ้าง", intent: TicketManagement},
		{name: "statistics", input: "ขอดูสถิติ", intent: Statistics},
		{name: "generic topic search", input: "มี Concert ไหม", intent: GenericSearch, query: "concert"},
		{name: "help", input: "help", intent: Help},
		{name: "categories", input: "มีหมวดหมู่อะไรบ้าง", intent: BrowseCategories},
		{name: "free form", input: "สวัสดีครับ", intent: FreeForm},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.input, tc.hints)
			assert.Equal(t, tc.intent, got.Intent)
			if tc.query != "" {
				assert.Equal(t, tc.query, got.Query)
			}
			assert.Equal(t, tc.route, got.Route)
			assert.Equal(t, tc.eventID, got.EventID)
		})
	}
}

func TestClassifyEmptyInputIsFreeForm(t *testing.T) {
	t.Parallel()

	c := newClassifier(t)
	assert.Equal(t, FreeForm, c.Classify("   ", Hints{}).Intent)
}

func TestNavigatePhraseWithoutRouteFallsThrough(t *testing.T) {
	t.Parallel()

	c := newClassifier(t)
	got := c.Classify("ไปหน้าไหนดี", Hints{})
	assert.NotEqual(t, Navigate, got.Intent)
}

func TestEveryRuleHasPhrases(t *testing.T) {
	t.Parallel()

	c := newClassifier(t)
	for _, in := range Priority {
		if in == FreeForm || in == SpecificEventBooking {
			continue
		}
		assert.NotEmpty(t, c.phrases[in], "intent %s has no phrases", in)
	}
	assert.NotEmpty(t, c.verbs)
	assert.NotEmpty(t, c.routes)
}

func TestNewFromYAMLRejectsMissingRule(t *testing.T) {
	t.Parallel()

	_, err := newFromYAML([]byte("intents: ["))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jazz night", Normalize("  JAZZ   Night "))
	assert.Equal(t, "บัตร vip", Normalize("บัตร VIP"))
}
