// Package assistanttest builds a fully wired Engine over in-memory
// collaborators for handler tests.
package assistanttest

import (
	"context"
	"strings"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/action"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/pending"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
	"github.com/zhouzirui/ticket-assistant/backend/internal/testutil"
)

// EchoClient answers every prompt with its last line.
type EchoClient struct{}

func (EchoClient) Generate(_ context.Context, prompt string) (string, error) {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	return "echo: " + lines[len(lines)-1], nil
}

// Catalog returns a small event catalog relative to now.
func Catalog(now time.Time) []catalog.Event {
	return []catalog.Event{
		{
			ID: "jazz", Title: "Jazz Night", CategoryID: "music", CategoryName: "ดนตรี",
			Schedule: catalog.Schedule{StartDate: now.Add(72 * time.Hour), EndDate: now.Add(75 * time.Hour)},
			Pricing:  map[string]float64{"regular": 900, "vip": 2500},
			Capacity: catalog.Capacity{Total: 100, Available: 20},
		},
		{
			ID: "fest", Title: "Food Festival", CategoryID: "food", CategoryName: "อาหาร",
			Schedule: catalog.Schedule{StartDate: now.Add(24 * time.Hour), EndDate: now.Add(30 * time.Hour)},
			Pricing:  map[string]float64{"regular": 200},
		},
	}
}

// NewEngine wires an Engine over api with the real clock and an echoing
// generation client.
func NewEngine(api *testutil.DataAPI) *assistant.Engine {
	clk := clock.System{}
	if len(api.Events) == 0 {
		api.Events = Catalog(clk.Now())
	}

	pool, err := ai.NewCredentialPool([]string{"test-key"})
	if err != nil {
		panic(err)
	}
	dispatcher := ai.NewDispatcher(pool, func(context.Context, string) (ai.Client, error) {
		return EchoClient{}, nil
	})

	classifier, err := intent.New()
	if err != nil {
		panic(err)
	}

	syncer := knowledge.NewSynchronizer(api, clk, time.Minute)
	store := session.NewStore(clk, 5*time.Minute)
	executor := action.NewExecutor(syncer, api, dispatcher, clk, 5*time.Minute)
	return assistant.New(store, classifier, executor, syncer, pending.NewMemoryStore(clk, 0), clk)
}
