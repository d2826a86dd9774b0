// Package action turns a classified message into a structured assistant
// response.
package action

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
)

const (
	apologyMessage = "ขออภัย เกิดข้อผิดพลาดระหว่างดำเนินการ กรุณาลองใหม่อีกครั้ง"
	staleWarning   = "ไม่สามารถอัปเดตข้อมูลบางส่วนได้ ข้อมูลที่แสดงอาจไม่เป็นปัจจุบัน"
	loginMessage   = "กรุณาเข้าสู่ระบบก่อนดำเนินการต่อ"
)

var retrySuggestions = []string{"ลองใหม่", "ดูอีเวนต์ทั้งหมด", "ช่วยเหลือ"}

// Generator answers free-form input.
type Generator interface {
	Generate(ctx context.Context, in ai.PromptInput) ai.Reply
}

// Request is one classified user turn.
type Request struct {
	User           *catalog.User
	Input          string
	Classification intent.Classification
	Turn           chat.TurnContext
	History        []chat.Message
	Memory         *knowledge.Memory
	// Prefetched holds resources already refreshed during this turn and the
	// outcome; refresh reuses it instead of calling the data API again.
	Prefetched map[knowledge.Resource]error
}

type handlerFunc func(ctx context.Context, req Request) (chat.Response, error)

// Executor runs the handler for each intent.
type Executor struct {
	sync     *knowledge.Synchronizer
	api      ports.DataAPI
	gen      Generator
	clock    clock.Clock
	cacheTTL time.Duration
	handlers map[intent.Intent]handlerFunc
}

// NewExecutor wires the handlers. cacheTTL <= 0 uses the Memory default.
func NewExecutor(syncer *knowledge.Synchronizer, api ports.DataAPI, gen Generator, clk clock.Clock, cacheTTL time.Duration) *Executor {
	if clk == nil {
		clk = clock.System{}
	}

	e := &Executor{sync: syncer, api: api, gen: gen, clock: clk, cacheTTL: cacheTTL}
	e.handlers = map[intent.Intent]handlerFunc{
		intent.ConfirmBooking:       e.confirmBooking,
		intent.Navigate:             e.navigate,
		intent.ForceRealtimeUpdate:  e.forceRealtimeUpdate,
		intent.AIBooking:            e.aiBooking,
		intent.SpecificEventBooking: e.specificEventBooking,
		intent.GetEvents:            e.getEvents,
		intent.RecommendEvents:      e.recommendEvents,
		intent.SearchEvents:         e.searchEvents,
		intent.TicketManagement:     e.ticketManagement,
		intent.Statistics:           e.statistics,
		intent.GenericSearch:        e.searchEvents,
		intent.Help:                 e.help,
		intent.BrowseCategories:     e.browseCategories,
		intent.FreeForm:             e.freeForm,
	}
	return e
}

// Execute runs the handler for req. It never fails: errors and panics become
// a chat message with suggestions.
func (e *Executor) Execute(ctx context.Context, req Request) (resp chat.Response) {
	in := req.Classification.Intent
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[action] handler %s panicked: %v", in, r)
			resp = apology(in)
		}
	}()

	handler, ok := e.handlers[in]
	if !ok {
		handler = e.freeForm
		in = intent.FreeForm
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return e.recoverFrom(in, err)
	}
	resp.Intent = string(in)
	return resp
}

func (e *Executor) recoverFrom(in intent.Intent, err error) chat.Response {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return chat.Response{
			Message:     authErr.Message,
			Intent:      string(in),
			Action:      authErr.Action,
			Suggestions: []string{"เข้าสู่ระบบ", "ดูอีเวนต์ทั้งหมด", "ช่วยเหลือ"},
			Pending:     authErr.Pending,
		}
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		suggestions := resErr.Alternatives
		if len(suggestions) == 0 {
			suggestions = []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์"}
		}
		return chat.Response{Message: resErr.Message, Intent: string(in), Suggestions: suggestions}
	}

	log.Printf("[action] handler %s failed: %v", in, err)
	return apology(in)
}

func apology(in intent.Intent) chat.Response {
	return chat.Response{
		Message:     apologyMessage,
		Intent:      string(in),
		Suggestions: append([]string(nil), retrySuggestions...),
	}
}

func loginRequired(pending *chat.NavigatePayload) error {
	return &AuthorizationError{
		Cause:   ErrLoginRequired,
		Message: loginMessage,
		Action:  chat.Navigate("/login", nil),
		Pending: pending,
	}
}

// refresh brings the given resources up to date and reports whether any of
// them fell back to stale data.
func (e *Executor) refresh(ctx context.Context, req Request, resources ...knowledge.Resource) string {
	stale := false
	for _, res := range resources {
		err, done := req.Prefetched[res]
		if !done {
			err = e.sync.Refresh(ctx, req.Memory, req.User, res, false)
		}
		if err != nil {
			var fetchErr *knowledge.FetchError
			if errors.As(err, &fetchErr) {
				stale = true
				continue
			}
			log.Printf("[action] refresh %s skipped: %v", res, err)
		}
	}
	if stale {
		return staleWarning
	}
	return ""
}

func (e *Executor) help(_ context.Context, _ Request) (chat.Response, error) {
	return chat.Response{
		Message: "ผู้ช่วยสามารถช่วยคุณได้ดังนี้:\n" +
			"- ดูหรือค้นหาอีเวนต์ เช่น \"ค้นหาคอนเสิร์ต\"\n" +
			"- แนะนำอีเวนต์ที่น่าสนใจ\n" +
			"- จองบัตร เช่น \"จอง <ชื่องาน>\"\n" +
			"- ดูตั๋วของฉัน\n" +
			"- ดูสถิติ และขอข้อมูลล่าสุด",
		Suggestions: []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์", "ตั๋วของฉัน", "หมวดหมู่"},
	}, nil
}

func (e *Executor) freeForm(ctx context.Context, req Request) (chat.Response, error) {
	warning := e.refresh(ctx, req, knowledge.ResourceEvents, knowledge.ResourceCategories, knowledge.ResourceTickets)

	snap := req.Memory.Snapshot().VisibleTo(req.User)
	now := e.clock.Now()

	in := ai.PromptInput{
		Summary:   snap.Summary(now),
		Freshness: snap.Freshness(now),
		History:   req.History,
		Input:     req.Input,
	}
	if req.User != nil {
		in.UserName = req.User.Name
	}

	reply := e.gen.Generate(ctx, in)
	return chat.Response{Message: reply.Text, Suggestions: reply.Suggestions, Warning: warning}, nil
}

func eventTitles(events []catalog.Event, limit int) []string {
	titles := make([]string, 0, limit)
	for _, ev := range events {
		if len(titles) == limit {
			break
		}
		titles = append(titles, ev.Title)
	}
	return titles
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.0f บาท", p)
}
