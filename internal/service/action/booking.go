package action

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
)

const (
	checkoutRoute      = "/checkout"
	bookingChoiceLimit = 5
)

// checkout is a resolved event and ticket type ready for the checkout flow.
type checkout struct {
	EventID    string
	EventTitle string
	Option     catalog.TicketOption
}

func (c checkout) navigate() chat.NavigatePayload {
	return chat.NavigatePayload{
		URL:    checkoutRoute,
		Params: map[string]string{"eventId": c.EventID, "ticketType": c.Option.Type},
	}
}

// confirmBooking hands a resolved choice to checkout. It never creates a
// booking itself. Without a user it only redirects to /login, remembering
// the checkout target when one can be resolved.
func (e *Executor) confirmBooking(ctx context.Context, req Request) (chat.Response, error) {
	warning := e.refresh(ctx, req, knowledge.ResourceEvents)
	target, resolveErr := e.resolveCheckout(req)

	if req.User == nil {
		if resolveErr != nil {
			return chat.Response{}, loginRequired(nil)
		}
		pending := target.navigate()
		return chat.Response{}, loginRequired(&pending)
	}
	if resolveErr != nil {
		return chat.Response{}, resolveErr
	}

	nav := target.navigate()
	return chat.Response{
		Message: fmt.Sprintf("กำลังพาไปหน้าชำระเงินสำหรับ %s (%s ราคา %s)",
			target.EventTitle, target.Option.Label, formatPrice(target.Option.Price)),
		Action: &chat.Action{Type: chat.ActionNavigate, Payload: nav},
		Data: chat.ConfirmBookingPayload{
			EventID:    target.EventID,
			EventTitle: target.EventTitle,
			TicketType: target.Option.Type,
			Price:      target.Option.Price,
		},
		Suggestions: []string{"ตั๋วของฉัน", "ดูอีเวนต์ทั้งหมด"},
		Warning:     warning,
		Turn:        &chat.TurnContext{},
	}, nil
}

// resolveCheckout prefers the options offered in the previous turn, then the
// offered booking choices, then a title match against the known catalog.
func (e *Executor) resolveCheckout(req Request) (checkout, error) {
	text := req.Classification.Text
	events := req.Memory.Events()

	if opts := req.Turn.TicketOptions; opts != nil {
		// the offer may have gone stale since it was shown
		if ev, found := findByID(events, opts.EventID); found {
			if err := e.checkBookable(ev, events); err != nil {
				return checkout{}, err
			}
		}
		option, err := pickOption(opts.Options, text)
		if err != nil {
			return checkout{}, err
		}
		return checkout{EventID: opts.EventID, EventTitle: opts.EventTitle, Option: option}, nil
	}

	if choices := req.Turn.BookingChoices; choices != nil {
		choice, ok := pickChoice(choices.Choices, text)
		if !ok {
			titles := make([]string, 0, len(choices.Choices))
			for _, c := range choices.Choices {
				titles = append(titles, "จอง "+c.Title)
			}
			return checkout{}, &ResolutionError{Message: "กรุณาระบุอีเวนต์ที่ต้องการจองจากรายการที่แนะนำ", Alternatives: titles}
		}
		ev, found := findByID(events, choice.EventID)
		if !found {
			return checkout{}, &ResolutionError{Message: fmt.Sprintf("ไม่พบข้อมูลบัตรของ %s", choice.Title)}
		}
		return e.checkoutFor(ev, text)
	}

	ev, ok := findByTitle(events, text)
	if !ok {
		return checkout{}, &ResolutionError{
			Message:      "ไม่พบอีเวนต์ที่ต้องการจอง กรุณาเลือกอีเวนต์ก่อนยืนยันการจอง",
			Alternatives: e.alternatives(events),
		}
	}
	return e.checkoutFor(ev, text)
}

func (e *Executor) checkoutFor(ev catalog.Event, text string) (checkout, error) {
	if err := e.checkBookable(ev, nil); err != nil {
		return checkout{}, err
	}
	option, err := pickOption(catalog.TicketOptions(ev), text)
	if err != nil {
		return checkout{}, err
	}
	return checkout{EventID: ev.ID, EventTitle: ev.Title, Option: option}, nil
}

// pickOption matches a ticket type named in text. With no type named, a
// single offered option is taken as-is.
func pickOption(options []catalog.TicketOption, text string) (catalog.TicketOption, error) {
	if len(options) == 0 {
		return catalog.TicketOption{}, &ResolutionError{Message: "อีเวนต์นี้ยังไม่มีบัตรที่เปิดขาย"}
	}

	if tt, ok := catalog.MatchTicketType(text); ok {
		for _, o := range options {
			if o.Type == tt.Key {
				return o, nil
			}
		}
	}
	if len(options) == 1 {
		return options[0], nil
	}

	labels := make([]string, 0, len(options))
	for _, o := range options {
		labels = append(labels, o.Label)
	}
	return catalog.TicketOption{}, &ResolutionError{
		Message:      "กรุณาเลือกประเภทบัตร: " + strings.Join(labels, ", "),
		Alternatives: labels,
	}
}

// pickChoice accepts a title or a 1-based position from the offered list.
func pickChoice(choices []chat.BookingChoice, text string) (chat.BookingChoice, bool) {
	best, bestLen := -1, 0
	for i, c := range choices {
		title := intent.Normalize(c.Title)
		if title != "" && len(title) > bestLen && strings.Contains(text, title) {
			best, bestLen = i, len(title)
		}
	}
	if best >= 0 {
		return choices[best], true
	}

	for _, field := range strings.Fields(text) {
		if n, err := strconv.Atoi(field); err == nil && n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
	}
	if len(choices) == 1 {
		return choices[0], true
	}
	return chat.BookingChoice{}, false
}

func (e *Executor) specificEventBooking(ctx context.Context, req Request) (chat.Response, error) {
	warning := e.refresh(ctx, req, knowledge.ResourceEvents)
	events := req.Memory.Events()

	ev, found := findByID(events, req.Classification.EventID)
	if !found && req.Classification.EventID != "" {
		fetched, err := e.api.GetEvent(ctx, req.Classification.EventID)
		if err != nil {
			return chat.Response{}, fmt.Errorf("get event %s: %w", req.Classification.EventID, err)
		}
		if fetched != nil {
			ev, found = *fetched, true
		}
	}
	if !found {
		return chat.Response{}, &ResolutionError{
			Message:      "ไม่พบอีเวนต์ที่ต้องการจอง",
			Alternatives: e.alternatives(events),
		}
	}

	if err := e.checkBookable(ev, events); err != nil {
		return chat.Response{}, err
	}

	options := catalog.TicketOptions(ev)
	if len(options) == 0 {
		return chat.Response{}, &ResolutionError{
			Message:      fmt.Sprintf("%s ยังไม่มีบัตรที่เปิดขาย", ev.Title),
			Alternatives: e.alternatives(events),
		}
	}

	payload := &chat.TicketOptionsPayload{EventID: ev.ID, EventTitle: ev.Title, Options: options}
	req.Memory.RememberCategory(ev.CategoryID)

	lines := make([]string, 0, len(options))
	suggestions := make([]string, 0, len(options))
	for _, o := range options {
		lines = append(lines, fmt.Sprintf("- %s %s", o.Label, formatPrice(o.Price)))
		suggestions = append(suggestions, o.Label)
	}

	return chat.Response{
		Message:     fmt.Sprintf("บัตรของ %s มีดังนี้:\n%s\nเลือกประเภทบัตรที่ต้องการได้เลย", ev.Title, strings.Join(lines, "\n")),
		Action:      &chat.Action{Type: chat.ActionShowTicketOptions, Payload: *payload},
		Data:        options,
		Suggestions: suggestions,
		Warning:     warning,
		Turn:        &chat.TurnContext{TicketOptions: payload},
	}, nil
}

func (e *Executor) aiBooking(ctx context.Context, req Request) (chat.Response, error) {
	warning := e.refresh(ctx, req, knowledge.ResourceEvents)
	now := e.clock.Now()

	var bookable []catalog.Event
	for _, ev := range req.Memory.Events() {
		if ev.Bookable(now) && len(catalog.TicketOptions(ev)) > 0 {
			bookable = append(bookable, ev)
		}
	}
	if len(bookable) == 0 {
		return chat.Response{}, &ResolutionError{
			Message:      "ขณะนี้ยังไม่มีอีเวนต์ที่เปิดให้จอง",
			Alternatives: []string{"ดูอีเวนต์ทั้งหมด", "ข้อมูลล่าสุด"},
		}
	}

	sort.SliceStable(bookable, func(i, j int) bool {
		return bookable[i].Schedule.StartDate.Before(bookable[j].Schedule.StartDate)
	})
	if len(bookable) > bookingChoiceLimit {
		bookable = bookable[:bookingChoiceLimit]
	}

	payload := &chat.BookingChoicesPayload{Choices: make([]chat.BookingChoice, 0, len(bookable))}
	lines := make([]string, 0, len(bookable))
	for i, ev := range bookable {
		from := catalog.TicketOptions(ev)[0].Price
		payload.Choices = append(payload.Choices, chat.BookingChoice{
			EventID:   ev.ID,
			Title:     ev.Title,
			StartDate: ev.Schedule.StartDate.Format("2006-01-02"),
			FromPrice: from,
		})
		lines = append(lines, fmt.Sprintf("%d. %s (%s) เริ่มต้น %s",
			i+1, ev.Title, ev.Schedule.StartDate.Format("2006-01-02"), formatPrice(from)))
	}

	return chat.Response{
		Message:     "อีเวนต์ที่จองได้ตอนนี้:\n" + strings.Join(lines, "\n") + "\nพิมพ์หมายเลขหรือชื่องานเพื่อจอง",
		Action:      &chat.Action{Type: chat.ActionShowBookingChoices, Payload: *payload},
		Data:        payload.Choices,
		Suggestions: eventTitles(bookable, 3),
		Warning:     warning,
		Turn:        &chat.TurnContext{BookingChoices: payload},
	}, nil
}

// checkBookable rejects events that already started or have no seats left.
func (e *Executor) checkBookable(ev catalog.Event, others []catalog.Event) error {
	now := e.clock.Now()
	switch {
	case ev.Started(now):
		return &ResolutionError{
			Message:      fmt.Sprintf("%s เริ่มไปแล้ว ไม่สามารถจองได้", ev.Title),
			Alternatives: e.alternatives(others),
		}
	case ev.SoldOut():
		return &ResolutionError{
			Message:      fmt.Sprintf("บัตรของ %s ขายหมดแล้ว", ev.Title),
			Alternatives: e.alternatives(others),
		}
	}
	return nil
}

// alternatives suggests up to three other bookable events.
func (e *Executor) alternatives(events []catalog.Event) []string {
	now := e.clock.Now()
	var out []string
	for _, ev := range events {
		if len(out) == 3 {
			break
		}
		if ev.Bookable(now) {
			out = append(out, "จอง "+ev.Title)
		}
	}
	return out
}

func findByID(events []catalog.Event, id string) (catalog.Event, bool) {
	if id == "" {
		return catalog.Event{}, false
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev, true
		}
	}
	return catalog.Event{}, false
}

// findByTitle picks the longest event title contained in text.
func findByTitle(events []catalog.Event, text string) (catalog.Event, bool) {
	var best catalog.Event
	bestLen := 0
	for _, ev := range events {
		title := intent.Normalize(ev.Title)
		if title != "" && len(title) > bestLen && strings.Contains(text, title) {
			best, bestLen = ev, len(title)
		}
	}
	return best, bestLen > 0
}
