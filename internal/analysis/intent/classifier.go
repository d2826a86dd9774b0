// Package intent maps free-text input onto the assistant's closed set of
// intents with an ordered keyword rule table.
package intent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

// Intent is a classified user goal.
type Intent string

const (
	ConfirmBooking       Intent = "confirm_booking"
	Navigate             Intent = "navigate"
	ForceRealtimeUpdate  Intent = "force_realtime_update"
	AIBooking            Intent = "ai_booking"
	SpecificEventBooking Intent = "specific_event_booking"
	GetEvents            Intent = "get_events"
	RecommendEvents      Intent = "recommend_events"
	SearchEvents         Intent = "search_events"
	TicketManagement     Intent = "ticket_management"
	Statistics           Intent = "statistics"
	GenericSearch        Intent = "generic_search"
	Help                 Intent = "help"
	BrowseCategories     Intent = "browse_categories"
	FreeForm             Intent = "free_form"
)

// Priority is the evaluation order of the rule table. Phrases overlap, so the
// first matching rule decides the intent. FreeForm always matches last.
var Priority = []Intent{
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
}

//go:embed phrases.yaml
var phrasesYAML []byte

type phraseBook struct {
	Intents map[string][]string `yaml:"intents"`
	Routes  []route             `yaml:"routes"`
}

type route struct {
	Path    string   `yaml:"path"`
	Phrases []string `yaml:"phrases"`
}

// EventRef identifies a catalog event by title for named-event booking.
type EventRef struct {
	ID    string
	Title string
}

// Hints is turn context the rules may consult.
type Hints struct {
	// Events are the titles currently known to the session.
	Events []EventRef
	// AwaitingTicketChoice is set while ticket options from the previous turn
	// are still open; naming a ticket type then confirms the booking.
	AwaitingTicketChoice bool
}

// Classification is the outcome of Classify.
type Classification struct {
	Intent  Intent `json:"intent"`
	Query   string `json:"query,omitempty"`
	Route   string `json:"route,omitempty"`
	EventID string `json:"eventId,omitempty"`
	// Text is the normalized input.
	Text string `json:"-"`
}

type matchFunc func(c *Classifier, text string, hints Hints) (Classification, bool)

// Classifier evaluates the rule table. It is immutable after New and safe for
// concurrent use.
type Classifier struct {
	phrases map[Intent][]string
	verbs   []string
	routes  []route
	rules   map[Intent]matchFunc
}

// New loads the embedded phrase book.
func New() (*Classifier, error) {
	return newFromYAML(phrasesYAML)
}

func newFromYAML(raw []byte) (*Classifier, error) {
	var book phraseBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("parse phrase book: %w", err)
	}

	c := &Classifier{phrases: make(map[Intent][]string)}
	for name, list := range book.Intents {
		normalized := normalizeAll(list)
		if name == "booking_verbs" {
			c.verbs = normalized
			continue
		}
		c.phrases[Intent(name)] = normalized
	}
	for _, r := range book.Routes {
		c.routes = append(c.routes, route{Path: r.Path, Phrases: normalizeAll(r.Phrases)})
	}

	c.rules = map[Intent]matchFunc{
		ConfirmBooking:       matchConfirm,
		Navigate:             matchNavigate,
		ForceRealtimeUpdate:  matchPlain(ForceRealtimeUpdate),
		AIBooking:            matchAIBooking,
		SpecificEventBooking: matchSpecificEvent,
		GetEvents:            matchPlain(GetEvents),
		RecommendEvents:      matchPlain(RecommendEvents),
		SearchEvents:         matchQuery(SearchEvents),
		TicketManagement:     matchPlain(TicketManagement),
		Statistics:           matchPlain(Statistics),
		GenericSearch:        matchTopic,
		Help:                 matchPlain(Help),
		BrowseCategories:     matchPlain(BrowseCategories),
	}

	for _, in := range Priority {
		if in == FreeForm {
			continue
		}
		if _, ok := c.rules[in]; !ok {
			return nil, fmt.Errorf("no rule for intent %q", in)
		}
	}
	return c, nil
}

// Classify returns the first intent in Priority whose rule matches input.
func (c *Classifier) Classify(input string, hints Hints) Classification {
	text := Normalize(input)
	if text == "" {
		return Classification{Intent: FreeForm}
	}

	for _, in := range Priority {
		rule, ok := c.rules[in]
		if !ok {
			continue
		}
		if cls, matched := rule(c, text, hints); matched {
			cls.Intent = in
			cls.Text = text
			return cls
		}
	}
	return Classification{Intent: FreeForm, Query: text, Text: text}
}

func (c *Classifier) firstPhrase(in Intent, text string) (string, bool) {
	return firstContained(c.phrases[in], text)
}

func matchPlain(in Intent) matchFunc {
	return func(c *Classifier, text string, _ Hints) (Classification, bool) {
		_, ok := c.firstPhrase(in, text)
		return Classification{}, ok
	}
}

func matchQuery(in Intent) matchFunc {
	return func(c *Classifier, text string, _ Hints) (Classification, bool) {
		phrase, ok := c.firstPhrase(in, text)
		if !ok {
			return Classification{}, false
		}
		return Classification{Query: stripPhrase(text, phrase)}, true
	}
}

func matchTopic(c *Classifier, text string, _ Hints) (Classification, bool) {
	phrase, ok := c.firstPhrase(GenericSearch, text)
	if !ok {
		return Classification{}, false
	}
	return Classification{Query: phrase}, true
}

func matchConfirm(c *Classifier, text string, hints Hints) (Classification, bool) {
	if _, ok := c.firstPhrase(ConfirmBooking, text); ok {
		return Classification{}, true
	}
	if hints.AwaitingTicketChoice {
		if _, ok := catalog.MatchTicketType(text); ok {
			return Classification{}, true
		}
	}
	return Classification{}, false
}

func matchNavigate(c *Classifier, text string, _ Hints) (Classification, bool) {
	if _, ok := c.firstPhrase(Navigate, text); !ok {
		return Classification{}, false
	}
	for _, r := range c.routes {
		if _, ok := firstContained(r.Phrases, text); ok {
			return Classification{Route: r.Path}, true
		}
	}
	return Classification{}, false
}

// matchAIBooking leaves inputs naming a known event to the specific booking
// rule.
func matchAIBooking(c *Classifier, text string, hints Hints) (Classification, bool) {
	if _, ok := c.firstPhrase(AIBooking, text); !ok {
		return Classification{}, false
	}
	if _, named := findEvent(text, hints.Events); named {
		return Classification{}, false
	}
	return Classification{}, true
}

func matchSpecificEvent(c *Classifier, text string, hints Hints) (Classification, bool) {
	if _, ok := firstContained(c.verbs, text); !ok {
		return Classification{}, false
	}
	ref, ok := findEvent(text, hints.Events)
	if !ok {
		return Classification{}, false
	}
	return Classification{EventID: ref.ID, Query: Normalize(ref.Title)}, true
}

// findEvent picks the longest known title contained in text.
func findEvent(text string, events []EventRef) (EventRef, bool) {
	var best EventRef
	bestLen := 0
	for _, e := range events {
		title := Normalize(e.Title)
		if title == "" || len(title) <= bestLen {
			continue
		}
		if strings.Contains(text, title) {
			best, bestLen = e, len(title)
		}
	}
	return best, bestLen > 0
}

func firstContained(phrases []string, text string) (string, bool) {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}

func normalizeAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
