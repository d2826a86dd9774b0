package chat

import "github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"

// ActionType tags the payload carried by an Action.
type ActionType string

const (
	ActionNavigate           ActionType = "navigate"
	ActionAPICall            ActionType = "api_call"
	ActionDisplayData        ActionType = "display_data"
	ActionConfirmBooking     ActionType = "confirm_booking"
	ActionShowTicketOptions  ActionType = "show_ticket_options"
	ActionShowBookingChoices ActionType = "show_booking_choices"
)

// Action instructs the host UI to perform a side effect. Payload holds one of
// the *Payload types below matching Type.
type Action struct {
	Type    ActionType `json:"type"`
	Payload any        `json:"payload,omitempty"`
}

// NavigatePayload sends the UI to a route.
type NavigatePayload struct {
	URL    string            `json:"url"`
	Params map[string]string `json:"params,omitempty"`
}

// DisplayDataPayload tells the UI which collection Response.Data holds.
type DisplayDataPayload struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// APICallPayload asks the UI to call a data endpoint itself.
type APICallPayload struct {
	Endpoint string            `json:"endpoint"`
	Params   map[string]string `json:"params,omitempty"`
}

// ConfirmBookingPayload summarizes a resolved booking before checkout.
type ConfirmBookingPayload struct {
	EventID    string  `json:"eventId"`
	EventTitle string  `json:"eventTitle"`
	TicketType string  `json:"ticketType"`
	Price      float64 `json:"price"`
}

// TicketOptionsPayload offers the ticket types of one event.
type TicketOptionsPayload struct {
	EventID    string                 `json:"eventId"`
	EventTitle string                 `json:"eventTitle"`
	Options    []catalog.TicketOption `json:"options"`
}

// BookingChoice is one event offered for assistant-led booking.
type BookingChoice struct {
	EventID   string  `json:"eventId"`
	Title     string  `json:"title"`
	StartDate string  `json:"startDate,omitempty"`
	FromPrice float64 `json:"fromPrice"`
}

// BookingChoicesPayload offers several events to book.
type BookingChoicesPayload struct {
	Choices []BookingChoice `json:"choices"`
}

// Navigate builds a navigate action.
func Navigate(url string, params map[string]string) *Action {
	return &Action{Type: ActionNavigate, Payload: NavigatePayload{URL: url, Params: params}}
}

// NavigateURL returns the target of a navigate action, or "" for any other
// action.
func (a *Action) NavigateURL() string {
	if a == nil || a.Type != ActionNavigate {
		return ""
	}
	if p, ok := a.Payload.(NavigatePayload); ok {
		return p.URL
	}
	return ""
}
