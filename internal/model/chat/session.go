package chat

import (
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
)

// Session captures a transient assistant conversation.
type Session struct {
	ID        string        `json:"id"`
	User      *catalog.User `json:"user,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TurnContext carries the choices offered in the previous reply so the next
// message can refer back to them.
type TurnContext struct {
	TicketOptions  *TicketOptionsPayload  `json:"ticketOptions,omitempty"`
	BookingChoices *BookingChoicesPayload `json:"bookingChoices,omitempty"`
}

// Empty reports whether nothing is pending from the previous turn.
func (t TurnContext) Empty() bool {
	return t.TicketOptions == nil && t.BookingChoices == nil
}
