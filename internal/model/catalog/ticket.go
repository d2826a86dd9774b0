package catalog

import (
	"sort"
	"strings"
	"time"
)

// Ticket is a purchased ticket owned by a user.
type Ticket struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	EventTitle  string    `json:"eventTitle,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	TicketType  string    `json:"ticketType,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	Price       float64   `json:"price"`
	TotalAmount *float64  `json:"totalAmount,omitempty"`
	Status      string    `json:"status,omitempty"`
	PurchasedAt time.Time `json:"purchasedAt,omitempty"`
}

// Amount is the revenue a ticket contributes.
func (t Ticket) Amount() float64 {
	if t.TotalAmount != nil {
		return *t.TotalAmount
	}
	return t.Price
}

// BookingRequest is handed to the booking API by the checkout flow.
type BookingRequest struct {
	EventID    string `json:"eventId"`
	TicketType string `json:"ticketType"`
	Quantity   int    `json:"quantity"`
	UserID     string `json:"userId"`
}

// BookingRecord is the booking API's answer.
type BookingRecord struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	TicketType  string    `json:"ticketType"`
	Quantity    int       `json:"quantity"`
	TotalAmount float64   `json:"totalAmount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TicketType is a pricing key the storefront knows how to sell.
type TicketType struct {
	Key     string
	Label   string
	Aliases []string
}

// TicketTypes lists the sellable pricing keys. Pricing entries with any other
// key are never offered.
var TicketTypes = []TicketType{
	{Key: "regular", Label: "บัตรทั่วไป", Aliases: []string{"regular", "standard", "ทั่วไป", "ธรรมดา"}},
	{Key: "vip", Label: "บัตร VIP", Aliases: []string{"vip", "วีไอพี"}},
	{Key: "student", Label: "บัตรนักศึกษา", Aliases: []string{"student", "นักศึกษา", "นักเรียน"}},
	{Key: "earlyBird", Label: "บัตร Early Bird", Aliases: []string{"early bird", "earlybird", "เอิร์ลลี่เบิร์ด"}},
	{Key: "group", Label: "บัตรกลุ่ม", Aliases: []string{"group", "กลุ่ม"}},
}

// LookupTicketType finds a known ticket type by pricing key.
func LookupTicketType(key string) (TicketType, bool) {
	for _, tt := range TicketTypes {
		if tt.Key == key {
			return tt, true
		}
	}
	return TicketType{}, false
}

// TicketOption is one priced choice for an event.
type TicketOption struct {
	Type  string  `json:"type"`
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// TicketOptions derives the sellable options from an event's pricing map,
// cheapest first. Ties keep the TicketTypes declaration order.
func TicketOptions(e Event) []TicketOption {
	options := make([]TicketOption, 0, len(e.Pricing))
	for _, tt := range TicketTypes {
		price, ok := e.Pricing[tt.Key]
		if !ok || price < 0 {
			continue
		}
		options = append(options, TicketOption{Type: tt.Key, Label: tt.Label, Price: price})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Price < options[j].Price
	})
	return options
}

// MatchTicketType returns the first known ticket type whose label or alias
// occurs in text. text must already be lower-cased.
func MatchTicketType(text string) (TicketType, bool) {
	for _, tt := range TicketTypes {
		if strings.Contains(text, strings.ToLower(tt.Label)) {
			return tt, true
		}
		for _, alias := range tt.Aliases {
			if strings.Contains(text, strings.ToLower(alias)) {
				return tt, true
			}
		}
	}
	return TicketType{}, false
}
