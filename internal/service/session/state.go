package session

import "github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"

// State is the view-facing state of one conversation.
type State struct {
	Open     bool             `json:"open"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
	Messages []chat.Message   `json:"messages"`
	Turn     chat.TurnContext `json:"turn"`
}

// EventType tags a state transition.
type EventType string

const (
	EventOpen           EventType = "open"
	EventClose          EventType = "close"
	EventToggle         EventType = "toggle"
	EventSendStarted    EventType = "send_started"
	EventReplyReceived  EventType = "reply_received"
	EventFailed         EventType = "failed"
	EventSetTurnContext EventType = "set_turn_context"
	EventClear          EventType = "clear"
)

// Event is one input to Reduce.
type Event struct {
	Type EventType
	// Message is appended by send_started, reply_received and failed.
	Message *chat.Message
	// Error is recorded by failed.
	Error string
	// Turn replaces the turn context on set_turn_context. Nil clears it.
	Turn *chat.TurnContext
}

// Reduce returns the state after ev. It never mutates s: appended messages
// go into a fresh backing array so earlier states stay valid.
func Reduce(s State, ev Event) State {
	switch ev.Type {
	case EventOpen:
		s.Open = true
	case EventClose:
		s.Open = false
	case EventToggle:
		s.Open = !s.Open
	case EventSendStarted:
		s.Messages = appendMessage(s.Messages, ev.Message)
		s.Loading = true
		s.Error = ""
	case EventReplyReceived:
		s.Messages = appendMessage(s.Messages, ev.Message)
		s.Loading = false
		s.Error = ""
	case EventFailed:
		s.Messages = appendMessage(s.Messages, ev.Message)
		s.Loading = false
		s.Error = ev.Error
	case EventSetTurnContext:
		if ev.Turn == nil {
			s.Turn = chat.TurnContext{}
		} else {
			s.Turn = *ev.Turn
		}
	case EventClear:
		s.Messages = nil
		s.Turn = chat.TurnContext{}
		s.Loading = false
		s.Error = ""
	}
	return s
}

func appendMessage(messages []chat.Message, msg *chat.Message) []chat.Message {
	if msg == nil {
		return messages
	}
	return append(messages[:len(messages):len(messages)], *msg)
}
