package chat

// Response is what one assistant turn hands back to the presentation layer.
type Response struct {
	Message     string   `json:"message"`
	Intent      string   `json:"intent,omitempty"`
	Action      *Action  `json:"action,omitempty"`
	Data        any      `json:"data,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Warning     string   `json:"warning,omitempty"`

	// Pending, when set, is stored as the session's pending navigation.
	Pending *NavigatePayload `json:"-"`
	// Turn replaces the session's turn context when non-nil.
	Turn *TurnContext `json:"-"`
}
