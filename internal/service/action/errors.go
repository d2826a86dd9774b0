package action

import (
	"errors"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
)

// ErrLoginRequired marks actions that need an authenticated user.
var ErrLoginRequired = errors.New("login required")

// AuthorizationError ends the turn with a corrective message and, when set,
// an action that fixes the situation (usually a redirect to /login).
type AuthorizationError struct {
	Cause   error
	Message string
	Action  *chat.Action
	// Pending is remembered so the user can resume after fixing access.
	Pending *chat.NavigatePayload
}

func (e *AuthorizationError) Error() string {
	return "authorization: " + e.Cause.Error()
}

func (e *AuthorizationError) Unwrap() error {
	return e.Cause
}

// ResolutionError reports that no event or ticket type matched the request.
type ResolutionError struct {
	Message      string
	Alternatives []string
}

func (e *ResolutionError) Error() string {
	return "resolution: " + e.Message
}
