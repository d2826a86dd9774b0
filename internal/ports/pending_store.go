package ports

import (
	"context"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
)

// PendingStore keeps at most one pending navigation per session. Set
// overwrites the slot; Consume returns it and clears it.
type PendingStore interface {
	Set(ctx context.Context, sessionID string, nav chat.NavigatePayload) error
	Get(ctx context.Context, sessionID string) (chat.NavigatePayload, bool, error)
	Consume(ctx context.Context, sessionID string) (chat.NavigatePayload, bool, error)
	Clear(ctx context.Context, sessionID string) error
}
