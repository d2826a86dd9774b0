package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
	"github.com/zhouzirui/ticket-assistant/backend/pkg/utils"
)

// Responder 是流式处理器需要的引擎能力
type Responder interface {
	Session(ctx context.Context, sessionID string) (chat.Session, error)
	HandleMessage(ctx context.Context, sessionID, input string) (chat.Response, error)
}

// Handler 通过 Server-Sent Events 推送助手回复
type Handler struct {
	engine    Responder
	timeout   time.Duration
	heartbeat time.Duration
}

// New creates a new stream handler
func New(engine Responder, timeout time.Duration) *Handler {
	return &Handler{engine: engine, timeout: timeout, heartbeat: 8 * time.Second}
}

// StreamEvent 是每个SSE事件的数据体
type StreamEvent struct {
	SessionID string         `json:"sessionId"`
	Response  *chat.Response `json:"response,omitempty"`
	Finished  bool           `json:"finished,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

type turnResult struct {
	resp chat.Response
	err  error
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if _, err := h.engine.Session(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			utils.RespondErrorCode(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	_ = sse.Event("start", StreamEvent{SessionID: sessionID})

	done := make(chan turnResult, 1)
	go func() {
		resp, err := h.engine.HandleMessage(ctx, sessionID, message)
		done <- turnResult{resp: resp, err: err}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Printf("[stream] client closed session=%s", sessionID)
			return
		case <-ticker.C:
			if err := sse.Comment("heartbeat"); err != nil {
				return
			}
		case result := <-done:
			if result.err != nil {
				log.Printf("[stream] turn failed session=%s: %v", sessionID, result.err)
				_ = sse.Event("error", StreamEvent{SessionID: sessionID, Error: result.err.Error()})
				return
			}
			_ = sse.Event("message", StreamEvent{SessionID: sessionID, Response: &result.resp})
			_ = sse.Event("end", StreamEvent{SessionID: sessionID, Finished: true})
			log.Printf("[stream] completed response for session=%s intent=%s", sessionID, result.resp.Intent)
			return
		}
	}
}
