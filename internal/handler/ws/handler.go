package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Assistant 是WebSocket处理器需要的引擎能力
type Assistant interface {
	Session(ctx context.Context, sessionID string) (chat.Session, error)
	HandleMessage(ctx context.Context, sessionID, input string) (chat.Response, error)
	Toggle(ctx context.Context, sessionID string) (session.State, error)
	Clear(ctx context.Context, sessionID string) (session.State, error)
	State(ctx context.Context, sessionID string) (session.State, error)
}

// Handler WebSocket会话处理器
type Handler struct {
	engine   Assistant
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(engine Assistant, timeout time.Duration) *Handler {
	return &Handler{
		engine:  engine,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn 串行化同一连接上的写操作
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) send(kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (c *conn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.engine.Session(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &conn{ws: ws, sessionID: sessionID}
	go pingLoop(ctx, ws)

	c.send("connected", nil)
	if state, err := h.engine.State(ctx, sessionID); err == nil {
		c.send("state", state)
	}

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		ws.SetReadDeadline(time.Now().Add(pongWait))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			c.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, c, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleText(ctx, c, msg.Data)
	case "toggle":
		h.respondState(c, func() (session.State, error) { return h.engine.Toggle(ctx, c.sessionID) })
	case "clear":
		h.respondState(c, func() (session.State, error) { return h.engine.Clear(ctx, c.sessionID) })
	case "state":
		h.respondState(c, func() (session.State, error) { return h.engine.State(ctx, c.sessionID) })
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleText(ctx context.Context, c *conn, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		c.sendError("invalid text payload")
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.engine.HandleMessage(ctx, c.sessionID, text.Text)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.send("reply", resp)
}

func (h *Handler) respondState(c *conn, fn func() (session.State, error)) {
	state, err := fn()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.send("state", state)
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
