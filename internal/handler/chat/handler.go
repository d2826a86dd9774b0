package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
	"github.com/zhouzirui/ticket-assistant/backend/pkg/utils"
)

// Assistant 是处理器依赖的助手引擎能力
type Assistant interface {
	CreateSession(ctx context.Context, user *catalog.User) (chat.Session, error)
	Session(ctx context.Context, sessionID string) (chat.Session, error)
	HandleMessage(ctx context.Context, sessionID, input string) (chat.Response, error)
	Toggle(ctx context.Context, sessionID string) (session.State, error)
	Clear(ctx context.Context, sessionID string) (session.State, error)
	State(ctx context.Context, sessionID string) (session.State, error)
	Knowledge(ctx context.Context, sessionID string, force bool) (assistant.KnowledgeView, error)
	SignIn(ctx context.Context, sessionID string, user *catalog.User) (*chat.NavigatePayload, error)
	ConsumePending(ctx context.Context, sessionID string) (*chat.NavigatePayload, error)
}

var _ Assistant = (*assistant.Engine)(nil)

// Handler 助手会话的HTTP处理器
type Handler struct {
	engine  Assistant
	timeout time.Duration
}

// New 创建处理器；timeout 限制单条消息的处理时长（<=0 表示不限制）
func New(engine Assistant, timeout time.Duration) *Handler {
	return &Handler{engine: engine, timeout: timeout}
}

// RegisterRoutes 注册会话与助手相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/toggle", h.handleToggle)
	r.Post("/session/{sessionID}/clear", h.handleClear)
	r.Post("/session/{sessionID}/signin", h.handleSignIn)

	r.Post("/assistant/{sessionID}/messages", h.handleMessage)
	r.Get("/assistant/{sessionID}/knowledge", h.handleKnowledge)
	r.Get("/assistant/{sessionID}/pending", h.handlePending)
}

type userPayload struct {
	User *catalog.User `json:"user"`
}

// handleCreateSession 创建会话，user 可省略（访客）
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.User != nil && strings.TrimSpace(payload.User.ID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user.id is required")
		return
	}

	sess, err := h.engine.CreateSession(r.Context(), payload.User)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.engine.Session(r.Context(), sessionID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	state, err := h.engine.State(r.Context(), sessionID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"session": sess, "state": state})
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Toggle(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.Clear(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

// handleSignIn 绑定登录用户，并返回登录前暂存的跳转
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.User == nil || strings.TrimSpace(payload.User.ID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user.id is required")
		return
	}

	nav, err := h.engine.SignIn(r.Context(), chi.URLParam(r, "sessionID"), payload.User)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"pending": nav})
}

// handleMessage 处理一条用户消息
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.engine.HandleMessage(ctx, chi.URLParam(r, "sessionID"), payload.Message)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	view, err := h.engine.Knowledge(r.Context(), chi.URLParam(r, "sessionID"), force)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handlePending 取出并清除暂存的跳转
func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	nav, err := h.engine.ConsumePending(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"pending": nav})
}

// respondEngineError 将引擎错误映射为HTTP状态码
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondErrorCode(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrTurnInProgress):
		utils.RespondErrorCode(w, http.StatusConflict, "turn_in_progress", err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
