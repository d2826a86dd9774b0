package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/ticket-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/handler/stream"
	"github.com/zhouzirui/ticket-assistant/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/ticket-assistant/backend/internal/middleware"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/ticket-assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the assistant engine. timeout bounds the
// handling of a single user message.
func NewRouter(engine *assistant.Engine, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(engine, timeout).RegisterRoutes(api)
		stream.New(engine, timeout).RegisterRoutes(api)
		ws.New(engine, timeout).RegisterRoutes(api)
	})

	return r
}
