package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/wise-mentor/backend/internal/handler/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/handler/persona"
	"github.com/zhouzirui/wise-mentor/backend/internal/handler/stream"
	"github.com/zhouzirui/wise-mentor/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/wise-mentor/backend/internal/middleware"
	personaModel "github.com/zhouzirui/wise-mentor/backend/internal/model/persona"
	aiService "github.com/zhouzirui/wise-mentor/backend/internal/service/ai"
	chatService "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
	"github.com/zhouzirui/wise-mentor/backend/pkg/utils"
)

// Deps 是路由需要的核心服务。
type Deps struct {
	Personas personaModel.Store
	Persona  personaModel.Persona
	Chat     *chatService.Service
	Session  *aiService.Session
	Exchange *exchange.Orchestrator
	Logger   *logrus.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(deps.Personas, deps.Persona)
	chatHandler := chat.New(deps.Chat, deps.Exchange)
	streamHandler := stream.New(deps.Chat, deps.Exchange, deps.Logger)
	wsHandler := ws.New(deps.Chat, deps.Exchange, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":             "ok",
				"providerConfigured": deps.Session.Configured(),
				"busy":               deps.Chat.IsBusy(),
			})
		})

		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
