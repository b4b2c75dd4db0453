package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	chatHandler "github.com/zhouzirui/wise-mentor/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
	"github.com/zhouzirui/wise-mentor/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// Handler serves transcript changes and streaming replies as Server-Sent Events.
type Handler struct {
	chatSvc  *chatService.Service
	exchange *exchange.Orchestrator
	log      *logrus.Entry
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, orchestrator *exchange.Orchestrator, log *logrus.Logger) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		exchange: orchestrator,
		log:      log.WithField("component", "stream"),
	}
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
	r.Get("/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

// handleEvents pushes one full snapshot per transcript mutation until the client leaves.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	feed, cancel := h.chatSvc.Subscribe()
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-feed:
			if err := utils.SendSSEEvent(w, flusher, "transcript", snap); err != nil {
				h.log.WithError(err).Debug("events client gone")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keep-alive"); err != nil {
				return
			}
		}
	}
}

// handleStream submits ?message= and follows that one exchange to its end.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ticket, err := h.exchange.Submit(r.URL.Query().Get("message"))
	if err != nil {
		reason, ignored := chatHandler.IgnoreReason(err)
		if !ignored {
			h.log.WithError(err).Error("submit failed")
			utils.RespondError(w, http.StatusInternalServerError, "failed to submit message")
			return
		}
		utils.SetupSSEHeaders(w)
		h.send(w, flusher, StreamResponse{Event: "ignored", Reason: reason})
		h.send(w, flusher, StreamResponse{Event: "end", Finished: true})
		return
	}

	// Subscribe before the exchange runs so no state is missed.
	feed, cancel := h.chatSvc.Subscribe()
	defer cancel()
	h.exchange.RunAsync(r.Context(), ticket)

	utils.SetupSSEHeaders(w)
	h.send(w, flusher, StreamResponse{Event: "start", MessageID: ticket.PlaceholderID})

	ctx := r.Context()
	sent := ""
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-feed:
			outcome := ticket.Resolve(snap)
			if !outcome.Done {
				if outcome.Text != sent {
					sent = outcome.Text
					h.send(w, flusher, StreamResponse{Event: "delta", MessageID: ticket.PlaceholderID, Content: sent})
				}
				continue
			}

			if outcome.Failed {
				h.send(w, flusher, StreamResponse{Event: "error", MessageID: ticket.PlaceholderID, Content: outcome.Text})
			} else {
				h.send(w, flusher, StreamResponse{Event: "message", MessageID: ticket.PlaceholderID, Content: outcome.Text})
			}
			h.send(w, flusher, StreamResponse{Event: "end", MessageID: ticket.PlaceholderID, Finished: true})
			return
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		h.log.WithError(err).WithField("event", response.Event).Debug("failed to send sse event")
	}
}
