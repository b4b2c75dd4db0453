package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
	"github.com/zhouzirui/wise-mentor/backend/pkg/utils"
)

// Handler 聊天记录与消息提交的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	exchange *exchange.Orchestrator
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, orchestrator *exchange.Orchestrator) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		exchange: orchestrator,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/transcript", h.handleTranscript)
	r.Post("/messages", h.handleSubmit)
}

// SubmitResponse 描述一次提交的结果。被忽略的提交不会改变聊天记录。
type SubmitResponse struct {
	Accepted bool             `json:"accepted"`
	Reason   string           `json:"reason,omitempty"`
	Ticket   *exchange.Ticket `json:"ticket,omitempty"`
}

// handleTranscript 返回当前聊天记录快照
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

// handleSubmit 提交用户消息并在后台开始流式回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := utils.DecodeJSON(r.Body, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket, err := h.exchange.Start(r.Context(), payload.Text)
	if err != nil {
		if reason, ok := IgnoreReason(err); ok {
			utils.RespondJSON(w, http.StatusOK, SubmitResponse{Reason: reason})
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to submit message")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, SubmitResponse{Accepted: true, Ticket: &ticket})
}

// IgnoreReason maps admission errors to the reason reported to clients.
func IgnoreReason(err error) (string, bool) {
	switch {
	case errors.Is(err, chatService.ErrBlankInput):
		return "blank", true
	case errors.Is(err, chatService.ErrBusy):
		return "busy", true
	default:
		return "", false
	}
}
