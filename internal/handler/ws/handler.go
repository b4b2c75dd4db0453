package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	chatHandler "github.com/zhouzirui/wise-mentor/backend/internal/handler/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/model/chat"
	chatService "github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Handler WebSocket聊天处理器：推送聊天记录快照，接收用户提交
type Handler struct {
	chatSvc  *chatService.Service
	exchange *exchange.Orchestrator
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, orchestrator *exchange.Orchestrator, log *logrus.Logger) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		exchange: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.WithField("component", "websocket"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接。所有写操作都在 writeLoop 中完成。
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, unsubscribe := h.chatSvc.Subscribe()
	defer unsubscribe()

	replies := make(chan outgoingMessage, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, feed, replies)
		cancel()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.log.Debug("client connected")
	h.readLoop(ctx, conn, replies)
	cancel()
	<-writerDone
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, replies chan<- outgoingMessage) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Warn("read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, replies, "error", map[string]string{"message": "invalid message"})
			continue
		}

		switch msg.Type {
		case "submit":
			h.handleSubmit(ctx, msg.Text, replies)
		case "ping":
			h.reply(ctx, replies, "pong", nil)
		default:
			h.reply(ctx, replies, "error", map[string]string{"message": "unsupported message type"})
		}
	}
}

func (h *Handler) handleSubmit(ctx context.Context, text string, replies chan<- outgoingMessage) {
	ticket, err := h.exchange.Start(ctx, text)
	if err != nil {
		if reason, ok := chatHandler.IgnoreReason(err); ok {
			h.reply(ctx, replies, "ignored", map[string]string{"reason": reason})
			return
		}
		h.log.WithError(err).Error("submit failed")
		h.reply(ctx, replies, "error", map[string]string{"message": "failed to submit message"})
		return
	}
	h.reply(ctx, replies, "accepted", ticket)
}

func (h *Handler) reply(ctx context.Context, replies chan<- outgoingMessage, kind string, data interface{}) {
	select {
	case replies <- outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}:
	case <-ctx.Done():
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, feed <-chan chat.Snapshot, replies <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg outgoingMessage
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case snap := <-feed:
			msg = outgoingMessage{Type: "transcript", Data: snap, Timestamp: time.Now().Unix()}
		case msg = <-replies:
		}

		payload, err := sonic.Marshal(msg)
		if err != nil {
			h.log.WithError(err).Error("failed to encode frame")
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.WithError(err).Debug("write failed")
			return
		}
	}
}
