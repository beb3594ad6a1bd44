package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/httperr"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/hotseat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ReplyMessage 创始人对某次打断的回应
type ReplyMessage struct {
	InterruptionID string `json:"interruptionId"`
	Reply          string `json:"reply"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理实时问询的WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	if session.Status != pitch.StatusLive {
		httperr.Respond(w, r, pitch.ErrSessionNotLive)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("session", sessionID)
	log.Info("live channel opened")
	defer log.Info("live channel closed")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, conn)

	h.sendResult(conn, log, sessionID, map[string]any{
		"kind":   "connected",
		"status": session.Status,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("live channel read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, log, "session mismatch")
			continue
		}

		if stop := h.handleMessage(ctx, conn, log, sessionID, &msg); stop {
			return
		}
	}
}

// handleMessage 分发一条入站消息，返回连接是否应关闭
func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, log *logrus.Entry, sessionID string, msg *inboundMessage) bool {
	switch msg.Type {
	case "chunk":
		var chunk hotseat.Chunk
		if err := json.Unmarshal(msg.Data, &chunk); err != nil {
			h.sendError(conn, log, "invalid chunk payload")
			return false
		}
		result, err := h.hotseat.ProcessChunk(ctx, sessionID, chunk)
		if err != nil {
			h.sendError(conn, log, errorMessage(err))
			return errors.Is(err, pitch.ErrSessionNotLive) || errors.Is(err, pitch.ErrSessionNotFound)
		}
		h.sendResult(conn, log, sessionID, map[string]any{
			"kind":         "chunk",
			"interrupted":  result.Interrupted,
			"interruption": result.Interruption,
			"vcResponse":   result.VCResponse,
			"reason":       result.Reason,
		})
	case "reply":
		var reply ReplyMessage
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			h.sendError(conn, log, "invalid reply payload")
			return false
		}
		in, err := h.hotseat.ClassifyReply(ctx, reply.InterruptionID, reply.Reply)
		if err != nil {
			h.sendError(conn, log, errorMessage(err))
			return false
		}
		h.sendResult(conn, log, sessionID, map[string]any{
			"kind":         "reaction",
			"reaction":     in.Reaction,
			"interruption": in,
		})
	default:
		h.sendError(conn, log, "unsupported message type: "+msg.Type)
	}
	return false
}

func errorMessage(err error) string {
	if httperr.Status(err) >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func (h *Handler) sendResult(conn *websocket.Conn, log *logrus.Entry, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.WithError(err).Warn("write result failed")
	}
}

func (h *Handler) sendError(conn *websocket.Conn, log *logrus.Entry, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.WithError(err).Warn("write error failed")
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
