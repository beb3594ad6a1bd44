// Package live exposes the in-pitch chunk evaluation over REST and a
// WebSocket channel.
package live

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/httperr"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/hotseat"
	sessionService "github.com/zhouzirui/vc-hotseat/backend/internal/service/session"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// Handler 实时问询的HTTP与WebSocket处理器
type Handler struct {
	hotseat  *hotseat.Service
	sessions *sessionService.Service
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New 创建实时问询处理器
func New(hotseatSvc *hotseat.Service, sessions *sessionService.Service) *Handler {
	return &Handler{
		hotseat:  hotseatSvc,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
		log: logrus.WithField("component", "live-handler"),
	}
}

// RegisterRoutes 注册实时问询相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/chunks", h.handleChunk)
	r.Post("/interruptions/{interruptionID}/reply", h.handleReply)
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

// handleChunk 评估一段累计转写文本
func (h *Handler) handleChunk(w http.ResponseWriter, r *http.Request) {
	var chunk hotseat.Chunk
	if err := utils.DecodeJSON(r, &chunk, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.hotseat.ProcessChunk(r.Context(), chi.URLParam(r, "sessionID"), chunk)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

type replyPayload struct {
	Reply string `json:"reply"`
}

// handleReply 对创始人的回应进行分类
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	var payload replyPayload
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := h.hotseat.ClassifyReply(r.Context(), chi.URLParam(r, "interruptionID"), payload.Reply)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"reaction":     in.Reaction,
		"interruption": in,
	})
}
