package mentor

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/httperr"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	mentorService "github.com/zhouzirui/vc-hotseat/backend/internal/service/mentor"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// Handler 苏格拉底式辅导对话的HTTP处理器
type Handler struct {
	mentor *mentorService.Service
}

// New 创建辅导处理器
func New(mentor *mentorService.Service) *Handler {
	return &Handler{mentor: mentor}
}

// RegisterRoutes 注册辅导相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/mentor/{focus}", h.handleSend)
	r.Get("/sessions/{sessionID}/mentor/{focus}", h.handleChat)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	focus, ok := pitch.ParseFocusArea(chi.URLParam(r, "focus"))
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown focus area")
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chat, err := h.mentor.Send(r.Context(), chi.URLParam(r, "sessionID"), focus, payload.Message)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	focus, ok := pitch.ParseFocusArea(chi.URLParam(r, "focus"))
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "unknown focus area")
		return
	}

	chat, err := h.mentor.Chat(r.Context(), chi.URLParam(r, "sessionID"), focus)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat)
}
