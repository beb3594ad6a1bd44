package market

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/httperr"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// Handler 市场调研的HTTP处理器
type Handler struct {
	search *search.Service
}

// New 创建市场调研处理器
func New(searchSvc *search.Service) *Handler {
	return &Handler{search: searchSvc}
}

// RegisterRoutes 注册市场调研相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/market/competitors", h.handleCompetitors)
}

func (h *Handler) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Industry string `json:"industry"`
		Product  string `json:"product"`
	}
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	industry := strings.TrimSpace(payload.Industry)
	product := strings.TrimSpace(payload.Product)
	if industry == "" || product == "" {
		utils.RespondError(w, http.StatusBadRequest, "industry and product are required")
		return
	}

	competitors, err := h.search.FindCompetitors(r.Context(), industry, product)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"competitors": competitors})
}
