package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/httperr"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	sessionService "github.com/zhouzirui/vc-hotseat/backend/internal/service/session"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// DefaultPollInterval 报告流轮询会话的间隔
const DefaultPollInterval = 2 * time.Second

// Handler 会话生命周期的HTTP处理器
type Handler struct {
	sessions     *sessionService.Service
	pollInterval time.Duration
	log          *logrus.Entry
}

// New 创建会话处理器
func New(sessions *sessionService.Service) *Handler {
	return &Handler{
		sessions:     sessions,
		pollInterval: DefaultPollInterval,
		log:          logrus.WithField("component", "session-handler"),
	}
}

// WithPollInterval 修改报告流的轮询间隔
func (h *Handler) WithPollInterval(d time.Duration) *Handler {
	if d > 0 {
		h.pollInterval = d
	}
	return h
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions", h.handleList)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Post("/sessions/{sessionID}/start", h.handleStart)
	r.Post("/sessions/{sessionID}/end", h.handleEnd)
	r.Post("/sessions/{sessionID}/fail", h.handleFail)
	r.Post("/sessions/{sessionID}/report/regenerate", h.handleRegenerate)
	r.Get("/sessions/{sessionID}/report/stream", h.handleReportStream)
	r.Get("/sessions/{sessionID}/interruptions", h.handleListInterruptions)
	r.Post("/sessions/{sessionID}/interruptions", h.handleSubmitInterruption)
	r.Patch("/interruptions/{interruptionID}/reaction", h.handlePatchReaction)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload sessionService.CreateInput
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.Create(r.Context(), payload)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []pitch.Session{}
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Start(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleEnd 结束会话，报告在后台生成
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := utils.DecodeJSON(r, &payload, true); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.End(r.Context(), chi.URLParam(r, "sessionID"), payload.Transcript)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, session)
}

func (h *Handler) handleFail(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := utils.DecodeJSON(r, &payload, true); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.Fail(r.Context(), chi.URLParam(r, "sessionID"), payload.Reason)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.RegenerateReport(r.Context(), sessionID); err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "sessionId": sessionID})
}

// handleReportStream 通过SSE推送报告：报告生成前发送 pending 心跳，生成后发送 report 并关闭
func (h *Handler) handleReportStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	log := h.log.WithField("session", sessionID)
	log.Debug("opening report stream")

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		if done := h.emitReportState(w, flusher, session); done {
			return
		}

		select {
		case <-ctx.Done():
			log.Debug("report stream closed by client")
			return
		case <-ticker.C:
		}

		session, err = h.sessions.Get(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("report stream lookup failed")
				_ = utils.SendSSEEvent(w, flusher, "error", map[string]string{"message": err.Error()})
			}
			return
		}
	}
}

// emitReportState 发送会话当前状态对应的事件，返回流是否应结束
func (h *Handler) emitReportState(w http.ResponseWriter, flusher http.Flusher, session pitch.Session) bool {
	switch {
	case session.Report != nil:
		_ = utils.SendSSEEvent(w, flusher, "report", session.Report)
		return true
	case session.Status == pitch.StatusFailed:
		_ = utils.SendSSEEvent(w, flusher, "failed", map[string]string{
			"status": string(session.Status),
			"reason": session.FailureReason,
		})
		return true
	default:
		err := utils.SendSSEEvent(w, flusher, "pending", map[string]string{
			"status": string(session.Status),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return err != nil
	}
}

func (h *Handler) handleListInterruptions(w http.ResponseWriter, r *http.Request) {
	interruptions, err := h.sessions.Interruptions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	if interruptions == nil {
		interruptions = []pitch.Interruption{}
	}
	utils.RespondJSON(w, http.StatusOK, interruptions)
}

func (h *Handler) handleSubmitInterruption(w http.ResponseWriter, r *http.Request) {
	var payload sessionService.InterruptionInput
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := h.sessions.SubmitInterruption(r.Context(), chi.URLParam(r, "sessionID"), payload)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, in)
}

func (h *Handler) handlePatchReaction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reaction pitch.Reaction `json:"reaction"`
	}
	if err := utils.DecodeJSON(r, &payload, false); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := h.sessions.PatchReaction(r.Context(), chi.URLParam(r, "interruptionID"), payload.Reaction)
	if err != nil {
		httperr.Respond(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, in)
}
