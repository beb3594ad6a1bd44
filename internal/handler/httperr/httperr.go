// Package httperr maps domain errors onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/ai"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, pitch.ErrSessionNotFound),
		errors.Is(err, pitch.ErrInterruptionNotFound),
		errors.Is(err, pitch.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, pitch.ErrInvalidTransition),
		errors.Is(err, pitch.ErrSessionNotLive),
		errors.Is(err, pitch.ErrReportNotReady),
		errors.Is(err, pitch.ErrInterruptionLimit),
		errors.Is(err, pitch.ErrReactionAlreadySet):
		return http.StatusConflict
	case errors.Is(err, pitch.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrMissingAPIKey),
		errors.Is(err, ai.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body. Internal failures are logged
// and reported with a generic message.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logrus.WithFields(logrus.Fields{
			"component": "http",
			"method":    r.Method,
			"path":      r.URL.Path,
		}).WithError(err).Error("request failed")
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
