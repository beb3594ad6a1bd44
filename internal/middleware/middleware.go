package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// CORS 允许浏览器前端跨域访问 API。
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-User-ID")
		h.Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Identity resolves the caller with ext and stores the user id on the
// request context. Requests without an identity get 401.
func Identity(ext identity.Extractor) func(http.Handler) http.Handler {
	log := logrus.WithField("component", "identity")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := ext.Extract(r)
			if err != nil {
				log.WithField("path", r.URL.Path).Debug("rejecting unauthenticated request")
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
		})
	}
}
