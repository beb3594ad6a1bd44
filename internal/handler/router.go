package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/live"
	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/market"
	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/mentor"
	"github.com/zhouzirui/vc-hotseat/backend/internal/handler/session"
	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	middlewarePkg "github.com/zhouzirui/vc-hotseat/backend/internal/middleware"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/hotseat"
	mentorService "github.com/zhouzirui/vc-hotseat/backend/internal/service/mentor"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
	sessionService "github.com/zhouzirui/vc-hotseat/backend/internal/service/session"
	"github.com/zhouzirui/vc-hotseat/backend/pkg/utils"
)

// Services groups what the router exposes.
type Services struct {
	Sessions *sessionService.Service
	Hotseat  *hotseat.Service
	Mentor   *mentorService.Service
	Search   *search.Service
	Identity identity.Extractor
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		api.Group(func(authed chi.Router) {
			authed.Use(middlewarePkg.Identity(svc.Identity))

			session.New(svc.Sessions).RegisterRoutes(authed)
			live.New(svc.Hotseat, svc.Sessions).RegisterRoutes(authed)
			mentor.New(svc.Mentor).RegisterRoutes(authed)
			market.New(svc.Search).RegisterRoutes(authed)
		})
	})

	return r
}
