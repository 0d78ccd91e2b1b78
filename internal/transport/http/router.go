package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tuition-notify/internal/config"
	"github.com/tuition-notify/internal/domain"
	"github.com/tuition-notify/internal/transport/http/handler"
	appmiddleware "github.com/tuition-notify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		// No claims are injected, so claim-reading handlers answer 401.
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 20 requests/second, burst of 40, per client IP.
	eventsRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)

	healthH := handler.NewHealthHandler(deps.HealthChecks)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	prefH := handler.NewPreferenceHandler(deps.Preferences)
	eventH := handler.NewEventHandler(deps.Runner)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllRead)
			r.Get("/notifications/preferences", prefH.Get)
			r.Put("/notifications/preferences", prefH.Update)
			r.Post("/notifications/connect-telegram", prefH.ConnectTelegram)
			r.Get("/notifications/{id}", notifH.Get)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))
				r.Use(eventsRL.Limit)

				r.Post("/events", eventH.Submit)
			})
		})
	})

	return r
}
