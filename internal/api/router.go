package api

import (
	"net/http"
	"net/netip"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-chi/chi/v5"

	"github.com/momentokidspass/mkp/internal/api/handler"
	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/metrics"
	"github.com/momentokidspass/mkp/internal/ratelimit"
	"github.com/momentokidspass/mkp/internal/user"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Sessions    middleware.SessionStore
	Cookie      middleware.CookieConfig
	DBPinger    handler.DBPinger
	RedisPinger handler.DBPinger
	Version     string
	OpenAPISpec []byte

	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix

	// Metrics and Gatherer are optional. /metrics is mounted when Gatherer
	// is set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// LoginLimiter, when set, rate limits the credential endpoints.
	LoginLimiter ratelimit.Limiter
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP(deps.TrustedProxies))
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.RedisPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec, deps.Version)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	var observer handler.SignInObserver
	var onLimited func(string)
	if deps.Metrics != nil {
		observer = deps.Metrics
		onLimited = deps.Metrics.ObserveRateLimited
	}

	authHandler := handler.NewAuthHandler(deps.Sessions, deps.Cookie, observer)
	meHandler := handler.NewMeHandler()
	limit := middleware.RateLimit(deps.LoginLimiter, onLimited)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Sessions, deps.Cookie))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", authHandler.Session)
			r.With(limit).Post("/login", authHandler.Login)
			r.With(limit).Post("/first-access", authHandler.CompleteFirstAccess)
			r.Delete("/first-access", authHandler.CancelFirstAccess)
			r.Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated())

			r.Route("/me", func(r chi.Router) {
				r.Get("/", meHandler.Get)
				r.Get("/permissions", meHandler.Permissions)
				r.With(middleware.RequireRole(user.RoleAdmin, user.RoleTeacher)).
					Get("/teachers/{teacherId}/access", meHandler.TeacherAccess)
			})
			r.Get("/dashboard", meHandler.Dashboard)
		})
	})

	return r
}
