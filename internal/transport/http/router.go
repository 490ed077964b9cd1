package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/club-portal/internal/metrics"
	"github.com/pribylovaa/club-portal/internal/models"
	"github.com/pribylovaa/club-portal/internal/transport/http/handlers"
	"github.com/pribylovaa/club-portal/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	Metrics  *metrics.Server
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // ловим паники
		middleware.RequestID(),          // X-Request-Id до логирования
		middleware.Logging(opts.Logger), // request-scoped логгер в контексте
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout), // общий дедлайн запроса; <=0 — no-op
	)

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, v middleware.AccessVerifier) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/signup", h.Signup)
		r.Get("/verifyJWT", h.VerifyJWT)
		r.Get("/refreshToken", h.RefreshToken)
		r.Get("/getUserRole", h.GetUserRole)
	})

	r.Route("/admin", func(r chi.Router) {
		r.With(middleware.RequireRole(v, models.RoleTopAdmin)).
			Put("/users/{id}/role", h.ChangeRole)
	})
}
