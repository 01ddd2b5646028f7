package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/smsbridge/server/internal/auth"
	"github.com/smsbridge/server/internal/http/handlers"
	"github.com/smsbridge/server/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	onboardHandler *handlers.OnboardHandler,
	smsHandler *handlers.SMSHandler,
	adminHandler *handlers.AdminHandler,
	healthHandler *handlers.HealthHandler,
	jwtService *auth.JWTService,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	// IP limiter on registration only; inbound SMS is rate limited per
	// number inside the pipeline.
	onboardLimiter := middleware.NewRateLimiter(10*time.Minute, 30)

	r.Route("/onboard", func(r chi.Router) {
		r.Use(middleware.RateLimit(onboardLimiter))
		r.Post("/register", onboardHandler.HandleRegister)
	})

	r.Route("/sms", func(r chi.Router) {
		r.Post("/receive", smsHandler.HandleReceive)
	})

	// Protected routes (require valid operator JWT)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(jwtService))
		r.Get("/settings", adminHandler.HandleListSettings)
		r.Get("/settings/{key}", adminHandler.HandleGetSetting)
		r.Put("/settings/{key}", adminHandler.HandleUpdateSetting)
		r.Get("/blacklist", adminHandler.HandleListBlacklist)
		r.Post("/recovery", adminHandler.HandleRecovery)
	})

	return r
}
