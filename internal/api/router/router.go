package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/expert-call-booker/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/expert-call-booker/internal/http/middleware"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Bookings           *handlers.BookingsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// OperatorJWTSecret enables bearer-token auth on /api when set.
	OperatorJWTSecret string

	// Per-IP limits on /api; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		if cfg.OperatorJWTSecret != "" {
			api.Use(httpmiddleware.OperatorJWT(cfg.OperatorJWTSecret))
		}
		if cfg.Bookings != nil {
			api.Post("/bookings", cfg.Bookings.CreateBookings)
		}
	})

	return r
}
