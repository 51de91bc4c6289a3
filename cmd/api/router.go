package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrumpts/cocoa-concierge/internal/config"
	"github.com/scrumpts/cocoa-concierge/internal/handler"
	"github.com/scrumpts/cocoa-concierge/internal/middleware"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// routes holds everything the router mounts.
type routes struct {
	health    *handler.HealthHandler
	chat      *handler.ChatHandler
	recommend *handler.RecommendHandler
	products  *handler.ProductHandler
	relay     http.Handler
}

func newRouter(cfg *config.Config, log *logger.Logger, rt routes) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", rt.health.Health)
	r.Get("/ready", rt.health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Handle("/ws/chat", rt.relay)
		r.Get("/products", rt.products.List)

		r.Group(func(r chi.Router) {
			if cfg.AuthRequired {
				r.Use(middleware.Auth(cfg.JWTSecret))
			}
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.With(middleware.RequireSameUser("userId")).Get("/chat/{userId}", rt.chat.History)
			r.Post("/recommend", rt.recommend.Recommend)
		})
	})

	return r
}
