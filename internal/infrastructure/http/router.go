package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/infrastructure/http/handlers"
	"github.com/engram-labs/engram/internal/infrastructure/http/middleware"
)

type RouterConfig struct {
	HealthHandler    *handlers.HealthHandler
	MemoriesHandler  *handlers.MemoriesHandler
	SnapshotsHandler *handlers.SnapshotsHandler
	AdminHandler     *handlers.AdminHandler
	Auth             *middleware.APIKeyValidator
	RequireAdmin     func(http.Handler) http.Handler // X-Engram-Admin-Secret for /admin/*
	Log              zerolog.Logger
	Secure           func(http.Handler) http.Handler
	IPRateLimit      func(http.Handler) http.Handler
	UserRateLimit    func(http.Handler) http.Handler
	CORS             func(http.Handler) http.Handler
	Metrics          bool // expose /metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(loggerMiddleware(cfg.Log))
	r.Use(chimid.Recoverer)
	if cfg.Metrics {
		r.Use(middleware.PrometheusMiddleware)
	}
	if cfg.Secure != nil {
		r.Use(cfg.Secure)
	}
	if cfg.CORS != nil {
		r.Use(cfg.CORS)
	}
	r.Use(middleware.APIVersion("v1"))
	r.Use(chimid.SetHeader("Content-Type", "application/json"))
	if cfg.IPRateLimit != nil {
		r.Use(cfg.IPRateLimit)
	}

	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.HealthHandler != nil {
			r.Get("/health", cfg.HealthHandler.ServeHTTP)
		} else {
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})
		}

		// Everything below requires a valid API key.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Handler)
			if cfg.UserRateLimit != nil {
				r.Use(cfg.UserRateLimit)
			}
			r.Route("/memories", func(r chi.Router) {
				r.Get("/", cfg.MemoriesHandler.List)
				r.Get("/search", cfg.MemoriesHandler.Search)
				r.Post("/sync", cfg.MemoriesHandler.Sync)
				r.Post("/bulk-sync", cfg.MemoriesHandler.BulkSync)
				r.Post("/delete", cfg.MemoriesHandler.Delete)
			})
			r.Route("/snapshots", func(r chi.Router) {
				r.Post("/sync", cfg.SnapshotsHandler.Sync)
				r.Post("/bulk-sync", cfg.SnapshotsHandler.BulkSync)
			})
		})
	})

	if cfg.AdminHandler != nil && cfg.RequireAdmin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(cfg.RequireAdmin)
			r.Post("/users", cfg.AdminHandler.CreateUser)
			r.Post("/users/{id}/rotate-key", cfg.AdminHandler.RotateKey)
			r.Post("/keys/revoke", cfg.AdminHandler.RevokeKey)
		})
	}

	return r
}

func loggerMiddleware(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chimid.GetReqID(r.Context())
			log.Info().
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
