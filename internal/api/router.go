// Package api assembles the relay's admin HTTP surface: health probes,
// Prometheus metrics, and a couple of operator endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/chatrelay/relay/internal/middleware"
)

// HandlerSet holds handler functions injected from main to avoid import
// cycles.
type HandlerSet struct {
	ConversationStats http.HandlerFunc
	ClearConversation http.HandlerFunc
}

// RouterConfig holds router-level configuration.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// ReadyChecks maps a component name to its health probe. Nil-valued
	// and absent components count as healthy.
	ReadyChecks map[string]func() bool
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks.
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe: checks optional backends (redis, nats).
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for name, check := range cfg.ReadyChecks {
			if check == nil {
				health[name] = "not configured"
				continue
			}
			if check() {
				health[name] = "healthy"
				continue
			}
			health[name] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		JSON(w, status, health)
	}
	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/{userID}/stats", h.ConversationStats)
			r.Post("/clear", h.ClearConversation)
		})
	})

	return r
}
