package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/obs"
)

// RouterConfig wires the worker's operational HTTP surface.
type RouterConfig struct {
	Handler        Handler
	Logger         zerolog.Logger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// TriggerLimit wraps POST /runs, typically a rate limiter.
	TriggerLimit func(http.Handler) http.Handler
}

// NewRouter serves /healthz, /readyz, /metrics, GET /runs, GET /runs/last
// and POST /runs.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", cfg.Handler.Live)
	r.Get("/readyz", cfg.Handler.Ready)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/runs", func(rr chi.Router) {
		rr.Get("/", cfg.Handler.ListRuns)
		rr.Get("/last", cfg.Handler.LastRun)
		rr.Group(func(g chi.Router) {
			if cfg.TriggerLimit != nil {
				g.Use(cfg.TriggerLimit)
			}
			g.Post("/", cfg.Handler.TriggerRun)
		})
	})
	return r
}
