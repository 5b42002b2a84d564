package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dn5s/lthread/internal/middleware"
	"github.com/dn5s/lthread/internal/middleware/metrics"
	"github.com/dn5s/lthread/internal/service"
	"github.com/dn5s/lthread/internal/setup"
)

// New wires all routes. Write endpoints sit behind the distributed rate
// limiter; each passes the General gate plus its own action-class gate.
func New(deps *setup.Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	h := deps.Handler
	rlEnabled := deps.Config.Public.RateLimit.Enabled

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/boards", h.GetBoards)

		r.Post("/admin/prune", h.ForcePrune)
		r.Get("/admin/prune/stats", h.PruneStats)

		r.Get("/{board}", h.GetBoard)
		r.Get("/{board}/{thread}", h.GetThread)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, service.ActionThreadCreate, rlEnabled))
			r.Post("/{board}", h.CreateThread)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter, service.ActionPostReply, rlEnabled))
			r.Post("/{board}/{thread}", h.CreateReply)
		})
	})

	return r
}
