package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/avbrook/skyrelay/internal/aircraft"
	"github.com/avbrook/skyrelay/internal/config"
	"github.com/avbrook/skyrelay/internal/drone"
	"github.com/avbrook/skyrelay/pkg/logger"
)

// Router wires the ingest API endpoints.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates the ingest API router.
func NewRouter(aircraftService *aircraft.Service, droneService *drone.Service, cfg *config.Config, log *logger.Logger) *Router {
	var limiter *rate.Limiter
	if cfg.RID.IngestRatePerSec > 0 {
		burst := cfg.RID.IngestBurst
		if burst <= 0 {
			burst = cfg.RID.IngestRatePerSec
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RID.IngestRatePerSec), burst)
	}

	return &Router{
		handler: NewHandler(aircraftService, droneService, limiter, log),
		cfg:     cfg,
	}
}

// Routes builds the chi route tree.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/rid", rt.handler.PostRID)
		r.Get("/rid/status", rt.handler.GetRIDStatus)
		r.Get("/status", rt.handler.GetStatus)
	})

	return r
}
