// Package rest wires the HTTP surface: routing, middleware stack, and the
// operational endpoints.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/http/rest/handlers"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/http/rest/middleware"
	"github.com/teamthinqers/thinkersweb-backend-sub006/interfaces/sse"
)

// Config carries the router's cross-cutting settings.
type Config struct {
	Auth           middleware.AuthConfig
	AllowedOrigins []string
}

// Router creates and configures the HTTP router.
type Router struct {
	config          Config
	logger          *zap.Logger
	gridHandler     *handlers.GridHandler
	mappingHandler  *handlers.MappingHandler
	positionHandler *handlers.PositionHandler
	statsHandler    *handlers.StatsHandler
	eventServer     *sse.Server
}

// NewRouter creates a new router instance.
func NewRouter(
	config Config,
	logger *zap.Logger,
	gridHandler *handlers.GridHandler,
	mappingHandler *handlers.MappingHandler,
	positionHandler *handlers.PositionHandler,
	statsHandler *handlers.StatsHandler,
	eventServer *sse.Server,
) *Router {
	return &Router{
		config:          config,
		logger:          logger,
		gridHandler:     gridHandler,
		mappingHandler:  mappingHandler,
		positionHandler: positionHandler,
		statsHandler:    statsHandler,
		eventServer:     eventServer,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	origins := rt.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Operational endpoints stay outside the authenticated API group.
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.config.Auth, rt.logger))

		// Hierarchy reads
		r.Get("/dots", rt.gridHandler.ListDots)
		r.Get("/wheels", rt.gridHandler.ListWheels)
		r.Get("/chakras", rt.gridHandler.ListChakras)

		// Parent-link mutations
		r.Route("/map", func(r chi.Router) {
			r.Post("/dot-to-wheel", rt.mappingHandler.MapDotToWheel)
			r.Post("/wheel-to-chakra", rt.mappingHandler.MapWheelToChakra)
			r.Post("/dot-to-chakra", rt.mappingHandler.MapDotToChakra)
		})

		// Placement
		r.Route("/position", func(r chi.Router) {
			r.Post("/save", rt.positionHandler.SavePosition)
			r.Post("/batch-save", rt.positionHandler.SavePositions)
		})

		// Mapping-coverage snapshot
		r.Get("/stats", rt.statsHandler.GetStats)

		// Long-lived push stream
		r.Get("/events", rt.eventServer.HandleEvents)
	})

	return router
}

// healthCheck handles health check requests.
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
