// Package api wires the HTTP routes of the route recommendation service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/api/handler"
	"github.com/ecoroute/ecoroute/internal/api/middleware"
	"github.com/ecoroute/ecoroute/internal/api/models"
	"github.com/ecoroute/ecoroute/internal/api/response"
	"github.com/ecoroute/ecoroute/internal/auth"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
)

// Serving is the policy service behind the API.
type Serving interface {
	handler.Optimizer
	handler.ModelSource
	handler.Reloader
}

// RouterConfig holds the collaborators of the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Serving  Serving
	Store    modelstore.Repository
	Registry *resilience.Registry

	// JWT validates operator tokens. Without it every protected endpoint
	// answers 401.
	JWT *auth.JWTService

	CORSOrigins []string
	RequireTLS  bool
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ecoroute-api"
	}
	jwt := cfg.JWT
	if jwt == nil {
		jwt = auth.NewJWTService(auth.JWTConfig{})
	}
	store := cfg.Store
	if store == nil {
		store = modelstore.NewMemoryRepository()
	}

	// Order matters: the request id must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.Method+" "+req.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, problemMethodNotAllowed(req))
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Serving, cfg.Registry)
	optimizeHandler := handler.NewOptimizeHandler(cfg.Serving, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Serving, store, cfg.Logger)

	authMiddleware := middleware.Auth(jwt)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Every optimize call fans out to live providers.
		r.With(
			middleware.RateLimitByIP(middleware.OptimizeRateLimit),
			middleware.RequireJSON,
		).Post("/routes:optimize", optimizeHandler.Optimize)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireOperator)
			r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))

			r.Get("/models", adminHandler.ListModels)
			r.Post("/models/{name}:reload", adminHandler.ReloadModel)
		})
	})

	return r
}

func problemMethodNotAllowed(req *http.Request) *models.Problem {
	return models.NewMethodNotAllowed(middleware.GetRequestID(req.Context()), req.Method+" is not allowed on "+req.URL.Path)
}
