// Package api wires the HTTP surface: routing, middleware, and handlers.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewhub/crewhub/pkg/applications"
	"github.com/crewhub/crewhub/pkg/auth"
	"github.com/crewhub/crewhub/pkg/httputil"
	"github.com/crewhub/crewhub/pkg/middleware"
	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/orgs"
	"github.com/crewhub/crewhub/pkg/perm"
	"github.com/crewhub/crewhub/pkg/projects"
	"github.com/crewhub/crewhub/pkg/vacancies"
)

// Server bundles the HTTP handlers and their dependencies
type Server struct {
	evaluator    *perm.Evaluator
	users        *auth.Store
	tokenManager *auth.TokenManager
	orgs         *orgs.Service
	projects     *projects.Service
	vacancies    *vacancies.Service
	applications *applications.Service
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// Config holds the server's dependencies
type Config struct {
	Evaluator    *perm.Evaluator
	Users        *auth.Store
	TokenManager *auth.TokenManager
	Orgs         *orgs.Service
	Projects     *projects.Service
	Vacancies    *vacancies.Service
	Applications *applications.Service
	Logger       *observability.Logger
	Metrics      *observability.Metrics
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	return &Server{
		evaluator:    cfg.Evaluator,
		users:        cfg.Users,
		tokenManager: cfg.TokenManager,
		orgs:         cfg.Orgs,
		projects:     cfg.Projects,
		vacancies:    cfg.Vacancies,
		applications: cfg.Applications,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// Router builds the HTTP router with all middleware and routes
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.Use(httputil.RequestIDMiddleware(s.logger))
	router.Use(httputil.RecoveryMiddleware(s.logger))
	router.Use(httputil.LoggingMiddleware(s.logger))
	if s.metrics != nil {
		router.Use(s.metrics.HTTPMiddleware)
	}

	// Auth endpoints don't require a token
	public := router.PathPrefix("/api/v1").Subrouter()
	public.HandleFunc("/auth/register", s.Register).Methods("POST")
	public.HandleFunc("/auth/login", s.Login).Methods("POST")

	authMiddleware := middleware.NewAuthMiddleware(s.tokenManager, false)
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(authMiddleware.Handler)

	s.registerOrgRoutes(protected)
	s.registerProjectRoutes(protected)
	s.registerVacancyRoutes(protected)
	s.registerApplicationRoutes(protected)

	return router
}
