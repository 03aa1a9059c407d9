// Package api provides the HTTP API server and handlers for the Dipole annotation server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dipoleapp/dipole-server/internal/search"
	"github.com/dipoleapp/dipole-server/internal/sse"
	"github.com/dipoleapp/dipole-server/internal/store"
	"github.com/dipoleapp/dipole-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	services   *Services
	search     *search.SearchIndex
	sseManager *sse.Manager
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes configured. uiOrigin is
// the reader UI's origin for CORS; empty allows any origin.
func NewServer(
	st *store.Store,
	services *Services,
	searchIndex *search.SearchIndex,
	sseManager *sse.Manager,
	sseHandler *sse.Handler,
	uiOrigin string,
	logger *slog.Logger,
) *Server {
	if uiOrigin == "" {
		uiOrigin = "*"
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	// The reader UI runs on a renderer origin, not the server's.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{uiOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	humaConfig := huma.DefaultConfig("Dipole API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	RegisterErrorHandler()

	s := &Server{
		store:      st,
		services:   services,
		search:     searchIndex,
		sseManager: sseManager,
		sseHandler: sseHandler,
		router:     router,
		api:        humachi.New(router, humaConfig),
		validator:  validation.New(),
		logger:     logger,
	}

	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerReaderRoutes()
	s.registerSyncRoutes()
	s.registerSearchRoutes()
	s.registerImportRoutes()

	// SSE streams raw text/event-stream frames, outside the huma envelope.
	if sseHandler != nil {
		router.Get("/api/v1/events", sseHandler.ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
