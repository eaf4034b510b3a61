package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"

	"github.com/blockedby/mailmerge/internal/config"
)

// Server represents the Fuego API server.
type Server struct {
	fuego   *fuego.Server
	deps    *Dependencies
	version string
}

// Dependencies contains all service dependencies.
type Dependencies struct {
	Manager RunManager
	History RunHistory

	// RunConfig is applied to every run started through the API.
	RunConfig config.RunConfig

	// Preflight is passed to every job, typically a token check.
	Preflight func(ctx context.Context) error
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.Recoverer)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		fuego:   s,
		deps:    deps,
		version: version,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	dispatchGroup := fuego.Group(s.fuego, "/api/v1/dispatch",
		option.Tags("Dispatch"),
	)

	fuego.Post(dispatchGroup, "/validate", s.validateDispatch,
		option.Summary("Validate Job"),
		option.Description("Checks rows, recipient column, template and count without sending"),
	)

	fuego.Post(dispatchGroup, "/runs", s.startRun,
		option.Summary("Start Run"),
		option.Description("Validates the job and starts sending in the background. Returns 409 while another run is active"),
	)

	fuego.Get(dispatchGroup, "/runs", s.listRuns,
		option.Summary("List Runs"),
		option.Description("Returns recent runs, newest first"),
		option.Query("limit", "Max runs to return (default: 20, max: 100)"),
	)

	fuego.Get(dispatchGroup, "/runs/{id}", s.getRun,
		option.Summary("Get Run"),
		option.Description("Returns a run with its per-recipient results, plus live progress while active"),
	)

	fuego.Delete(dispatchGroup, "/runs/current", s.stopRun,
		option.Summary("Stop Current Run"),
		option.Description("Cancels the active run after the row in flight"),
	)
}

// Start starts the API server on its own listener.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Handler returns the API as an http.Handler for mounting on another router.
func (s *Server) Handler() http.Handler {
	return s.fuego.Mux
}

// MountDocsOn mounts the OpenAPI documentation routes (/docs, /openapi.json)
// on a Chi router, for when the API is served through Handler instead of Start.
func (s *Server) MountDocsOn(r interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}, title, description string) {
	scalarHandler := ScalarHandler("/openapi.json", title, description)
	r.Get("/docs", func(w http.ResponseWriter, req *http.Request) {
		scalarHandler.ServeHTTP(w, req)
	})

	r.Get("/openapi.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		spec := s.fuego.OpenAPI.Description()
		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	})
}
