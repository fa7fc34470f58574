package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rpupo63/portfolio-projects-backend/config"
	"github.com/rs/zerolog/log"
)

type Server struct {
	*http.Server
	startupTime time.Time
}

// NewServer wires the project routes and reads PORT and the *_TIMEOUT_SECONDS keys from c.
func NewServer(c map[string]string, projects projectService, uploadRoot string) (Server, error) {
	if projects == nil {
		return Server{}, errors.New("project service is required")
	}

	startupTime := time.Now()
	seconds := func(key string) time.Duration {
		return time.Duration(config.GetInt(c, key, 180)) * time.Second
	}

	server := &http.Server{
		// 0.0.0.0 so the container port is reachable from outside
		Addr:         net.JoinHostPort("0.0.0.0", config.GetString(c, "PORT", "8080")),
		Handler:      newRouter(projects, withConfig(c), withStartupTime(startupTime), withUploadRoot(uploadRoot)),
		ReadTimeout:  seconds("READ_TIMEOUT_SECONDS"),
		WriteTimeout: seconds("WRITE_TIMEOUT_SECONDS"),
		IdleTimeout:  seconds("IDLE_TIMEOUT_SECONDS"),
	}

	return Server{server, startupTime}, nil
}

type routerOptions struct {
	config      map[string]string
	startupTime time.Time
	uploadRoot  string
}

type routerOption func(*routerOptions)

func withConfig(c map[string]string) routerOption {
	return func(o *routerOptions) { o.config = c }
}

func withStartupTime(startupTime time.Time) routerOption {
	return func(o *routerOptions) { o.startupTime = startupTime }
}

// withUploadRoot enables read-only serving of /uploads/* from root
func withUploadRoot(root string) routerOption {
	return func(o *routerOptions) { o.uploadRoot = root }
}

func newRouter(projects projectService, opts ...routerOption) *chi.Mux {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	acceptedOrigins := config.GetList(o.config, "ACCEPTED_ORIGINS")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RecoverAndLogFailures)
	r.Use(CORSCheckMiddleware(acceptedOrigins))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   acceptedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	setupRoutes(r,
		initializeHandlers(projects, o.startupTime),
		newAuthMiddleware(config.GetString(o.config, "BACKEND_PASSWORD", "")),
		o.uploadRoot,
	)

	return r
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

// StartupTime reports when the server was built
func (s Server) StartupTime() time.Time {
	return s.startupTime
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down the server")
		return
	}
	log.Info().Msg("HttpServer gracefully shut down")
}
