package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// setupRoutes sets up all routes; writes go through the backend password check
func setupRoutes(r chi.Router, handlers *routeHandlers, authMiddleware authMiddleware, uploadRoot string) {
	r.Get("/health", handlers.healthHandler.health())

	r.Group(func(r chi.Router) {
		r.Use(AccessLog())

		// Project Handler endpoints
		r.Get("/projects", handlers.projectHandler.getAllProjects())
		r.Get("/projects/{projectID}", handlers.projectHandler.getProject())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.authenticate)

			r.Post("/projects", handlers.projectHandler.createProject())
			r.Put("/projects/{projectID}", handlers.projectHandler.updateProject())
			r.Delete("/projects/{projectID}", handlers.projectHandler.deleteProject())
		})

		if uploadRoot != "" {
			r.Handle("/uploads/*", uploadsHandler(uploadRoot))
		}
	})
}

// uploadsHandler serves stored media read-only, without directory listings
func uploadsHandler(root string) http.Handler {
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
