package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"consult-scribe-service/internal/app"
	"consult-scribe-service/internal/observability"
	"consult-scribe-service/internal/schema"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// handlers holds the dependencies shared by the route handlers.
type handlers struct {
	app       *app.Application
	validator *schema.Validator
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{
		app:       application,
		validator: schema.MustNew(),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(application.Metrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if err := application.Ready(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Post("/process", h.process)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/process", h.process)
		r.Post("/document", h.renderDocument)
		r.Get("/capture", h.capture)
	})

	return r
}
