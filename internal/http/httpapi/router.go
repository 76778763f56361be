package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mockupstudio/internal/http/handlers"
	"mockupstudio/internal/middleware"
)

type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	// UploadsDir is served under /uploads when the local backend is in use.
	UploadsDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger, "/api/health", "/api/ping"),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	if opts.UploadsDir != "" {
		files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadsDir)))
		r.Get("/uploads/*", files.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/ping", app.Ping)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

			r.Route("/base-products", func(r chi.Router) {
				r.Get("/", app.ListProducts)
				r.Post("/", app.CreateProduct)
				r.Get("/{id}", app.GetProduct)
				r.Put("/{id}", app.UpdateProduct)
				r.Delete("/{id}", app.DeleteProduct)
			})

			r.Route("/references", func(r chi.Router) {
				r.Get("/", app.ListReferences)
				r.Post("/", app.CreateReference)
				r.Delete("/{id}", app.DeleteReference)
			})

			r.Route("/prompts", func(r chi.Router) {
				r.Get("/", app.ListPrompts)
				r.Post("/", app.CreatePrompt)
				r.Put("/{id}", app.UpdatePrompt)
				r.Delete("/{id}", app.DeletePrompt)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", app.ListJobs)
				r.Post("/", app.CreateJob)
				r.Get("/{id}", app.GetJob)
				r.Delete("/{id}", app.DeleteJob)
				r.Post("/{id}/regenerate", app.RegenerateJob)
				r.Post("/{id}/modify", app.ModifyJob)
				r.Post("/{id}/simulate", app.SimulateJob)
				r.Get("/{id}/simulation.zip", app.SimulationZip)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"not found"}` + "\n"))
	})

	return r
}
