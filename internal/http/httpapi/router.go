package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"dude/internal/http/handlers"
	"dude/internal/infra/geoip"
	"dude/internal/middleware"
)

// NewRouter wires the HTTP surface: generation lifecycle plus gallery CRUD.
func NewRouter(app *handlers.App, countries geoip.CountryResolver) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.AccessLog(app.Logger, countries),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/videos", func(r chi.Router) {
		r.Route("/generations", func(r chi.Router) {
			r.Post("/", app.GenerateVideo)
			r.Get("/current", app.GenerationStatus)
			r.Post("/current/resume", app.GenerationResume)
		})
		r.Get("/", app.ListVideos)
		r.Post("/", app.SaveVideo)
		r.Get("/{id}/download", app.DownloadVideo)
		r.Delete("/{id}", app.DeleteVideo)
	})

	return r
}
