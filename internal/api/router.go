package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", app.HomeHandler)
	r.Get("/ping", PingHandler)
	r.Get("/snapshots/{name}", app.SnapshotHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", app.CreateSessionHandler)
			r.Get("/", app.ListSessionsHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetSessionHandler)
				r.Patch("/", app.UpdateSessionHandler)
				r.Delete("/", app.EndSessionHandler)
				r.Post("/reset", app.ResetSessionHandler)
				r.Post("/landmarks", app.LandmarksHandler)
				r.Post("/frames", app.FrameHandler)
				r.Get("/events", app.EventsHandler)
			})
		})

		r.Get("/history", app.HistoryHandler)
		r.Get("/history/export.xlsx", app.ExportHandler)
	})

	return r
}
