package workbench

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures routes for the workbench feature.
func SetupRoutes(router chi.Router, deps Deps) error {
	handlers := NewHandlers(deps)

	router.Get("/", handlers.HomePage)
	router.Get("/updates", handlers.Updates)

	router.Route("/api", func(r chi.Router) {
		r.Post("/database", handlers.SetDatabase)
		r.Post("/database/close", handlers.CloseDatabase)
		r.Post("/editor/event", handlers.EditorEvent)
		r.Post("/examples/select", handlers.SelectExample)
		r.Post("/history/{id}/load", handlers.LoadHistory)
		r.Get("/schema", handlers.Schema)
	})

	return nil
}
