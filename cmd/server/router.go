package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-import/internal/api"
	apiMiddleware "github.com/phrazzld/scry-import/internal/api/middleware"
	"github.com/phrazzld/scry-import/internal/app"
)

// newRouter creates the application router with all routes and middleware.
func newRouter(a *app.Application) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(a.Logger))

	queueHandler := api.NewQueueHandler(a.Service, a.Logger)
	r.Route("/api/queue", queueHandler.Routes)

	var db api.Pinger
	if a.DB != nil {
		db = a.DB
	}
	r.Method(http.MethodGet, "/health", api.NewHealthHandler(db, a.Logger))
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	return r
}
