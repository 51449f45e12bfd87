package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mathshelp/mathshelp25/internal/activities"
	"github.com/mathshelp/mathshelp25/internal/catalog"
	"github.com/mathshelp/mathshelp25/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	UsersHandler      *users.Handler
	CatalogHandler    *catalog.Handler
	ActivitiesHandler *activities.Handler
}

// NewRouter constructs the chi.Router with MathsHelp defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.UsersHandler.MountAuthRoutes)
		r.Route("/users", params.UsersHandler.MountUserRoutes)
		r.Route("/subjects", params.CatalogHandler.MountSubjectRoutes)
		r.Route("/year-groups", params.CatalogHandler.MountYearGroupRoutes)
		r.Route("/topics", params.CatalogHandler.MountTopicRoutes)
		r.Route("/activities", params.ActivitiesHandler.MountRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"Route not found"}`))
	})

	return r
}
