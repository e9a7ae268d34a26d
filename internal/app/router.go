package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinea-his/clinea-his/internal/auth"
	"github.com/clinea-his/clinea-his/internal/authz"
	businessdayhttp "github.com/clinea-his/clinea-his/internal/businessday/http"
	"github.com/clinea-his/clinea-his/internal/gate"
	"github.com/clinea-his/clinea-his/internal/observability"
	"github.com/clinea-his/clinea-his/internal/roles"
	"github.com/clinea-his/clinea-his/internal/shared"
	"github.com/clinea-his/clinea-his/internal/users"
	"github.com/clinea-his/clinea-his/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           *gate.Middleware
	AuthHandler    *auth.Handler
	RolesHandler   *roles.Handler
	UsersHandler   *users.Handler
	AuthzHandler   *authz.Handler
	DayHandler     *businessdayhttp.Handler
	GateHandler    *gate.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	Pool           *pgxpool.Pool
}

// NewRouter constructs the chi.Router with Clinea defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything past this point requires an authenticated session.
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.RequireAuth)

		r.Route("/day", params.DayHandler.MountRoutes)
		r.Route("/gate", params.GateHandler.MountRoutes)
		r.Route("/authz", params.AuthzHandler.MountRoutes)
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
