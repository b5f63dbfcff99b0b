package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/recruitdesk/recruitdesk/internal/auth"
	authzhttp "github.com/recruitdesk/recruitdesk/internal/authz/http"
	"github.com/recruitdesk/recruitdesk/internal/employment"
	"github.com/recruitdesk/recruitdesk/internal/observability"
	"github.com/recruitdesk/recruitdesk/internal/rbac"
	"github.com/recruitdesk/recruitdesk/internal/shared"
	"github.com/recruitdesk/recruitdesk/internal/users"
	"github.com/recruitdesk/recruitdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	JobsHandler        *employment.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuthzHandler       *authzhttp.Handler
	QueueHandler       *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with recruitdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Identify)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.AuthzHandler != nil {
			r.Route("/authz", params.AuthzHandler.MountRoutes)
		}
		if params.QueueHandler != nil {
			r.Route("/queue", params.QueueHandler.MountRoutes)
		}
	})

	return r
}
