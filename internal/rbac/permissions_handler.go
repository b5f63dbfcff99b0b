package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// PermissionsHandler exposes the permissions of the current principal so
// clients can render menus and buttons.
type PermissionsHandler struct {
	logger *slog.Logger
	engine *authz.Engine
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, engine *authz.Engine) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, engine: engine}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	UserID      int64                   `json:"user_id"`
	Role        authz.Role              `json:"role"`
	Permissions []string                `json:"permissions"`
	Hidden      map[authz.Resource]bool `json:"hidden"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms := h.engine.PermissionsFor(p.Role)
	names := make([]string, len(perms))
	for i, perm := range perms {
		names[i] = perm.Name()
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		UserID:      p.ID,
		Role:        p.Role,
		Permissions: names,
		Hidden: map[authz.Resource]bool{
			authz.ResourceUsers: authz.ModuleHidden(p, authz.ResourceUsers),
			authz.ResourceJobs:  authz.ModuleHidden(p, authz.ResourceJobs),
		},
	})
}
