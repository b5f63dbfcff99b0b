package authzhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// MountRoutes registers policy endpoints onto the router. Callers mount it
// behind rbac.Middleware.Identify.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(120, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/roles/{role}/permissions", h.handleRolePermissions)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/decisions", h.handleDecision)
		gr.Post("/decisions/batch", h.handleBatch)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := shared.PrincipalFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(p.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
