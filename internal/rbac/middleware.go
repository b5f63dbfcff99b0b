package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// PrincipalSource resolves the acting identity of an authenticated account.
type PrincipalSource interface {
	PrincipalFor(ctx context.Context, userID int64) (authz.Principal, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Engine     *authz.Engine
	Principals PrincipalSource
	Logger     *slog.Logger
}

// Identify resolves the session user into a Principal stored on the request
// context. Anonymous requests are rejected with 401.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := shared.SessionFromContext(r.Context()).UserID()
		if userID == 0 {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		p, err := m.Principals.PrincipalFor(r.Context(), userID)
		if err != nil {
			m.logError("rbac identify", err, slog.Int64("user_id", userID))
			if errors.Is(err, authz.ErrInvariantViolation) {
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "account role assignment is invalid")
				return
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// RequireAny ensures the current principal holds at least one of perms.
func (m Middleware) RequireAny(perms ...authz.Permission) func(http.Handler) http.Handler {
	return m.require(func(p authz.Principal) bool {
		return len(perms) == 0 || m.Engine.CanAny(p, perms...)
	})
}

// RequireAll ensures the current principal holds every one of perms.
func (m Middleware) RequireAll(perms ...authz.Permission) func(http.Handler) http.Handler {
	return m.require(func(p authz.Principal) bool {
		for _, perm := range perms {
			if !m.Engine.Can(p, perm) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(allowed func(authz.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !allowed(p) {
				httpx.RespondError(w, httpx.DecisionError(authz.Deny(authz.DeniedReason)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logError(msg string, err error, attrs ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.Error(msg, append(attrs, slog.Any("error", err))...)
}
