package authzhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

const batchWorkers = 8

var errMismatchedResource = errors.New("authzhttp: resource_type does not match permission")

// Handler answers policy questions over HTTP.
type Handler struct {
	logger *slog.Logger
	engine *authz.Engine
}

// NewHandler constructs the policy HTTP handler.
func NewHandler(logger *slog.Logger, engine *authz.Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine}
}

// DecisionRequest asks whether a principal holds a permission, optionally
// against one row.
type DecisionRequest struct {
	PrincipalID  int64          `json:"principal_id" validate:"gte=0"`
	Role         authz.Role     `json:"role" validate:"required"`
	Permission   string         `json:"permission" validate:"required"`
	ResourceType authz.Resource `json:"resource_type" validate:"omitempty,oneof=users jobs"`
	ResourceID   int64          `json:"resource_id" validate:"required_with=ResourceType,omitempty,gt=0"`
}

// DecisionResponse reports the outcome of a DecisionRequest.
type DecisionResponse struct {
	Allow    bool   `json:"allow"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
}

type batchRequest struct {
	Checks []DecisionRequest `json:"checks" validate:"required,min=1,max=50,dive"`
}

type batchResponse struct {
	Results []DecisionResponse `json:"results"`
}

type rolePermissionsResponse struct {
	Role        authz.Role `json:"role"`
	Permissions []string   `json:"permissions"`
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.checkCaller(r.Context(), req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.decide(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	for _, check := range req.Checks {
		if err := h.checkCaller(r.Context(), check); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	results := make([]DecisionResponse, len(req.Checks))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchWorkers)
	for i, check := range req.Checks {
		i, check := i, check
		g.Go(func() error {
			resp, err := h.decide(ctx, check)
			if err != nil {
				return fmt.Errorf("check %d: %w", i, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batchResponse{Results: results})
}

func (h *Handler) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	role, ok := authz.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown role")
		return
	}
	perms := h.engine.PermissionsFor(role)
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name()
	}
	httpx.JSON(w, http.StatusOK, rolePermissionsResponse{Role: role, Permissions: names})
}

// checkCaller lets administrators evaluate any principal and everyone else
// only themselves.
func (h *Handler) checkCaller(ctx context.Context, req DecisionRequest) error {
	caller, ok := shared.PrincipalFromContext(ctx)
	if !ok {
		return httpx.ErrUnauthorized
	}
	if caller.Role == authz.RoleAdmin {
		return nil
	}
	if req.PrincipalID != caller.ID || req.Role != caller.Role {
		return httpx.DecisionError(authz.Deny(authz.DeniedReason))
	}
	return nil
}

// decide evaluates req. Unknown roles and permissions are denied, never
// rejected.
func (h *Handler) decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	p := authz.Principal{ID: req.PrincipalID, Role: req.Role}
	perm, known := authz.LookupPermission(req.Permission)
	if !known {
		return toResponse(authz.Deny(authz.DeniedReason)), nil
	}
	if req.ResourceType == "" {
		return toResponse(h.engine.CanOrFail(p, perm)), nil
	}
	if req.ResourceType != perm.Resource {
		return DecisionResponse{}, fmt.Errorf("%w: %w", httpx.ErrValidation, errMismatchedResource)
	}
	d, err := h.engine.Check(ctx, p, perm, req.ResourceID)
	if err != nil {
		return DecisionResponse{}, err
	}
	return toResponse(d), nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("authz decision failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func toResponse(d authz.Decision) DecisionResponse {
	resp := DecisionResponse{Allow: d.Allowed(), Outcome: d.Outcome.String(), NotFound: d.Missing()}
	if d.Denied() {
		resp.Reason = d.Reason
	}
	return resp
}
