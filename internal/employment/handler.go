package employment

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/rbac"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// Handler manages job endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers job routes. Callers mount it behind
// rbac.Middleware.Identify.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(authz.ViewJobs)).Get("/", h.listJobs)
	r.With(h.rbac.RequireAny(authz.CreateJobs)).Post("/", h.createJob)
	r.Get("/{id}", h.showJob)
	r.Patch("/{id}", h.updateJob)
	r.Put("/{id}/status", h.updateStatus)
	r.Delete("/{id}", h.deleteJob)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	result, err := h.service.List(r.Context(), p, ListRequest{
		Search:  q.Get("query"),
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.fail(w, "list jobs failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Create(r.Context(), p, in)
	if err != nil {
		h.fail(w, "create job failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, job)
}

func (h *Handler) showJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	job, err := h.service.Get(r.Context(), p, id)
	if err != nil {
		h.fail(w, "show job failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.Update(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, "update job failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	var in StatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service.UpdateStatus(r.Context(), p, id, in.Status)
	if err != nil {
		h.fail(w, "update job status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), p, id); err != nil {
		h.fail(w, "delete job failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return 0, false
	}
	return id, true
}
