package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/rbac"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

func newTestRouter(t *testing.T, f *fixture, as User) http.Handler {
	t.Helper()
	engine := authz.NewEngine(authz.MustDefaultPolicy(), authz.NewResolver(authz.StoreSet{authz.ResourceUsers: f.repo}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, f.service, rbac.Middleware{Engine: engine, Principals: f.service, Logger: logger})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), principal(as))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/users", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerListUsers(t *testing.T) {
	f := newFixture(t)
	rr := do(t, newTestRouter(t, f, f.hr), http.MethodGet, "/users?query=raf", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var page shared.Page[User]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, []int64{f.ownRecruiter.ID}, ids(page.Items))
	assert.Equal(t, 1, page.Pagination.Total)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestHandlerListUsersForbidden(t *testing.T) {
	f := newFixture(t)
	rr := do(t, newTestRouter(t, f, f.ownRecruiter), http.MethodGet, "/users", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, authz.DeniedReason, problem.Detail)
}

func TestHandlerCreateUser(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f, f.hr)

	rr := do(t, router, http.MethodPost, "/users", `{"name":"Nadia","email":"nadia@example.com","role":"recruiter"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "nadia@example.com", created.Email)

	rr = do(t, router, http.MethodPost, "/users", `{"name":"Adam","email":"adam@example.com","role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, router, http.MethodPost, "/users", `{"name":"Nadia","email":"nadia@example.com","role":"recruiter"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, router, http.MethodPost, "/users", `{"name":"Nadia","unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/users", `{"email":"bad","role":"recruiter"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "required", problem.Fields["Name"])
	assert.Equal(t, "email", problem.Fields["Email"])
}

func TestHandlerShowUpdateDelete(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f, f.hr)
	own := "/users/" + strconv.FormatInt(f.ownRecruiter.ID, 10)
	foreign := "/users/" + strconv.FormatInt(f.otherRecruiter.ID, 10)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, own, "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, foreign, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/users/404", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/users/abc", "").Code)

	rr := do(t, router, http.MethodPatch, own, `{"last_name":"Pratama"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Pratama", f.repo.users[f.ownRecruiter.ID].LastName)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodDelete, "/users/"+strconv.FormatInt(f.hr.ID, 10), "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodDelete, foreign, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, own, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, own, "").Code)
}

func TestHandlerRecruiters(t *testing.T) {
	f := newFixture(t)
	rr := do(t, newTestRouter(t, f, f.admin), http.MethodGet, "/users/recruiters", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Items []User `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.ElementsMatch(t, []int64{f.ownRecruiter.ID, f.otherRecruiter.ID}, ids(body.Items))
}
