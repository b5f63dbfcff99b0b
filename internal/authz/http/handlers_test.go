package authzhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

type stubOwners struct {
	mu     sync.Mutex
	owners map[int64]int64
	calls  int
	err    error
}

func (s *stubOwners) OwnerOf(_ context.Context, _ authz.Resource, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	owner, ok := s.owners[id]
	if !ok {
		return 0, authz.ErrResourceNotFound
	}
	return owner, nil
}

var (
	adminCaller = authz.Principal{ID: 1, Role: authz.RoleAdmin}
	hrCaller    = authz.Principal{ID: 2, Role: authz.RoleHRManager}
)

func newRouter(t *testing.T, owners *stubOwners, caller *authz.Principal) http.Handler {
	t.Helper()
	engine := authz.NewEngine(authz.MustDefaultPolicy(), authz.NewResolver(authz.StoreSet{
		authz.ResourceUsers: owners,
		authz.ResourceJobs:  owners,
	}))
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), engine)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if caller != nil {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *caller))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/authz", h.MountRoutes)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) DecisionResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp DecisionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestBlanketDecision(t *testing.T) {
	router := newRouter(t, &stubOwners{}, &adminCaller)

	resp := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"create_users"}`))
	assert.True(t, resp.Allow)
	assert.Equal(t, "allow", resp.Outcome)
	assert.Empty(t, resp.Reason)

	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":4,"role":"recruiter","permission":"view_users"}`))
	assert.False(t, resp.Allow)
	assert.Equal(t, authz.DeniedReason, resp.Reason)
}

func TestUnknownRoleAndPermissionFailClosed(t *testing.T) {
	router := newRouter(t, &stubOwners{}, &adminCaller)

	resp := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":9,"role":"superuser","permission":"view_users"}`))
	assert.False(t, resp.Allow)

	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":1,"role":"admin","permission":"launch_rockets"}`))
	assert.False(t, resp.Allow)
	assert.Equal(t, "deny", resp.Outcome)
}

func TestResourceDecision(t *testing.T) {
	owners := &stubOwners{owners: map[int64]int64{10: 2, 11: 3}}
	router := newRouter(t, owners, &adminCaller)

	resp := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"update_own_jobs","resource_type":"jobs","resource_id":10}`))
	assert.True(t, resp.Allow)

	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"update_own_jobs","resource_type":"jobs","resource_id":11}`))
	assert.False(t, resp.Allow)
	assert.False(t, resp.NotFound)

	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"update_own_jobs","resource_type":"jobs","resource_id":99}`))
	assert.False(t, resp.Allow)
	assert.True(t, resp.NotFound)
	assert.Equal(t, "not_found", resp.Outcome)

	calls := owners.calls
	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":6,"role":"applicant","permission":"delete_jobs","resource_type":"jobs","resource_id":10}`))
	assert.False(t, resp.Allow)
	assert.Equal(t, calls, owners.calls)
}

func TestResourceDecisionAnswersRequestedPermission(t *testing.T) {
	owners := &stubOwners{owners: map[int64]int64{10: 2, 11: 3}}
	router := newRouter(t, owners, &adminCaller)

	blanket := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"update_jobs"}`))
	row := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"update_jobs","resource_type":"jobs","resource_id":10}`))
	assert.False(t, blanket.Allow)
	assert.False(t, row.Allow)
	assert.Equal(t, "deny", row.Outcome)

	resp := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":1,"role":"admin","permission":"update_own_jobs","resource_type":"jobs","resource_id":11}`))
	assert.False(t, resp.Allow)

	resp = decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":1,"role":"admin","permission":"update_jobs","resource_type":"jobs","resource_id":11}`))
	assert.True(t, resp.Allow)
}

func TestDecisionValidation(t *testing.T) {
	router := newRouter(t, &stubOwners{}, &adminCaller)

	rr := postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"read_own_users","resource_type":"jobs","resource_id":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/authz/decisions", `{"principal_id":2,"permission":"read_own_users"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"read_own_users","resource_type":"users"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNonAdminMayOnlyAskAboutThemselves(t *testing.T) {
	router := newRouter(t, &stubOwners{}, &hrCaller)

	resp := decode(t, postJSON(t, router, "/authz/decisions", `{"principal_id":2,"role":"hr_manager","permission":"view_jobs"}`))
	assert.True(t, resp.Allow)

	rr := postJSON(t, router, "/authz/decisions", `{"principal_id":1,"role":"admin","permission":"view_jobs"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = postJSON(t, newRouter(t, &stubOwners{}, nil), "/authz/decisions", `{"principal_id":1,"role":"admin","permission":"view_jobs"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBatchPreservesOrder(t *testing.T) {
	owners := &stubOwners{owners: map[int64]int64{20: 2}}
	router := newRouter(t, owners, &adminCaller)

	rr := postJSON(t, router, "/authz/decisions/batch", `{"checks":[
		{"principal_id":2,"role":"hr_manager","permission":"delete_own_users","resource_type":"users","resource_id":20},
		{"principal_id":3,"role":"hr_manager","permission":"delete_own_users","resource_type":"users","resource_id":20},
		{"principal_id":4,"role":"recruiter","permission":"update_jobs_status"},
		{"principal_id":1,"role":"admin","permission":"read_users","resource_type":"users","resource_id":21}
	]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body batchResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 4)
	assert.True(t, body.Results[0].Allow)
	assert.False(t, body.Results[1].Allow)
	assert.True(t, body.Results[2].Allow)
	assert.True(t, body.Results[3].NotFound)
}

func TestBatchStorageFailure(t *testing.T) {
	owners := &stubOwners{err: errors.New("connection refused")}
	router := newRouter(t, owners, &adminCaller)

	rr := postJSON(t, router, "/authz/decisions/batch", `{"checks":[{"principal_id":2,"role":"hr_manager","permission":"read_own_users","resource_type":"users","resource_id":5}]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = postJSON(t, router, "/authz/decisions/batch", `{"checks":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRolePermissions(t *testing.T) {
	router := newRouter(t, &stubOwners{}, &hrCaller)

	req := httptest.NewRequest(http.MethodGet, "/authz/roles/applicant/permissions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var body rolePermissionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"view_jobs", "read_jobs"}, body.Permissions)

	req = httptest.NewRequest(http.MethodGet, "/authz/roles/root/permissions", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
