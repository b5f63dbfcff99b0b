package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	users  map[int64]*User
	nextID int64

	deleted   []int64
	listErr   error
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[int64]*User), nextID: 1}
}

func (m *mockRepository) seed(name, email string, role authz.Role, createdBy int64) User {
	u := User{
		ID:        m.nextID,
		Name:      name,
		Email:     email,
		Roles:     []authz.Role{role},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if createdBy != 0 {
		cb := createdBy
		u.CreatedBy = &cb
	}
	m.users[u.ID] = &u
	m.nextID++
	return u
}

func (m *mockRepository) all() []User {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out
}

func (m *mockRepository) List(_ context.Context, q authz.Query) ([]User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	all := m.all()
	return authz.Apply(q, all), len(authz.Apply(q.Page(0, 0), all)), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}

func (m *mockRepository) FindByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *mockRepository) EmailExists(_ context.Context, email string, exceptID int64) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) RolesOf(_ context.Context, userID int64) ([]authz.Role, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return u.Roles, nil
}

func (m *mockRepository) Create(_ context.Context, u User, role authz.Role) (User, error) {
	u.ID = m.nextID
	u.Roles = []authz.Role{role}
	u.CreatedAt = time.Now()
	m.users[u.ID] = &u
	m.nextID++
	return u, nil
}

func (m *mockRepository) Update(_ context.Context, u User) (User, error) {
	if _, ok := m.users[u.ID]; !ok {
		return User{}, ErrNotFound
	}
	m.users[u.ID] = &u
	return u, nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepository) Recruiters(_ context.Context, q authz.Query) ([]User, error) {
	out := []User{}
	for _, u := range authz.Apply(q, m.all()) {
		if u.HasRole(authz.RoleRecruiter) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockRepository) OwnerOf(_ context.Context, _ authz.Resource, id int64) (int64, error) {
	u, ok := m.users[id]
	if !ok {
		return 0, authz.ErrResourceNotFound
	}
	if u.CreatedBy == nil {
		return 0, nil
	}
	return *u.CreatedBy, nil
}

type recordingVerifier struct {
	sent []string
}

func (v *recordingVerifier) EnqueueVerification(_ context.Context, _ int64, email, _ string) error {
	v.sent = append(v.sent, email)
	return nil
}

type recordingRevoker struct {
	revoked []int64
}

func (r *recordingRevoker) RevokeUser(_ context.Context, userID int64) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	repo     *mockRepository
	verifier *recordingVerifier
	revoker  *recordingRevoker
	audit    *recordingAuditor
	service  *Service

	admin, hr, ownRecruiter, otherRecruiter User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepository()
	f := &fixture{
		repo:     repo,
		verifier: &recordingVerifier{},
		revoker:  &recordingRevoker{},
		audit:    &recordingAuditor{},
	}
	f.admin = repo.seed("Ada", "ada@example.com", authz.RoleAdmin, 0)
	f.hr = repo.seed("Hana", "hana@example.com", authz.RoleHRManager, f.admin.ID)
	f.ownRecruiter = repo.seed("Rafi", "rafi@example.com", authz.RoleRecruiter, f.hr.ID)
	f.otherRecruiter = repo.seed("Rina", "rina@example.com", authz.RoleRecruiter, f.admin.ID)

	engine := authz.NewEngine(authz.MustDefaultPolicy(), authz.NewResolver(authz.StoreSet{authz.ResourceUsers: repo}))
	f.service = NewService(repo, engine, f.verifier, f.revoker, f.audit, nil)
	return f
}

func principal(u User) authz.Principal {
	return authz.Principal{ID: u.ID, Role: u.Roles[0]}
}

func ids(users []User) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

// ============================================================================
// LIST
// ============================================================================

func TestListAdminSeesEveryUserNewestFirst(t *testing.T) {
	f := newFixture(t)

	page, err := f.service.List(context.Background(), principal(f.admin), ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 2, 1}, ids(page.Items))
	assert.Equal(t, 4, page.Pagination.Total)
	assert.Equal(t, shared.DefaultPerPage, page.Pagination.PerPage)
}

func TestListHRManagerSeesOnlyCreatedUsers(t *testing.T) {
	f := newFixture(t)

	page, err := f.service.List(context.Background(), principal(f.hr), ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.ownRecruiter.ID}, ids(page.Items))
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestListSearchNarrowsWithinScope(t *testing.T) {
	f := newFixture(t)

	page, err := f.service.List(context.Background(), principal(f.admin), ListRequest{Search: "RIN"})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.otherRecruiter.ID}, ids(page.Items))

	page, err = f.service.List(context.Background(), principal(f.hr), ListRequest{Search: "rina"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)

	page, err := f.service.List(context.Background(), principal(f.admin), ListRequest{Page: 2, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Items))
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestListDeniesRolesWithoutViewPermission(t *testing.T) {
	f := newFixture(t)

	for _, u := range []User{f.ownRecruiter, {ID: 99, Roles: []authz.Role{authz.RoleApplicant}}} {
		_, err := f.service.List(context.Background(), principal(u), ListRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, httpx.ErrForbidden))
		var denied *httpx.DeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, authz.DeniedReason, denied.Reason)
	}
}

func TestListWrapsRepositoryErrors(t *testing.T) {
	f := newFixture(t)
	f.repo.listErr = errors.New("connection reset")

	_, err := f.service.List(context.Background(), principal(f.admin), ListRequest{})
	require.Error(t, err)
	assert.False(t, httpx.IsClientError(err))
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateAssignsCreatorAndSendsVerification(t *testing.T) {
	f := newFixture(t)

	created, err := f.service.Create(context.Background(), principal(f.hr), CreateInput{
		Name:  " Nadia ",
		Email: "nadia@example.com",
		Role:  authz.RoleRecruiter,
	})
	require.NoError(t, err)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, f.hr.ID, *created.CreatedBy)
	assert.Equal(t, "Nadia", created.Name)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, uuid.Nil, created.UUID)
	assert.Equal(t, []string{"nadia@example.com"}, f.verifier.sent)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "users.create", f.audit.logs[0].Action)

	page, err := f.service.List(context.Background(), principal(f.hr), ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID, f.ownRecruiter.ID}, ids(page.Items))
}

func TestCreateHRManagerMayOnlyCreateRecruiters(t *testing.T) {
	f := newFixture(t)

	for _, role := range []authz.Role{authz.RoleAdmin, authz.RoleHRManager, authz.RoleApplicant} {
		_, err := f.service.Create(context.Background(), principal(f.hr), CreateInput{
			Name:  "Someone",
			Email: "someone@example.com",
			Role:  role,
		})
		require.ErrorIs(t, err, ErrRoleNotAssignable, role)
		assert.ErrorIs(t, err, httpx.ErrForbidden)
	}
	assert.Empty(t, f.verifier.sent)
}

func TestCreateAdminMayCreateAnyRole(t *testing.T) {
	f := newFixture(t)

	created, err := f.service.Create(context.Background(), principal(f.admin), CreateInput{
		Name:  "Hugo",
		Email: "hugo@example.com",
		Role:  authz.RoleHRManager,
	})
	require.NoError(t, err)
	assert.Equal(t, []authz.Role{authz.RoleHRManager}, created.Roles)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, principal(f.ownRecruiter), CreateInput{Name: "X", Email: "x@example.com", Role: authz.RoleRecruiter})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.service.Create(ctx, principal(f.admin), CreateInput{Name: "X", Email: "rafi@example.com", Role: authz.RoleRecruiter})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = f.service.Create(ctx, principal(f.admin), CreateInput{Name: "X", Email: "x@example.com", Role: "superuser"})
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.service.Create(ctx, principal(f.admin), CreateInput{Name: "", Email: "not-an-email", Role: authz.RoleRecruiter})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "Name")
	assert.Contains(t, fields, "Email")
}

// ============================================================================
// GET / UPDATE / DELETE
// ============================================================================

func TestGetDistinguishesMissingFromForeign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.service.Get(ctx, principal(f.hr), f.ownRecruiter.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ownRecruiter.Email, u.Email)

	_, err = f.service.Get(ctx, principal(f.hr), f.otherRecruiter.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.service.Get(ctx, principal(f.hr), 404)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateOwnUser(t *testing.T) {
	f := newFixture(t)
	name := "Rafael"

	updated, err := f.service.Update(context.Background(), principal(f.hr), f.ownRecruiter.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Rafael", updated.Name)
	assert.Empty(t, f.revoker.revoked)
	assert.Empty(t, f.verifier.sent)
}

func TestUpdateForeignUserDenied(t *testing.T) {
	f := newFixture(t)
	name := "Nope"

	_, err := f.service.Update(context.Background(), principal(f.hr), f.otherRecruiter.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
	assert.Equal(t, "Rina", f.repo.users[f.otherRecruiter.ID].Name)
}

func TestUpdateEmailResetsVerification(t *testing.T) {
	f := newFixture(t)
	verified := time.Now()
	f.repo.users[f.ownRecruiter.ID].EmailVerifiedAt = &verified
	email := "rafi.new@example.com"

	updated, err := f.service.Update(context.Background(), principal(f.admin), f.ownRecruiter.ID, UpdateInput{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.Nil(t, updated.EmailVerifiedAt)
	assert.Equal(t, []int64{f.ownRecruiter.ID}, f.revoker.revoked)
	assert.Equal(t, []string{email}, f.verifier.sent)
}

func TestUpdateEmailTaken(t *testing.T) {
	f := newFixture(t)
	email := f.otherRecruiter.Email

	_, err := f.service.Update(context.Background(), principal(f.admin), f.ownRecruiter.ID, UpdateInput{Email: &email})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteOwnUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.Delete(context.Background(), principal(f.hr), f.ownRecruiter.ID))
	assert.Equal(t, []int64{f.ownRecruiter.ID}, f.repo.deleted)
	assert.Equal(t, []int64{f.ownRecruiter.ID}, f.revoker.revoked)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "users.delete", f.audit.logs[0].Action)
}

func TestDeleteSelfRejectedBeforeLookup(t *testing.T) {
	f := newFixture(t)

	err := f.service.Delete(context.Background(), principal(f.admin), f.admin.ID)
	assert.ErrorIs(t, err, ErrSelfDelete)
	assert.Empty(t, f.repo.deleted)
}

func TestDeleteDeniedAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.service.Delete(ctx, principal(f.hr), f.otherRecruiter.ID), httpx.ErrForbidden)
	assert.ErrorIs(t, f.service.Delete(ctx, principal(f.ownRecruiter), f.hr.ID), httpx.ErrForbidden)
	assert.ErrorIs(t, f.service.Delete(ctx, principal(f.admin), 404), httpx.ErrNotFound)
	assert.Empty(t, f.repo.deleted)
}

func TestDeleteReferencedUserConflicts(t *testing.T) {
	f := newFixture(t)
	f.repo.deleteErr = ErrInUse

	err := f.service.Delete(context.Background(), principal(f.admin), f.otherRecruiter.ID)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
	assert.ErrorIs(t, err, ErrInUse)
	assert.Empty(t, f.revoker.revoked)
	assert.Empty(t, f.audit.logs)
}

// ============================================================================
// RECRUITERS / PRINCIPAL
// ============================================================================

func TestRecruitersFollowUserScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.service.Recruiters(ctx, principal(f.admin))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.ownRecruiter.ID, f.otherRecruiter.ID}, ids(all))

	own, err := f.service.Recruiters(ctx, principal(f.hr))
	require.NoError(t, err)
	assert.Equal(t, []int64{f.ownRecruiter.ID}, ids(own))

	_, err = f.service.Recruiters(ctx, principal(f.ownRecruiter))
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestAssignableRecruiter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.service.AssignableRecruiter(ctx, principal(f.hr), f.ownRecruiter.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.service.AssignableRecruiter(ctx, principal(f.hr), f.otherRecruiter.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.service.AssignableRecruiter(ctx, principal(f.admin), f.hr.ID)
	require.NoError(t, err)
	assert.False(t, ok, "hr managers are not recruiters")
}

func TestPrincipalForRequiresSingleRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.service.PrincipalFor(ctx, f.hr.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.Principal{ID: f.hr.ID, Role: authz.RoleHRManager}, p)

	f.repo.users[f.hr.ID].Roles = []authz.Role{authz.RoleHRManager, authz.RoleAdmin}
	_, err = f.service.PrincipalFor(ctx, f.hr.ID)
	assert.ErrorIs(t, err, authz.ErrInvariantViolation)

	_, err = f.service.PrincipalFor(ctx, 404)
	assert.ErrorIs(t, err, authz.ErrInvariantViolation)
}
