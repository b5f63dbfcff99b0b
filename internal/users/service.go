package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, q authz.Query) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	EmailExists(ctx context.Context, email string, exceptID int64) (bool, error)
	RolesOf(ctx context.Context, userID int64) ([]authz.Role, error)
	Create(ctx context.Context, u User, role authz.Role) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id int64) error
	Recruiters(ctx context.Context, q authz.Query) ([]User, error)
}

// VerificationSender dispatches the email verification message.
type VerificationSender interface {
	EnqueueVerification(ctx context.Context, userID int64, email, name string) error
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	verifier VerificationSender
	sessions SessionRevoker
	audit    shared.Auditor
	logger   *slog.Logger
}

// NewService builds Service instance. verifier and sessions may be nil.
func NewService(repo RepositoryPort, engine *authz.Engine, verifier VerificationSender, sessions SessionRevoker, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, verifier: verifier, sessions: sessions, audit: audit, logger: logger}
}

// List returns the page of users visible to p.
func (s *Service) List(ctx context.Context, p authz.Principal, req ListRequest) (shared.Page[User], error) {
	if err := httpx.DecisionError(s.engine.CanOrFail(p, authz.ViewUsers)); err != nil {
		return shared.Page[User]{}, err
	}
	if !s.engine.CanAny(p, authz.ReadUsers, authz.ReadOwnUsers) {
		return shared.Page[User]{}, httpx.DecisionError(authz.Deny(authz.DeniedReason))
	}
	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	q := s.engine.Scope(p, authz.NewQuery(authz.ResourceUsers)).
		Where(authz.Search(req.Search, SearchColumns...)).
		Page(page, perPage)

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[User]{}, fmt.Errorf("list users: %w", err)
	}
	return shared.Page[User]{Items: items, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

// Get returns a single user p may read.
func (s *Service) Get(ctx context.Context, p authz.Principal, id int64) (User, error) {
	if err := s.authorize(ctx, p, authz.ActionRead, id); err != nil {
		return User{}, err
	}
	return s.load(ctx, id)
}

// Create registers a new account on behalf of p. The account receives a
// random password and a verification email.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (User, error) {
	if err := httpx.DecisionError(s.engine.CanOrFail(p, authz.CreateUsers)); err != nil {
		return User{}, err
	}
	if err := httpx.Validate(in); err != nil {
		return User{}, err
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: %w: %q", httpx.ErrValidation, ErrInvalidRole, in.Role)
	}
	if p.Role == authz.RoleHRManager && in.Role != authz.RoleRecruiter {
		return User{}, fmt.Errorf("%w: %w: only %s accounts may be created", httpx.ErrForbidden, ErrRoleNotAssignable, authz.RoleRecruiter)
	}

	email := strings.TrimSpace(in.Email)
	taken, err := s.repo.EmailExists(ctx, email, 0)
	if err != nil {
		return User{}, err
	}
	if taken {
		return User{}, fmt.Errorf("%w: %w", httpx.ErrDuplicate, ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	creator := p.ID
	created, err := s.repo.Create(ctx, User{
		UUID:         uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Avatar:       in.Avatar,
		CreatedBy:    &creator,
	}, in.Role)
	if err != nil {
		return User{}, mapRepoError(err)
	}

	s.sendVerification(ctx, created)
	s.record(ctx, p, "users.create", created.ID, map[string]any{"role": in.Role, "email": created.Email})
	return created, nil
}

// Update applies in to the user identified by id. Changing the address
// clears verification and ends the user's sessions.
func (s *Service) Update(ctx context.Context, p authz.Principal, id int64, in UpdateInput) (User, error) {
	if err := s.authorize(ctx, p, authz.ActionUpdate, id); err != nil {
		return User{}, err
	}
	if err := httpx.Validate(in); err != nil {
		return User{}, err
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return User{}, err
	}

	changed := make([]string, 0, 4)
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
		changed = append(changed, "name")
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
		changed = append(changed, "last_name")
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
		changed = append(changed, "password")
	}
	emailChanged := false
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if !strings.EqualFold(email, u.Email) {
			taken, err := s.repo.EmailExists(ctx, email, u.ID)
			if err != nil {
				return User{}, err
			}
			if taken {
				return User{}, fmt.Errorf("%w: %w", httpx.ErrDuplicate, ErrEmailTaken)
			}
			u.Email = email
			u.EmailVerifiedAt = nil
			emailChanged = true
			changed = append(changed, "email")
		}
	}

	updated, err := s.repo.Update(ctx, u)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	if emailChanged {
		s.revokeSessions(ctx, updated.ID)
		s.sendVerification(ctx, updated)
	}
	s.record(ctx, p, "users.update", updated.ID, map[string]any{"fields": changed})
	return updated, nil
}

// Delete removes the user identified by id and ends its sessions. Accounts
// cannot delete themselves.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id int64) error {
	if p.ID == id {
		return fmt.Errorf("%w: %w", httpx.ErrForbidden, ErrSelfDelete)
	}
	if err := s.authorize(ctx, p, authz.ActionDelete, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.revokeSessions(ctx, id)
	s.record(ctx, p, "users.delete", id, nil)
	return nil
}

// Recruiters lists the recruiter accounts p may assign to jobs.
func (s *Service) Recruiters(ctx context.Context, p authz.Principal) ([]User, error) {
	if !s.engine.CanAny(p, authz.CreateJobs, authz.UpdateJobs, authz.UpdateOwnJobs) {
		return nil, httpx.DecisionError(authz.Deny(authz.DeniedReason))
	}
	return s.repo.Recruiters(ctx, s.engine.Scope(p, authz.NewQuery(authz.ResourceUsers)))
}

// AssignableRecruiter reports whether recruiterID is a recruiter p may
// assign to a job.
func (s *Service) AssignableRecruiter(ctx context.Context, p authz.Principal, recruiterID int64) (bool, error) {
	q := s.engine.Scope(p, authz.NewQuery(authz.ResourceUsers)).Where(authz.Eq("id", recruiterID))
	found, err := s.repo.Recruiters(ctx, q)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// PrincipalFor resolves the acting identity of a stored account.
func (s *Service) PrincipalFor(ctx context.Context, userID int64) (authz.Principal, error) {
	roles, err := s.repo.RolesOf(ctx, userID)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("load roles: %w", err)
	}
	return authz.NewPrincipal(userID, roles)
}

func (s *Service) authorize(ctx context.Context, p authz.Principal, action authz.Action, id int64) error {
	d, err := s.engine.Authorize(ctx, p, authz.ResourceUsers, action, id)
	if err != nil {
		return fmt.Errorf("authorize users.%s: %w", action, err)
	}
	return httpx.DecisionError(d)
}

func (s *Service) load(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return u, nil
}

func (s *Service) revokeSessions(ctx context.Context, userID int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		s.logger.Warn("revoke sessions failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) sendVerification(ctx context.Context, u User) {
	if s.verifier == nil {
		return
	}
	if err := s.verifier.EnqueueVerification(ctx, u.ID, u.Email, u.Name); err != nil {
		s.logger.Error("enqueue verification email", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, p authz.Principal, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   string(authz.ResourceUsers),
		EntityID: shared.EntityID(id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrInUse):
		return fmt.Errorf("%w: %w", httpx.ErrDuplicate, err)
	case errors.Is(err, ErrInvalidRole):
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	default:
		return err
	}
}
