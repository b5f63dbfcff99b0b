package employment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recruitdesk/recruitdesk/internal/authz"
	"github.com/recruitdesk/recruitdesk/internal/platform/httpx"
	"github.com/recruitdesk/recruitdesk/internal/shared"
)

// RepositoryPort defines data access methods for jobs.
type RepositoryPort interface {
	List(ctx context.Context, q authz.Query) ([]Job, int, error)
	Get(ctx context.Context, id int64) (Job, error)
	Create(ctx context.Context, j Job) (Job, error)
	Update(ctx context.Context, j Job) (Job, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (Job, error)
	Delete(ctx context.Context, id int64) error
}

// RecruiterDirectory answers whether a recruiter may be assigned by p.
type RecruiterDirectory interface {
	AssignableRecruiter(ctx context.Context, p authz.Principal, recruiterID int64) (bool, error)
}

// Service handles job business logic.
type Service struct {
	repo       RepositoryPort
	engine     *authz.Engine
	recruiters RecruiterDirectory
	audit      shared.Auditor
	logger     *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, recruiters RecruiterDirectory, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, recruiters: recruiters, audit: audit, logger: logger}
}

// List returns the page of jobs visible to p.
func (s *Service) List(ctx context.Context, p authz.Principal, req ListRequest) (shared.Page[Job], error) {
	if err := httpx.DecisionError(s.engine.CanOrFail(p, authz.ViewJobs)); err != nil {
		return shared.Page[Job]{}, err
	}
	if !s.engine.CanAny(p, authz.ReadJobs, authz.ReadOwnJobs) {
		return shared.Page[Job]{}, httpx.DecisionError(authz.Deny(authz.DeniedReason))
	}
	if req.Status != "" && !req.Status.Valid() {
		return shared.Page[Job]{}, fmt.Errorf("%w: %w: %q", httpx.ErrValidation, ErrInvalidStatus, req.Status)
	}

	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	q := s.engine.Scope(p, authz.NewQuery(authz.ResourceJobs)).
		Where(authz.Search(req.Search, SearchColumns...))
	if req.Status != "" {
		q = q.Where(authz.Eq("status", req.Status))
	}
	q = q.Page(page, perPage)

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return shared.Page[Job]{}, fmt.Errorf("list jobs: %w", err)
	}
	return shared.Page[Job]{Items: items, Pagination: shared.NewPagination(page, perPage, total)}, nil
}

// Get returns a single job p may read.
func (s *Service) Get(ctx context.Context, p authz.Principal, id int64) (Job, error) {
	if err := s.authorize(ctx, p, authz.ActionRead, id); err != nil {
		return Job{}, err
	}
	return s.load(ctx, id)
}

// Create publishes a new posting owned by p. Status defaults to draft and
// placement to remote.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (Job, error) {
	if err := httpx.DecisionError(s.engine.CanOrFail(p, authz.CreateJobs)); err != nil {
		return Job{}, err
	}
	if err := httpx.Validate(in); err != nil {
		return Job{}, err
	}
	if err := s.checkRecruiter(ctx, p, in.RecruiterID); err != nil {
		return Job{}, err
	}

	job := Job{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Skills:      in.Skills,
		Salary:      in.Salary,
		Status:      in.Status,
		Placement:   in.Placement,
		CreatedBy:   p.ID,
		RecruiterID: in.RecruiterID,
	}
	if job.Status == "" {
		job.Status = StatusDraft
	}
	if job.Placement == "" {
		job.Placement = PlacementRemote
	}

	created, err := s.repo.Create(ctx, job)
	if err != nil {
		return Job{}, err
	}
	s.record(ctx, p, "jobs.create", created.ID, map[string]any{"status": created.Status, "recruiter_id": created.RecruiterID})
	return created, nil
}

// Update applies in to the job identified by id.
func (s *Service) Update(ctx context.Context, p authz.Principal, id int64, in UpdateInput) (Job, error) {
	if err := s.authorize(ctx, p, authz.ActionUpdate, id); err != nil {
		return Job{}, err
	}
	if err := httpx.Validate(in); err != nil {
		return Job{}, err
	}
	job, err := s.load(ctx, id)
	if err != nil {
		return Job{}, err
	}

	if in.Title != nil {
		job.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		job.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		job.Location = strings.TrimSpace(*in.Location)
	}
	if in.Skills != nil {
		job.Skills = *in.Skills
	}
	if in.Salary != nil {
		job.Salary = *in.Salary
	}
	if in.Status != nil {
		job.Status = *in.Status
	}
	if in.Placement != nil {
		job.Placement = *in.Placement
	}
	if in.RecruiterID != nil && *in.RecruiterID != job.RecruiterID {
		if err := s.checkRecruiter(ctx, p, *in.RecruiterID); err != nil {
			return Job{}, err
		}
		job.RecruiterID = *in.RecruiterID
	}

	updated, err := s.repo.Update(ctx, job)
	if err != nil {
		return Job{}, mapRepoError(err)
	}
	s.record(ctx, p, "jobs.update", updated.ID, nil)
	return updated, nil
}

// UpdateStatus moves the job to status. Holders of update_jobs_status may
// change any job; otherwise the general update rights for the job apply.
func (s *Service) UpdateStatus(ctx context.Context, p authz.Principal, id int64, status Status) (Job, error) {
	if !status.Valid() {
		return Job{}, fmt.Errorf("%w: %w: %q", httpx.ErrValidation, ErrInvalidStatus, status)
	}

	if !s.engine.Can(p, authz.UpdateJobsStatus) {
		if err := s.authorize(ctx, p, authz.ActionUpdate, id); err != nil {
			return Job{}, err
		}
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return Job{}, err
	}

	if current.Status == status {
		return current, nil
	}
	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return Job{}, mapRepoError(err)
	}
	s.record(ctx, p, "jobs.status", id, map[string]any{"from": current.Status, "to": status})
	return updated, nil
}

// Delete removes the job identified by id.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id int64) error {
	if err := s.authorize(ctx, p, authz.ActionDelete, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}
	s.record(ctx, p, "jobs.delete", id, nil)
	return nil
}

func (s *Service) checkRecruiter(ctx context.Context, p authz.Principal, recruiterID int64) error {
	if s.recruiters == nil {
		return nil
	}
	ok, err := s.recruiters.AssignableRecruiter(ctx, p, recruiterID)
	if err != nil {
		return fmt.Errorf("check recruiter: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, ErrRecruiterNotAssignable)
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, p authz.Principal, action authz.Action, id int64) error {
	d, err := s.engine.Authorize(ctx, p, authz.ResourceJobs, action, id)
	if err != nil {
		return fmt.Errorf("authorize jobs.%s: %w", action, err)
	}
	return httpx.DecisionError(d)
}

func (s *Service) load(ctx context.Context, id int64) (Job, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return Job{}, mapRepoError(err)
	}
	return j, nil
}

func (s *Service) record(ctx context.Context, p authz.Principal, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.ID,
		Action:   action,
		Entity:   string(authz.ResourceJobs),
		EntityID: shared.EntityID(id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func mapRepoError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	}
	return err
}
