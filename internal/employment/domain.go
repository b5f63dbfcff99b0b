// Package employment manages job postings and their lifecycle.
package employment

import (
	"errors"
	"time"

	"github.com/recruitdesk/recruitdesk/internal/authz"
)

var (
	// ErrNotFound indicates that the job does not exist.
	ErrNotFound = errors.New("employment: not found")
	// ErrInvalidStatus indicates a status outside the lifecycle.
	ErrInvalidStatus = errors.New("employment: invalid status")
	// ErrRecruiterNotAssignable indicates the recruiter is unknown or outside
	// the actor's reach.
	ErrRecruiterNotAssignable = errors.New("employment: recruiter not assignable")
)

// Status is the publication state of a job. Every transition between
// states is allowed.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

// Valid reports whether s is a lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusClosed:
		return true
	}
	return false
}

// Placement describes where the work happens.
type Placement string

const (
	PlacementRemote Placement = "remote"
	PlacementOnsite Placement = "onsite"
	PlacementHybrid Placement = "hybrid"
)

// Valid reports whether p is a known placement.
func (p Placement) Valid() bool {
	switch p {
	case PlacementRemote, PlacementOnsite, PlacementHybrid:
		return true
	}
	return false
}

// Job is a posting stored in the employments table. CreatedBy is the owner
// column used for ownership checks.
type Job struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Location          string    `json:"location"`
	Skills            []string  `json:"skills"`
	Salary            float64   `json:"salary"`
	Status            Status    `json:"status"`
	Placement         Placement `json:"placement"`
	CreatedBy         int64     `json:"user_id"`
	RecruiterID       int64     `json:"recruiter_id"`
	ApplicationsCount int       `json:"applications_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Field exposes columns for in-memory query evaluation.
func (j Job) Field(column string) any {
	switch column {
	case "id":
		return j.ID
	case "title":
		return j.Title
	case "location":
		return j.Location
	case "salary":
		return j.Salary
	case "status":
		return j.Status
	case "placement":
		return j.Placement
	case authz.JobsOwnerColumn:
		return j.CreatedBy
	case authz.JobsAssigneeColumn:
		return j.RecruiterID
	case "created_at":
		return j.CreatedAt
	case "updated_at":
		return j.UpdatedAt
	default:
		return nil
	}
}

// SearchColumns are matched by the listing search box.
var SearchColumns = []string{"title", "location", "salary", "status"}

// ListRequest filters the jobs listing.
type ListRequest struct {
	Search  string
	Status  Status
	Page    int
	PerPage int
}

// CreateInput carries the fields for a new posting.
type CreateInput struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	Location    string    `json:"location" validate:"required,max=255"`
	Skills      []string  `json:"skills" validate:"required,min=1,dive,required,max=64"`
	Salary      float64   `json:"salary" validate:"required,gte=200"`
	Status      Status    `json:"status" validate:"omitempty,oneof=draft published closed"`
	Placement   Placement `json:"placement" validate:"omitempty,oneof=remote onsite hybrid"`
	RecruiterID int64     `json:"recruiter_id" validate:"required,gt=0"`
}

// UpdateInput carries optional changes to a posting.
type UpdateInput struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Description *string    `json:"description"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	Skills      *[]string  `json:"skills" validate:"omitempty,min=1,dive,required,max=64"`
	Salary      *float64   `json:"salary" validate:"omitempty,gte=200"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=draft published closed"`
	Placement   *Placement `json:"placement" validate:"omitempty,oneof=remote onsite hybrid"`
	RecruiterID *int64     `json:"recruiter_id" validate:"omitempty,gt=0"`
}

// StatusInput moves a job through its lifecycle.
type StatusInput struct {
	Status Status `json:"status" validate:"required,oneof=draft published closed"`
}
