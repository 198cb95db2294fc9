package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
)

var (
	// errors
	ErrNotFound   = errors.New("school not found")
	ErrSlugExists = errors.New("a school with this slug already exists")
)

// School is a tenant.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewSchool struct {
	Name string `json:"name" validate:"required,max=120"`
	Slug string `json:"slug" validate:"required,min=3,max=60,slug"`
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if _, err := svc.repo.GetSchool(ctx, GetFilter{Slug: ns.Slug}); err == nil {
		return core.NewValidationError(ErrSlugExists, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	return nil
}

type ActivationRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

type GetFilter struct {
	ID   string
	Slug string
}

type (
	Repository interface {
		CreateSchool(ctx context.Context, s School) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		GetSchool(ctx context.Context, filter GetFilter) (School, error)
		UpdateSchool(ctx context.Context, s School) (School, error)
	}

	// TrialStarter opens the subscription of a newly onboarded school.
	TrialStarter interface {
		StartTrial(ctx context.Context, schoolID string) error
	}

	// UnitOfWork calls fn with a repository and a trial starter whose writes are kept
	// only if fn succeeds.
	UnitOfWork func(ctx context.Context, fn func(repo Repository, trials TrialStarter) error) error

	Service struct {
		repo   Repository
		uow    UnitOfWork
		logger core.Logger
	}
)

// NewService returns the school service. Onboarding writes go through uow.
func NewService(repo Repository, uow UnitOfWork, logger core.Logger) *Service {
	return &Service{repo: repo, uow: uow, logger: logger}
}

// Onboard creates a school and starts its trial subscription, or leaves nothing behind.
func (svc *Service) Onboard(ctx context.Context, ns NewSchool) (School, error) {
	var s School
	err := svc.uow(ctx, func(repo Repository, trials TrialStarter) error {
		now := time.Now().UTC()
		var err error
		s, err = repo.CreateSchool(ctx, School{
			Name:      ns.Name,
			Slug:      ns.Slug,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return errors.Wrap(err, "creating school")
		}
		if err = trials.StartTrial(ctx, s.ID); err != nil {
			return errors.Wrap(err, "starting trial")
		}
		return nil
	})
	if err != nil {
		svc.logger.Error("onboarding school", err, map[string]interface{}{"slug": ns.Slug})
		return School{}, err
	}
	return s, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{ID: id})
}

// Exists reports whether a school with the given id exists.
func (svc *Service) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := svc.repo.GetSchool(ctx, GetFilter{ID: id}); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *Service) SetActive(ctx context.Context, s School, active bool) (School, error) {
	s.IsActive = active
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, s)
}
