package plan

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
)

var (
	// errors
	ErrNotFound     = errors.New("plan not found")
	ErrNameExists   = errors.New("a plan with this name already exists")
	ErrPlanInactive = errors.New("plan is not active")
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, p Plan) (Plan, error)
		// QueryPlans returns plans ordered by price; inactive plans are skipped unless all is true.
		QueryPlans(ctx context.Context, all bool) ([]Plan, error)
		GetPlan(ctx context.Context, filter GetFilter) (Plan, error)
		UpdatePlan(ctx context.Context, p Plan) (Plan, error)
	}

	// Cache keeps plan catalog rows for a bounded time.
	Cache interface {
		Get(ctx context.Context, id string) (Plan, bool)
		Set(ctx context.Context, p Plan)
		Invalidate(ctx context.Context, id string)
	}

	Service struct {
		repo   Repository
		cache  Cache
		logger core.Logger
	}
)

// NewService returns the plan catalog service. cache may be nil.
func NewService(repo Repository, cache Cache, logger core.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (svc *Service) Create(ctx context.Context, np NewPlan) (Plan, error) {
	if _, err := svc.repo.GetPlan(ctx, GetFilter{Name: np.Name}); err == nil {
		return Plan{}, core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Plan{}, errors.Wrap(err, "checking plan name")
	}

	now := time.Now().UTC()
	return svc.repo.CreatePlan(ctx, Plan{
		Name:        np.Name,
		DisplayName: np.DisplayName,
		PriceAmount: np.PriceAmount,
		Currency:    np.Currency,
		Interval:    np.Interval,
		Limits:      np.Limits,
		Features:    np.Features,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) Query(ctx context.Context, all bool) ([]Plan, error) {
	return svc.repo.QueryPlans(ctx, all)
}

// GetByID reads a plan through the catalog cache.
func (svc *Service) GetByID(ctx context.Context, id string) (Plan, error) {
	if svc.cache != nil {
		if p, ok := svc.cache.Get(ctx, id); ok {
			return p, nil
		}
	}
	p, err := svc.repo.GetPlan(ctx, GetFilter{ID: id})
	if err != nil {
		return Plan{}, err
	}
	if svc.cache != nil {
		svc.cache.Set(ctx, p)
	}
	return p, nil
}

func (svc *Service) GetByName(ctx context.Context, name string) (Plan, error) {
	return svc.repo.GetPlan(ctx, GetFilter{Name: core.CleanString(name)})
}

func (svc *Service) Update(ctx context.Context, p Plan, up UpdatePlan) (Plan, error) {
	if up.DisplayName != nil {
		p.DisplayName = core.CleanString(*up.DisplayName)
	}
	if up.PriceAmount != nil {
		p.PriceAmount = *up.PriceAmount
	}
	if up.Currency != nil {
		p.Currency = *up.Currency
	}
	if up.Interval != nil {
		p.Interval = *up.Interval
	}
	for name, limit := range up.Limits {
		p.Limits.Set(name, limit)
	}
	for name, enabled := range up.Features {
		p.Features.Set(name, enabled)
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	p.UpdatedAt = time.Now().UTC()
	return svc.save(ctx, p)
}

// Deactivate hides a plan from new subscriptions.
// Schools already subscribed keep it until they change plan.
func (svc *Service) Deactivate(ctx context.Context, id string) (Plan, error) {
	p, err := svc.repo.GetPlan(ctx, GetFilter{ID: id})
	if err != nil {
		return Plan{}, err
	}
	if !p.IsActive {
		return p, nil
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	return svc.save(ctx, p)
}

func (svc *Service) save(ctx context.Context, p Plan) (Plan, error) {
	p, err := svc.repo.UpdatePlan(ctx, p)
	if err != nil {
		return Plan{}, errors.Wrap(err, "updating plan")
	}
	if svc.cache != nil {
		svc.cache.Invalidate(ctx, p.ID)
	}
	return p, nil
}

// SeedCanonicalTiers creates or refreshes the canonical tiers, matched by name.
func (svc *Service) SeedCanonicalTiers(ctx context.Context) ([]Plan, error) {
	plans := make([]Plan, 0, len(CanonicalTiers))
	for _, tier := range CanonicalTiers {
		existing, err := svc.repo.GetPlan(ctx, GetFilter{Name: tier.Name})
		switch {
		case err == nil:
			existing.DisplayName = tier.DisplayName
			existing.PriceAmount = tier.PriceAmount
			existing.Currency = tier.Currency
			existing.Interval = tier.Interval
			existing.Limits = tier.Limits
			existing.Features = tier.Features
			existing.IsActive = true
			existing.UpdatedAt = time.Now().UTC()
			p, err := svc.save(ctx, existing)
			if err != nil {
				return nil, errors.Wrapf(err, "refreshing plan %s", tier.Name)
			}
			plans = append(plans, p)
		case errors.Cause(err) == ErrNotFound:
			p, err := svc.Create(ctx, tier)
			if err != nil {
				return nil, errors.Wrapf(err, "creating plan %s", tier.Name)
			}
			plans = append(plans, p)
		default:
			return nil, errors.Wrapf(err, "finding plan %s", tier.Name)
		}
		svc.logger.Info("plan seeded", map[string]interface{}{"plan": tier.Name})
	}
	return plans, nil
}
