package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/koneum/eduwaly/core/plan"
)

type planRepository struct {
	db *planTable
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) *planRepository {
	return &planRepository{db: db.plan}
}

func (repo *planRepository) CreatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.Name == p.Name {
			return plan.Plan{}, plan.ErrNameExists
		}
	}
	p.ID = uuid.New().String()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *planRepository) QueryPlans(_ context.Context, all bool) ([]plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	plans := make([]plan.Plan, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if all || p.IsActive {
			plans = append(plans, *p)
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].PriceAmount != plans[j].PriceAmount {
			return plans[i].PriceAmount < plans[j].PriceAmount
		}
		return plans[i].Name < plans[j].Name
	})
	return plans, nil
}

func (repo *planRepository) GetPlan(_ context.Context, filter plan.GetFilter) (plan.Plan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if p, ok := repo.db.table[filter.ID]; ok {
			return *p, nil
		}
		return plan.Plan{}, plan.ErrNotFound
	}
	if filter.Name != "" {
		for _, p := range repo.db.table {
			if p.Name == filter.Name {
				return *p, nil
			}
		}
	}
	return plan.Plan{}, plan.ErrNotFound
}

func (repo *planRepository) UpdatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return plan.Plan{}, plan.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}
