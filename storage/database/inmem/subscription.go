package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/subscription"
)

type subscriptionRepository struct {
	db *subscriptionTable
}

var _ subscription.Repository = (*subscriptionRepository)(nil) // interface compliance check

func NewSubscriptionRepository(db *DB) *subscriptionRepository {
	return &subscriptionRepository{db: db.subscription}
}

func (repo *subscriptionRepository) CreateSubscription(_ context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[sub.SchoolID]; ok {
		return subscription.Subscription{}, subscription.ErrExists
	}
	sub.ID = uuid.New().String()
	repo.db.table[sub.SchoolID] = &sub
	return sub, nil
}

func (repo *subscriptionRepository) GetSubscription(_ context.Context, schoolID string) (subscription.Subscription, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[schoolID]; ok {
		return *sub, nil
	}
	return subscription.Subscription{}, subscription.ErrNotFound
}

func (repo *subscriptionRepository) ChangePlan(
	_ context.Context,
	schoolID, expectedPlanID, targetPlanID string,
	at time.Time,
) (subscription.Subscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub, ok := repo.db.table[schoolID]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	if sub.PlanID != expectedPlanID {
		return subscription.Subscription{}, core.ErrConcurrentModification
	}
	sub.PlanID = targetPlanID
	sub.UpdatedAt = at
	return *sub, nil
}

func (repo *subscriptionRepository) UpdateStatus(_ context.Context, sub subscription.Subscription) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[sub.SchoolID]
	if !ok {
		return false, subscription.ErrNotFound
	}
	if !sub.StatusEffectiveAt.After(stored.StatusEffectiveAt) {
		return false, nil
	}
	stored.Status = sub.Status
	stored.CurrentPeriodEnd = sub.CurrentPeriodEnd
	stored.TrialEndsAt = sub.TrialEndsAt
	stored.StatusEffectiveAt = sub.StatusEffectiveAt
	stored.UpdatedAt = sub.UpdatedAt
	return true, nil
}
