package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/storage/database"
)

const subscriptionColumns = `id, school_id, plan_id, status, current_period_end, trial_ends_at,
	status_effective_at, created_at, updated_at`

type subscriptionRow struct {
	ID                string    `boil:"id"`
	SchoolID          string    `boil:"school_id"`
	PlanID            string    `boil:"plan_id"`
	Status            string    `boil:"status"`
	CurrentPeriodEnd  time.Time `boil:"current_period_end"`
	TrialEndsAt       null.Time `boil:"trial_ends_at"`
	StatusEffectiveAt time.Time `boil:"status_effective_at"`
	CreatedAt         time.Time `boil:"created_at"`
	UpdatedAt         time.Time `boil:"updated_at"`
}

func (row subscriptionRow) unboil() (subscription.Subscription, error) {
	status, ok := subscription.ParseStatus(row.Status)
	if !ok {
		return subscription.Subscription{}, errors.Errorf("subscription %s has unknown status %q", row.ID, row.Status)
	}
	sub := subscription.Subscription{
		ID:                row.ID,
		SchoolID:          row.SchoolID,
		PlanID:            row.PlanID,
		Status:            status,
		CurrentPeriodEnd:  row.CurrentPeriodEnd.UTC(),
		StatusEffectiveAt: row.StatusEffectiveAt.UTC(),
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
	if row.TrialEndsAt.Valid {
		trialEnd := row.TrialEndsAt.Time.UTC()
		sub.TrialEndsAt = &trialEnd
	}
	return sub, nil
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type subscriptionRepository struct {
	exec core.DBExecutor
}

var _ subscription.Repository = (*subscriptionRepository)(nil) // interface compliance check

func NewSubscriptionRepository(exec core.DBExecutor) *subscriptionRepository {
	return &subscriptionRepository{exec: exec}
}

func (repo subscriptionRepository) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	var exists bool
	err := queries.Raw(`SELECT EXISTS (SELECT 1 FROM subscription WHERE school_id = $1)`, sub.SchoolID).
		QueryRowContext(ctx, repo.exec).Scan(&exists)
	if err != nil {
		return subscription.Subscription{}, database.WrapErr(err, "checking subscription")
	}
	if exists {
		return subscription.Subscription{}, subscription.ErrExists
	}

	sub.ID = uuid.New().String()
	q := `INSERT INTO subscription (` + subscriptionColumns + `) VALUES (` + placeholders(9, 1) + `)`
	_, err = queries.Raw(q,
		sub.ID, sub.SchoolID, sub.PlanID, string(sub.Status), sub.CurrentPeriodEnd.UTC(), nullTime(sub.TrialEndsAt),
		sub.StatusEffectiveAt.UTC(), sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err != nil {
		if database.IsUniqueViolation(err) {
			// lost a race with a concurrent insert
			return subscription.Subscription{}, subscription.ErrExists
		}
		return subscription.Subscription{}, database.WrapErr(err, "inserting subscription")
	}
	return sub, nil
}

func (repo subscriptionRepository) GetSubscription(ctx context.Context, schoolID string) (subscription.Subscription, error) {
	if _, err := uuid.Parse(schoolID); err != nil {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	var row subscriptionRow
	q := `SELECT ` + subscriptionColumns + ` FROM subscription WHERE school_id = $1 LIMIT 1`
	if err := queries.Raw(q, schoolID).Bind(ctx, repo.exec, &row); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return subscription.Subscription{}, subscription.ErrNotFound
		}
		return subscription.Subscription{}, database.WrapErr(err, "finding subscription")
	}
	return row.unboil()
}

func (repo subscriptionRepository) ChangePlan(
	ctx context.Context,
	schoolID, expectedPlanID, targetPlanID string,
	at time.Time,
) (subscription.Subscription, error) {
	var row subscriptionRow
	q := `UPDATE subscription SET plan_id = $3, updated_at = $4
		WHERE school_id = $1 AND plan_id = $2
		RETURNING ` + subscriptionColumns
	err := queries.Raw(q, schoolID, expectedPlanID, targetPlanID, at.UTC()).Bind(ctx, repo.exec, &row)
	if err == nil {
		return row.unboil()
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return subscription.Subscription{}, database.WrapErr(err, "changing subscription plan")
	}

	// nothing updated: the subscription is gone or its plan moved on
	if _, err := repo.GetSubscription(ctx, schoolID); err != nil {
		return subscription.Subscription{}, err
	}
	return subscription.Subscription{}, core.ErrConcurrentModification
}

func (repo subscriptionRepository) UpdateStatus(ctx context.Context, sub subscription.Subscription) (bool, error) {
	q := `UPDATE subscription SET status = $2, current_period_end = $3, trial_ends_at = $4,
		status_effective_at = $5, updated_at = $6
		WHERE school_id = $1 AND status_effective_at < $5`
	res, err := queries.Raw(q,
		sub.SchoolID, string(sub.Status), sub.CurrentPeriodEnd.UTC(), nullTime(sub.TrialEndsAt),
		sub.StatusEffectiveAt.UTC(), sub.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err != nil {
		return false, database.WrapErr(err, "updating subscription status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "counting updated subscriptions")
	}
	return n > 0, nil
}
