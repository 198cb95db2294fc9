package boiledrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/subscription"
)

var subscriptionRowColumns = []string{
	"id", "school_id", "plan_id", "status", "current_period_end", "trial_ends_at",
	"status_effective_at", "created_at", "updated_at",
}

func newMock(t *testing.T) (sqlmock.Sqlmock, core.DBExecutor) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mock, db
}

func TestSubscriptionRepository_CreateSubscription(t *testing.T) {
	mock, db := newMock(t)
	repo := NewSubscriptionRepository(db)
	schoolID := uuid.New().String()
	now := time.Now().UTC()
	sub := subscription.Subscription{
		SchoolID:          schoolID,
		PlanID:            uuid.New().String(),
		Status:            subscription.StatusTrial,
		CurrentPeriodEnd:  now.AddDate(0, 0, 14),
		TrialEndsAt:       &now,
		StatusEffectiveAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM subscription WHERE school_id = \$1\)`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO subscription`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateSubscription(context.Background(), sub)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	_, err = repo.CreateSubscription(context.Background(), sub)
	assert.Equal(t, subscription.ErrExists, err)

	// concurrent insert between the check and ours
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO subscription`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "subscription_school_id_key"})
	_, err = repo.CreateSubscription(context.Background(), sub)
	assert.Equal(t, subscription.ErrExists, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_GetSubscription(t *testing.T) {
	mock, db := newMock(t)
	repo := NewSubscriptionRepository(db)
	id, schoolID, planID := uuid.New().String(), uuid.New().String(), uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`FROM subscription WHERE school_id = \$1 LIMIT 1`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
			AddRow(id, schoolID, planID, "PAST_DUE", now, nil, now, now, now))
	sub, err := repo.GetSubscription(context.Background(), schoolID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, sub.Status)
	assert.Equal(t, planID, sub.PlanID)
	assert.Nil(t, sub.TrialEndsAt)

	mock.ExpectQuery(`FROM subscription WHERE school_id = \$1 LIMIT 1`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
			AddRow(id, schoolID, planID, "PAUSED", now, nil, now, now, now))
	_, err = repo.GetSubscription(context.Background(), schoolID)
	assert.Error(t, err)

	mock.ExpectQuery(`FROM subscription WHERE school_id = \$1 LIMIT 1`).
		WithArgs(schoolID).
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns))
	_, err = repo.GetSubscription(context.Background(), schoolID)
	assert.Equal(t, subscription.ErrNotFound, err)

	_, err = repo.GetSubscription(context.Background(), "nope")
	assert.Equal(t, subscription.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_ChangePlan(t *testing.T) {
	id, schoolID := uuid.New().String(), uuid.New().String()
	starter, pro := uuid.New().String(), uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("changed", func(t *testing.T) {
		mock, db := newMock(t)
		mock.ExpectQuery(`UPDATE subscription SET plan_id = \$3, updated_at = \$4 WHERE school_id = \$1 AND plan_id = \$2 RETURNING`).
			WithArgs(schoolID, starter, pro, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
				AddRow(id, schoolID, pro, "ACTIVE", now, nil, now, now, now))
		sub, err := NewSubscriptionRepository(db).ChangePlan(context.Background(), schoolID, starter, pro, now)
		require.NoError(t, err)
		assert.Equal(t, pro, sub.PlanID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict", func(t *testing.T) {
		mock, db := newMock(t)
		mock.ExpectQuery(`UPDATE subscription SET plan_id`).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns))
		mock.ExpectQuery(`FROM subscription WHERE school_id = \$1 LIMIT 1`).
			WithArgs(schoolID).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
				AddRow(id, schoolID, pro, "ACTIVE", now, nil, now, now, now))
		_, err := NewSubscriptionRepository(db).ChangePlan(context.Background(), schoolID, starter, pro, now)
		assert.Equal(t, core.ErrConcurrentModification, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no subscription", func(t *testing.T) {
		mock, db := newMock(t)
		mock.ExpectQuery(`UPDATE subscription SET plan_id`).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns))
		mock.ExpectQuery(`FROM subscription WHERE school_id = \$1 LIMIT 1`).
			WillReturnRows(sqlmock.NewRows(subscriptionRowColumns))
		_, err := NewSubscriptionRepository(db).ChangePlan(context.Background(), schoolID, starter, pro, now)
		assert.Equal(t, subscription.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubscriptionRepository_UpdateStatus(t *testing.T) {
	now := time.Now().UTC()
	sub := subscription.Subscription{
		SchoolID:          uuid.New().String(),
		Status:            subscription.StatusCanceled,
		CurrentPeriodEnd:  now,
		StatusEffectiveAt: now,
		UpdatedAt:         now,
	}

	tests := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{name: "applied", rowsAffected: 1, want: true},
		{name: "stale event", rowsAffected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, db := newMock(t)
			mock.ExpectExec(`UPDATE subscription SET status = \$2 (.+) WHERE school_id = \$1 AND status_effective_at < \$5`).
				WithArgs(sub.SchoolID, "CANCELED", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			applied, err := NewSubscriptionRepository(db).UpdateStatus(context.Background(), sub)
			require.NoError(t, err)
			assert.Equal(t, tt.want, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
