package boiledrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core/plan"
)

func TestPlanRepository_GetPlan(t *testing.T) {
	mock, db := newMock(t)
	repo := NewPlanRepository(db)
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	columns := []string{
		"id", "name", "display_name", "price_amount", "currency", "billing_interval",
		"max_students", "max_teachers", "max_documents", "max_storage", "max_emails", "max_sms", "max_campuses",
		"feature_messaging", "feature_reports", "feature_advanced_analytics", "feature_multiple_schools",
		"feature_payments", "feature_homework", "feature_api", "feature_sms",
		"is_active", "created_at", "updated_at",
	}
	mock.ExpectQuery(`FROM plan WHERE \(name = \$1\) LIMIT 1`).
		WithArgs(plan.Professional).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			id, plan.Professional, "Professional", 4900, "USD", "MONTHLY",
			500, 50, nil, 10240, nil, 0, 1,
			true, true, false, false,
			true, true, false, false,
			true, now, now,
		))

	p, err := repo.GetPlan(context.Background(), plan.GetFilter{Name: plan.Professional})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, plan.Max(500), p.Limits.MaxStudents)
	assert.Equal(t, plan.Unlimited, p.Limits.MaxDocuments)
	assert.Equal(t, plan.Unlimited, p.Limits.MaxEmails)
	assert.Equal(t, plan.Max(0), p.Limits.MaxSMS)
	assert.True(t, p.Features.Messaging)
	assert.False(t, p.Features.API)

	mock.ExpectQuery(`FROM plan WHERE \(id = \$1\) LIMIT 1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.GetPlan(context.Background(), plan.GetFilter{ID: id})
	assert.Equal(t, plan.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepository_UpdatePlan(t *testing.T) {
	mock, db := newMock(t)
	repo := NewPlanRepository(db)
	p := plan.Plan{ID: uuid.New().String(), Name: "X", Limits: plan.Limits{MaxStudents: plan.Unlimited}}

	mock.ExpectExec(`UPDATE plan SET display_name = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdatePlan(context.Background(), p)
	assert.Equal(t, plan.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
