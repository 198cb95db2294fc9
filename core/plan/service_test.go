package plan_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/tests"
)

func TestService_SeedCanonicalTiers(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	first := env.SeedPlans(t)
	require.Len(t, first, 4)

	// reseeding restores tampered tiers in place
	_, err := env.PlanSvc.Deactivate(ctx, first[plan.Starter].ID)
	require.NoError(t, err)
	second := env.SeedPlans(t)
	assert.Equal(t, first[plan.Starter].ID, second[plan.Starter].ID)
	assert.True(t, second[plan.Starter].IsActive)

	all, err := env.PlanSvc.Query(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedPlans(t)

	_, err := env.PlanSvc.Create(context.Background(), plan.NewPlan{Name: plan.Starter, DisplayName: "Again", Currency: "XOF", Interval: plan.Monthly})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "name", verr.Fields[0].Field)
}

func TestService_cache(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)
	starter := plans[plan.Starter]

	got, err := env.PlanSvc.GetByID(ctx, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, starter.PriceAmount, got.PriceAmount)

	price := int64(1)
	_, err = env.PlanSvc.Update(ctx, starter, plan.UpdatePlan{PriceAmount: &price})
	require.NoError(t, err)

	got, err = env.PlanSvc.GetByID(ctx, starter.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.PriceAmount, "updates invalidate the cached row")

	_, err = env.PlanSvc.GetByID(ctx, "nope")
	assert.Equal(t, plan.ErrNotFound, errors.Cause(err))
}

func TestService_Update_merge(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	starter := env.SeedPlans(t)[plan.Starter]

	got, err := env.PlanSvc.Update(ctx, starter, plan.UpdatePlan{
		Limits:   map[plan.LimitName]plan.Limit{plan.LimitMaxStudents: plan.Max(600)},
		Features: map[plan.Feature]bool{plan.FeatureReports: false},
	})
	require.NoError(t, err)

	want := starter.Limits
	want.MaxStudents = plan.Max(600)
	assert.Equal(t, want, got.Limits)
	assert.False(t, got.Features.Reports)
	assert.Equal(t, starter.Features.Homework, got.Features.Homework)
}

func TestService_Deactivate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)

	p, err := env.PlanSvc.Deactivate(ctx, plans[plan.Business].ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	// idempotent
	p, err = env.PlanSvc.Deactivate(ctx, plans[plan.Business].ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	active, err := env.PlanSvc.Query(ctx, false)
	require.NoError(t, err)
	for _, ap := range active {
		assert.NotEqual(t, plan.Business, ap.Name)
	}
}
