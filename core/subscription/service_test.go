package subscription_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	emailsvc "github.com/koneum/eduwaly/services/email"
	"github.com/koneum/eduwaly/tests"
)

// racyRepository lets another writer move the school to one of rivals right before each of
// the first `races` plan changes.
type racyRepository struct {
	subscription.Repository
	rivals []string
	races  int32
}

func (repo *racyRepository) ChangePlan(ctx context.Context, schoolID, expectedPlanID, targetPlanID string, at time.Time) (subscription.Subscription, error) {
	if atomic.AddInt32(&repo.races, -1) >= 0 {
		rival := repo.rivals[0]
		if rival == expectedPlanID {
			rival = repo.rivals[1]
		}
		if _, err := repo.Repository.ChangePlan(ctx, schoolID, expectedPlanID, rival, at); err != nil {
			return subscription.Subscription{}, err
		}
	}
	return repo.Repository.ChangePlan(ctx, schoolID, expectedPlanID, targetPlanID, at)
}

// flakyRepository fails the first `failures` reads as unavailable.
type flakyRepository struct {
	subscription.Repository
	failures int32
}

func (repo *flakyRepository) GetSubscription(ctx context.Context, schoolID string) (subscription.Subscription, error) {
	if atomic.AddInt32(&repo.failures, -1) >= 0 {
		return subscription.Subscription{}, core.NewUnavailableError(errors.New("connection reset"), "getting subscription")
	}
	return repo.Repository.GetSubscription(ctx, schoolID)
}

func newService(env *testutil.Env, repo subscription.Repository) *subscription.Service {
	return subscription.NewService(
		env.Conf, repo, env.PlanSvc, env.Schools, env.Users, emailsvc.NewConsoleServiceMock(env.Conf), core.NewNopLogger(),
	)
}

func TestSubscription_IsEntitling(t *testing.T) {
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	tests := []struct {
		status   subscription.Status
		trialEnd *time.Time
		want     bool
	}{
		{status: subscription.StatusActive, want: true},
		{status: subscription.StatusPastDue, want: true},
		{status: subscription.StatusTrial, trialEnd: &future, want: true},
		{status: subscription.StatusTrial, trialEnd: &past, want: false},
		{status: subscription.StatusCanceled, want: false},
		{status: subscription.StatusUnpaid, want: false},
	}
	for _, tt := range tests {
		name := string(tt.status)
		if tt.trialEnd != nil {
			name += " ends " + tt.trialEnd.Format(time.Kitchen)
		}
		t.Run(name, func(t *testing.T) {
			sub := subscription.Subscription{Status: tt.status, TrialEndsAt: tt.trialEnd}
			assert.Equal(t, tt.want, sub.IsEntitling(now))
		})
	}
}

func TestService_Resolve(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)

	active := testutil.CreateSchool(t, env.Schools, "Active", "active")
	canceled := testutil.CreateSchool(t, env.Schools, "Canceled", "canceled")
	bare := testutil.CreateSchool(t, env.Schools, "Bare", "bare")
	testutil.Subscribe(t, env.Subscriptions, active.ID, plans[plan.Business].ID, subscription.StatusActive)
	testutil.Subscribe(t, env.Subscriptions, canceled.ID, plans[plan.Business].ID, subscription.StatusCanceled)

	ent, err := env.SubscriptionSvc.Resolve(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Business, ent.PlanName)
	assert.Equal(t, active.ID, ent.SchoolID)
	assert.True(t, ent.Features.AdvancedAnalytics)
	assert.NotNil(t, ent.CurrentPeriodEnd)

	for _, id := range []string{canceled.ID, bare.ID} {
		_, err = env.SubscriptionSvc.Resolve(ctx, id)
		assert.Equal(t, core.ErrNoActiveSubscription, err)

		ent, err = env.SubscriptionSvc.ResolveOrRestricted(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, ent.SchoolID)
		assert.Equal(t, core.UpgradeReasonNoSubscription, ent.Status)
		assert.Equal(t, plan.Limits{}, ent.Limits)
	}
}

func TestService_Resolve_unavailable(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)
	sch := testutil.CreateSchool(t, env.Schools, "School", "school")
	testutil.Subscribe(t, env.Subscriptions, sch.ID, plans[plan.Starter].ID, subscription.StatusActive)

	// retried
	svc := newService(env, &flakyRepository{Repository: env.Subscriptions, failures: 1})
	ent, err := svc.Resolve(ctx, sch.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Starter, ent.PlanName)

	// never falls back to a default plan
	svc = newService(env, &flakyRepository{Repository: env.Subscriptions, failures: 100})
	_, err = svc.Resolve(ctx, sch.ID)
	assert.True(t, core.IsUnavailable(err), "got %v", err)
	_, err = svc.ResolveOrRestricted(ctx, sch.ID)
	assert.True(t, core.IsUnavailable(err), "got %v", err)
}

func TestService_StartTrial(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)
	sch := testutil.CreateSchool(t, env.Schools, "School", "school")

	require.NoError(t, env.SubscriptionSvc.StartTrial(ctx, sch.ID))
	sub, err := env.SubscriptionSvc.Get(ctx, sch.ID)
	require.NoError(t, err)
	assert.Equal(t, plans[plan.Starter].ID, sub.PlanID)
	assert.Equal(t, subscription.StatusTrial, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	assert.WithinDuration(t, time.Now().Add(env.Conf.Billing.TrialPeriod), *sub.TrialEndsAt, time.Minute)

	err = env.SubscriptionSvc.StartTrial(ctx, sch.ID)
	assert.Equal(t, subscription.ErrExists, errors.Cause(err))
}

func TestService_Upgrade(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)
	starter, pro, business := plans[plan.Starter], plans[plan.Professional], plans[plan.Business]
	rivals := []string{business.ID, plans[plan.Enterprise].ID}

	t.Run("starter to professional", func(t *testing.T) {
		sch := testutil.CreateSchool(t, env.Schools, "Upgrader", "upgrader")
		testutil.Subscribe(t, env.Subscriptions, sch.ID, starter.ID, subscription.StatusActive)

		ent, err := env.SubscriptionSvc.Resolve(ctx, sch.ID)
		require.NoError(t, err)
		assert.False(t, ent.Features.Messaging)

		sub, err := env.SubscriptionSvc.Upgrade(ctx, sch.ID, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, pro.ID, sub.PlanID)

		ent, err = env.SubscriptionSvc.Resolve(ctx, sch.ID)
		require.NoError(t, err)
		assert.True(t, ent.Features.Messaging)
		assert.Equal(t, plan.Max(500), ent.Limits.MaxStudents)

		// already there
		sub, err = env.SubscriptionSvc.Upgrade(ctx, sch.ID, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, pro.ID, sub.PlanID)
	})

	t.Run("conflict retried once", func(t *testing.T) {
		sch := testutil.CreateSchool(t, env.Schools, "Racer", "racer")
		testutil.Subscribe(t, env.Subscriptions, sch.ID, starter.ID, subscription.StatusActive)
		svc := newService(env, &racyRepository{Repository: env.Subscriptions, rivals: rivals, races: 1})

		sub, err := svc.Upgrade(ctx, sch.ID, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, pro.ID, sub.PlanID)
	})

	t.Run("conflict lost twice", func(t *testing.T) {
		sch := testutil.CreateSchool(t, env.Schools, "Loser", "loser")
		testutil.Subscribe(t, env.Subscriptions, sch.ID, starter.ID, subscription.StatusActive)
		svc := newService(env, &racyRepository{Repository: env.Subscriptions, rivals: rivals, races: 2})

		_, err := svc.Upgrade(ctx, sch.ID, pro.ID)
		assert.True(t, errors.Is(err, core.ErrConcurrentModification), "got %v", err)

		// the last winner's plan is kept
		sub, err := env.SubscriptionSvc.Get(ctx, sch.ID)
		require.NoError(t, err)
		assert.Equal(t, plans[plan.Enterprise].ID, sub.PlanID)
	})

	t.Run("stale expected plan", func(t *testing.T) {
		sch := testutil.CreateSchool(t, env.Schools, "Stale", "stale")
		testutil.Subscribe(t, env.Subscriptions, sch.ID, business.ID, subscription.StatusActive)

		_, err := env.SubscriptionSvc.ChangePlan(ctx, sch.ID, starter.ID, pro.ID)
		assert.True(t, errors.Is(err, core.ErrConcurrentModification), "got %v", err)
	})
}

func TestService_ApplyStatus(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	plans := env.SeedPlans(t)
	sch := testutil.CreateSchool(t, env.Schools, "Lycée Wagué", "lycee_wague")
	orig := testutil.Subscribe(t, env.Subscriptions, sch.ID, plans[plan.Professional].ID, subscription.StatusActive)
	testutil.CreateUser(t, env.Users, "Admin", "adminuser", "admin@test.ml", "", user.RoleSchoolAdmin, sch.ID, true)
	testutil.CreateUser(t, env.Users, "Former", "formeradmin", "former@test.ml", "", user.RoleSchoolAdmin, sch.ID, false)
	testutil.CreateUser(t, env.Users, "Teacher", "teacher1", "teacher@test.ml", "", user.RoleTeacher, sch.ID, true)
	emailsvc.ResetSentMessages()

	at := time.Now().UTC()

	sub, applied, err := env.SubscriptionSvc.ApplyStatus(ctx, sch.ID, subscription.StatusUnpaid, at)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, subscription.StatusUnpaid, sub.Status)

	msgs := emailsvc.GetSentMessages()
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].To, 1, "only active school admins are notified")
	assert.Equal(t, "admin@test.ml", msgs[0].To[0].Address)
	assert.Contains(t, msgs[0].TextContent, "UNPAID")

	_, err = env.SubscriptionSvc.Resolve(ctx, sch.ID)
	assert.Equal(t, core.ErrNoActiveSubscription, err)

	// same event again
	_, applied, err = env.SubscriptionSvc.ApplyStatus(ctx, sch.ID, subscription.StatusUnpaid, at)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, emailsvc.GetSentMessages(), 1)

	// older event delivered late
	sub, applied, err = env.SubscriptionSvc.ApplyStatus(ctx, sch.ID, subscription.StatusActive, at.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, subscription.StatusUnpaid, sub.Status)

	// payment recovered: a new period starts
	sub, applied, err = env.SubscriptionSvc.ApplyStatus(ctx, sch.ID, subscription.StatusActive, at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, plan.Monthly.Next(orig.CurrentPeriodEnd), sub.CurrentPeriodEnd)

	ent, err := env.SubscriptionSvc.Resolve(ctx, sch.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Professional, ent.PlanName)

	_, _, err = env.SubscriptionSvc.ApplyStatus(ctx, "nope", subscription.StatusActive, at)
	assert.Equal(t, subscription.ErrNotFound, errors.Cause(err))
}
