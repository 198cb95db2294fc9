package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	emailsvc "github.com/koneum/eduwaly/services/email"
	"github.com/koneum/eduwaly/storage/cache"
	inmemdb "github.com/koneum/eduwaly/storage/database/inmem"
)

// Env wires every service on a fresh in-memory database.
type Env struct {
	Conf *core.Config

	Users         user.Repository
	Schools       school.Repository
	Plans         plan.Repository
	Subscriptions subscription.Repository
	Permissions   permission.Repository

	UserSvc         *user.Service
	SchoolSvc       *school.Service
	PlanSvc         *plan.Service
	SubscriptionSvc *subscription.Service
	PermissionSvc   *permission.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := core.NewNopLogger()
	db := inmemdb.Open()

	env := &Env{
		Conf:          conf,
		Users:         inmemdb.NewUserRepository(db),
		Schools:       inmemdb.NewSchoolRepository(db),
		Plans:         inmemdb.NewPlanRepository(db),
		Subscriptions: inmemdb.NewSubscriptionRepository(db),
		Permissions:   inmemdb.NewPermissionRepository(db),
	}
	env.PlanSvc = plan.NewService(env.Plans, cache.NewPlanCache(conf.Cache.MaxSize, conf.Cache.TTL), logger)
	env.SubscriptionSvc = subscription.NewService(
		conf, env.Subscriptions, env.PlanSvc, env.Schools, env.Users, emailsvc.NewConsoleServiceMock(conf), logger,
	)
	env.SchoolSvc = school.NewService(env.Schools, inmemdb.NewSchoolUnitOfWork(db, env.SubscriptionSvc), logger)
	env.UserSvc = user.NewService(env.Users, env.SubscriptionSvc, env.SchoolSvc)
	env.PermissionSvc = permission.NewService(conf, env.Permissions, logger)
	return env
}

// SeedPlans creates the canonical tiers and returns them by name.
func (env *Env) SeedPlans(t *testing.T) map[string]plan.Plan {
	t.Helper()
	plans, err := env.PlanSvc.SeedCanonicalTiers(context.Background())
	require.NoError(t, err)
	byName := make(map[string]plan.Plan, len(plans))
	for _, p := range plans {
		byName[p.Name] = p
	}
	return byName
}

// SeedPermissions creates the default catalog and returns it by "category:action".
func (env *Env) SeedPermissions(t *testing.T) map[string]permission.Permission {
	t.Helper()
	_, err := env.PermissionSvc.SeedDefaultCatalog(context.Background())
	require.NoError(t, err)
	perms, err := env.PermissionSvc.Query(context.Background(), "")
	require.NoError(t, err)
	byName := make(map[string]permission.Permission, len(perms))
	for _, p := range perms {
		byName[p.String()] = p
	}
	return byName
}

// CreateSchool stores a school without subscription.
func CreateSchool(t *testing.T, repo school.Repository, name, slug string) school.School {
	t.Helper()
	now := time.Now().UTC()
	s, err := repo.CreateSchool(context.Background(), school.School{
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return s
}

// Subscribe stores a subscription of schoolID to planID, effective an hour ago.
func Subscribe(t *testing.T, repo subscription.Repository, schoolID, planID string, status subscription.Status) subscription.Subscription {
	t.Helper()
	now := time.Now().UTC()
	sub, err := repo.CreateSubscription(context.Background(), subscription.Subscription{
		SchoolID:          schoolID,
		PlanID:            planID,
		Status:            status,
		CurrentPeriodEnd:  now.AddDate(0, 1, 0),
		StatusEffectiveAt: now.Add(-time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	return sub
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	schoolID string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		SchoolID:  schoolID,
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd))
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}
