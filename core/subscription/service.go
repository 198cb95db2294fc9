package subscription

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("subscription not found")
	ErrExists   = errors.New("school already has a subscription")
)

type (
	Repository interface {
		CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
		GetSubscription(ctx context.Context, schoolID string) (Subscription, error)
		// ChangePlan replaces the plan of the school's subscription only if it still is expectedPlanID.
		// It fails with core.ErrConcurrentModification otherwise.
		ChangePlan(ctx context.Context, schoolID, expectedPlanID, targetPlanID string, at time.Time) (Subscription, error)
		// UpdateStatus saves sub's status fields only if sub.StatusEffectiveAt is after the stored one.
		// It reports whether the row was updated.
		UpdateStatus(ctx context.Context, sub Subscription) (bool, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		plans   *plan.Service
		schools school.Repository
		users   user.Repository
		mailSvc core.EmailService
		logger  core.Logger
		now     func() time.Time
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	plans *plan.Service,
	schools school.Repository,
	users user.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		conf:    conf,
		repo:    repo,
		plans:   plans,
		schools: schools,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return core.RetryUnavailable(ctx, svc.conf.Database.MaxRetries, svc.conf.Database.RetryBaseDelay, fn)
}

func (svc *Service) Get(ctx context.Context, schoolID string) (Subscription, error) {
	var sub Subscription
	err := svc.retry(ctx, func(ctx context.Context) error {
		var err error
		sub, err = svc.repo.GetSubscription(ctx, schoolID)
		return err
	})
	return sub, err
}

// Resolve loads the school's subscription and its plan, and returns what the school is entitled to.
// A missing, canceled, unpaid or expired-trial subscription fails with core.ErrNoActiveSubscription.
func (svc *Service) Resolve(ctx context.Context, schoolID string) (plan.Entitlement, error) {
	var ent plan.Entitlement
	err := svc.retry(ctx, func(ctx context.Context) error {
		var err error
		ent, err = svc.resolve(ctx, schoolID)
		return err
	})
	return ent, err
}

func (svc *Service) resolve(ctx context.Context, schoolID string) (plan.Entitlement, error) {
	sub, err := svc.repo.GetSubscription(ctx, schoolID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return plan.Entitlement{}, core.ErrNoActiveSubscription
		}
		return plan.Entitlement{}, errors.Wrap(err, "getting subscription")
	}
	if !sub.IsEntitling(svc.now()) {
		return plan.Entitlement{}, core.ErrNoActiveSubscription
	}

	p, err := svc.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return plan.Entitlement{}, errors.Wrap(err, "getting subscription plan")
	}

	ent := plan.NewEntitlement(p)
	ent.SchoolID = schoolID
	ent.Status = string(sub.Status)
	periodEnd := sub.CurrentPeriodEnd
	ent.CurrentPeriodEnd = &periodEnd
	ent.TrialEndsAt = sub.TrialEndsAt
	return ent, nil
}

// ResolveOrRestricted is Resolve falling back to the restricted entitlement
// when the school has no active subscription.
func (svc *Service) ResolveOrRestricted(ctx context.Context, schoolID string) (plan.Entitlement, error) {
	ent, err := svc.Resolve(ctx, schoolID)
	if errors.Is(err, core.ErrNoActiveSubscription) {
		ent = plan.Restricted()
		ent.SchoolID = schoolID
		ent.Status = core.UpgradeReasonNoSubscription
		return ent, nil
	}
	return ent, err
}

// WithRepository returns a copy of svc writing to repo, eg. a repository bound to a transaction.
func (svc *Service) WithRepository(repo Repository) *Service {
	c := *svc
	c.repo = repo
	return &c
}

// StartTrial subscribes a new school to the starter plan for the trial period.
func (svc *Service) StartTrial(ctx context.Context, schoolID string) error {
	starter, err := svc.plans.GetByName(ctx, plan.Starter)
	if err != nil {
		return errors.Wrap(err, "getting starter plan")
	}

	now := svc.now()
	trialEnd := now.Add(svc.conf.Billing.TrialPeriod)
	_, err = svc.repo.CreateSubscription(ctx, Subscription{
		SchoolID:          schoolID,
		PlanID:            starter.ID,
		Status:            StatusTrial,
		CurrentPeriodEnd:  trialEnd,
		TrialEndsAt:       &trialEnd,
		StatusEffectiveAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return errors.Wrap(err, "creating subscription")
	}
	return nil
}

// ChangePlan moves the school from expectedPlanID to targetPlanID.
// It fails with core.ErrConcurrentModification when the school is no longer on expectedPlanID.
func (svc *Service) ChangePlan(ctx context.Context, schoolID, expectedPlanID, targetPlanID string) (Subscription, error) {
	target, err := svc.plans.GetByID(ctx, targetPlanID)
	if err != nil {
		return Subscription{}, errors.Wrap(err, "getting target plan")
	}
	if !target.IsActive {
		return Subscription{}, plan.ErrPlanInactive
	}
	return svc.repo.ChangePlan(ctx, schoolID, expectedPlanID, targetPlanID, svc.now())
}

// Upgrade moves the school to targetPlanID, retrying once with fresh data
// if another change won the race.
func (svc *Service) Upgrade(ctx context.Context, schoolID, targetPlanID string) (Subscription, error) {
	for attempt := 1; ; attempt++ {
		sub, err := svc.Get(ctx, schoolID)
		if err != nil {
			return Subscription{}, err
		}
		if sub.PlanID == targetPlanID {
			return sub, nil
		}

		sub, err = svc.ChangePlan(ctx, schoolID, sub.PlanID, targetPlanID)
		if errors.Is(err, core.ErrConcurrentModification) && attempt < 2 {
			svc.logger.Info("plan change conflict, retrying", map[string]interface{}{"school": schoolID, "plan": targetPlanID})
			continue
		}
		return sub, err
	}
}

// ApplyStatus records a status transition reported by the billing provider.
// Events not newer than the last applied one are ignored, so redeliveries are no-ops.
// It reports whether the event was applied.
func (svc *Service) ApplyStatus(ctx context.Context, schoolID string, status Status, effectiveAt time.Time) (Subscription, bool, error) {
	sub, err := svc.Get(ctx, schoolID)
	if err != nil {
		return Subscription{}, false, err
	}
	effectiveAt = effectiveAt.UTC()
	if !effectiveAt.After(sub.StatusEffectiveAt) {
		return sub, false, nil
	}

	p, err := svc.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return Subscription{}, false, errors.Wrap(err, "getting subscription plan")
	}

	prevStatus := sub.Status
	sub.Status = status
	sub.StatusEffectiveAt = effectiveAt
	sub.UpdatedAt = svc.now()

	if status == StatusActive {
		if !p.IsActive {
			svc.logger.Warn("renewing subscription on an inactive plan", map[string]interface{}{"school": schoolID, "plan": p.Name})
		}
		start := sub.CurrentPeriodEnd
		if start.Before(effectiveAt) {
			start = effectiveAt
		}
		sub.CurrentPeriodEnd = p.Interval.Next(start)
		sub.TrialEndsAt = nil
	}

	applied, err := svc.repo.UpdateStatus(ctx, sub)
	if err != nil {
		return Subscription{}, false, errors.Wrap(err, "updating subscription status")
	}
	if !applied {
		// a newer event was applied concurrently
		sub, err = svc.Get(ctx, schoolID)
		return sub, false, err
	}

	if status != prevStatus && status.notifies() {
		svc.notifyAdmins(ctx, sub, p)
	}
	return sub, true, nil
}

func (svc *Service) notifyAdmins(ctx context.Context, sub Subscription, p plan.Plan) {
	logErr := func(msg string, err error) {
		svc.logger.Error(msg, err, map[string]interface{}{"school": sub.SchoolID, "status": string(sub.Status)})
	}

	sch, err := svc.schools.GetSchool(ctx, school.GetFilter{ID: sub.SchoolID})
	if err != nil {
		logErr("getting school to notify", err)
		return
	}
	active := true
	admins, err := svc.users.QueryUsers(ctx, &user.QueryFilter{
		SchoolID: sub.SchoolID,
		Roles:    []user.Role{user.RoleSchoolAdmin},
		IsActive: &active,
	}, nil)
	if err != nil {
		logErr("getting school admins to notify", err)
		return
	}

	to := make([]mail.Address, 0, len(admins))
	for _, admin := range admins {
		if admin.Email != "" {
			to = append(to, mail.Address{Name: admin.Name, Address: admin.Email})
		}
	}
	if len(to) == 0 {
		svc.logger.Warn("no school admin to notify", map[string]interface{}{"school": sub.SchoolID})
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      "Your subscription is " + string(sub.Status),
		TemplateName: "subscription_status",
		TemplateData: notification{
			SchoolName: sch.Name,
			PlanName:   p.DisplayName,
			Status:     sub.Status,
		},
	})
}
