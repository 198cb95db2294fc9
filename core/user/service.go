package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidRole    = errors.New("invalid user role")
	ErrSchoolRequired = errors.New("school is required for this role")
	ErrUnknownSchool  = errors.New("school does not exist")
)

// limitedRoles maps roles whose head count is capped by the school's plan.
var limitedRoles = map[Role]plan.LimitName{
	RoleStudent: plan.LimitMaxStudents,
	RoleTeacher: plan.LimitMaxTeachers,
}

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user
		// (not in excludedUsers) already holds the username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
		CountUsers(ctx context.Context, schoolID string, role Role) (int64, error)
	}

	// EntitlementResolver returns the entitlement of a school.
	EntitlementResolver interface {
		Resolve(ctx context.Context, schoolID string) (plan.Entitlement, error)
	}

	// SchoolFinder tells whether a school exists.
	SchoolFinder interface {
		Exists(ctx context.Context, schoolID string) (bool, error)
	}

	Service struct {
		repo         Repository
		entitlements EntitlementResolver
		schools      SchoolFinder
	}
)

func NewService(repo Repository, entitlements EntitlementResolver, schools SchoolFinder) *Service {
	return &Service{repo: repo, entitlements: entitlements, schools: schools}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// checkHeadCount refuses to add a user whose role is capped once the school reached its plan limit.
func (svc *Service) checkHeadCount(ctx context.Context, schoolID string, role Role) error {
	limit, ok := limitedRoles[role]
	if !ok || svc.entitlements == nil {
		return nil
	}

	ent, err := svc.entitlements.Resolve(ctx, schoolID)
	if err != nil {
		if errors.Is(err, core.ErrNoActiveSubscription) {
			return core.NewUpgradeRequiredError(core.UpgradeReasonNoSubscription, "", "")
		}
		return errors.Wrap(err, "resolving entitlement")
	}
	count, err := svc.repo.CountUsers(ctx, schoolID, role)
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	over, err := plan.IsOverLimit(ent, limit, count)
	if err != nil {
		return err
	}
	if over {
		return core.NewUpgradeRequiredError(core.UpgradeReasonLimit, "", string(limit))
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role != RoleSuperAdmin && nu.SchoolID == "" {
		return User{}, core.NewValidationError(ErrSchoolRequired, core.FieldError{Field: "school_id", Error: ErrSchoolRequired.Error()})
	}
	if nu.Role == RoleSuperAdmin {
		nu.SchoolID = ""
	} else if svc.schools != nil {
		ok, err := svc.schools.Exists(ctx, nu.SchoolID)
		if err != nil {
			return User{}, errors.Wrap(err, "looking up school")
		}
		if !ok {
			return User{}, core.NewValidationError(ErrUnknownSchool, core.FieldError{Field: "school_id", Error: ErrUnknownSchool.Error()})
		}
	}
	if err := svc.checkHeadCount(ctx, nu.SchoolID, nu.Role); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		SchoolID:  nu.SchoolID,
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

// CountByRole counts the users of a school holding role.
func (svc *Service) CountByRole(ctx context.Context, schoolID string, role Role) (int64, error) {
	return svc.repo.CountUsers(ctx, schoolID, role)
}
