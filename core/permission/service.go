package permission

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("permission not found")
	ErrExists   = errors.New("this permission already exists")
)

// Permission is a categorized capability, eg. students:create. Permissions are global.
type Permission struct {
	ID          string    `json:"id" db:"id"`
	Category    string    `json:"category" db:"category"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (p Permission) String() string { return p.Category + ":" + p.Action }

type NewPermission struct {
	Category    string `json:"category" validate:"required,max=50,slug"`
	Action      string `json:"action" validate:"required,max=50,slug"`
	Description string `json:"description" validate:"max=255"`
}

func (np *NewPermission) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	np.Category = core.CleanString(np.Category, true /* lower */)
	np.Action = core.CleanString(np.Action, true /* lower */)
	np.Description = core.CleanString(np.Description)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if _, err := svc.repo.GetPermission(ctx, GetFilter{Category: np.Category, Action: np.Action}); err == nil {
		return core.NewValidationError(ErrExists, core.FieldError{Field: "action", Error: ErrExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "checking permission uniqueness")
	}
	return nil
}

type GrantRequest struct {
	PermissionID string `json:"permission_id" validate:"required"`
}

// GetFilter selects a permission by ID, or by Category and Action.
type GetFilter struct {
	ID       string
	Category string
	Action   string
}

type (
	Repository interface {
		CreatePermission(ctx context.Context, p Permission) (Permission, error)
		// QueryPermissions lists the catalog, optionally restricted to one category.
		QueryPermissions(ctx context.Context, category string) ([]Permission, error)
		GetPermission(ctx context.Context, filter GetFilter) (Permission, error)
		QueryUserPermissions(ctx context.Context, userID string) ([]Permission, error)
		// GrantPermission and RevokePermission are idempotent.
		GrantPermission(ctx context.Context, userID, permissionID string, at time.Time) error
		RevokePermission(ctx context.Context, userID, permissionID string) error
	}

	Service struct {
		conf   *core.Config
		repo   Repository
		logger core.Logger
	}
)

func NewService(conf *core.Config, repo Repository, logger core.Logger) *Service {
	return &Service{conf: conf, repo: repo, logger: logger}
}

// CheckTenant guards resources scoped to a school: only SUPER_ADMIN may reach another school's resources.
func CheckTenant(usr user.User, resourceSchoolID string) error {
	if usr.IsSuperAdmin() || (usr.SchoolID != "" && usr.SchoolID == resourceSchoolID) {
		return nil
	}
	return core.ErrCrossTenantAccess
}

// EffectivePermissions returns what usr may do: all-access for admins,
// exactly the granted permissions for everyone else.
func (svc *Service) EffectivePermissions(ctx context.Context, usr *user.User) (Access, error) {
	if usr == nil || usr.ID == "" {
		return Access{}, core.ErrUnauthenticated
	}
	if !usr.Role.IsValid() {
		return Access{}, errors.Wrapf(user.ErrInvalidRole, "user %s has role %q", usr.ID, usr.Role)
	}
	if usr.Role.IsAdmin() {
		return AllAccess(), nil
	}

	var perms []Permission
	err := core.RetryUnavailable(ctx, svc.conf.Database.MaxRetries, svc.conf.Database.RetryBaseDelay, func(ctx context.Context) error {
		var err error
		perms, err = svc.repo.QueryUserPermissions(ctx, usr.ID)
		return err
	})
	if err != nil {
		return Access{}, errors.Wrap(err, "querying user permissions")
	}
	return NewAccess(perms...), nil
}

func (svc *Service) HasPermission(ctx context.Context, usr *user.User, category, action string) (bool, error) {
	access, err := svc.EffectivePermissions(ctx, usr)
	if err != nil {
		return false, err
	}
	return access.HasPermission(category, action), nil
}

// Authorize fails with core.ErrUnauthenticated without a user,
// and core.ErrInsufficientPermission when usr may not do action in category.
func (svc *Service) Authorize(ctx context.Context, usr *user.User, category, action string) error {
	ok, err := svc.HasPermission(ctx, usr, category, action)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrInsufficientPermission
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, np NewPermission) (Permission, error) {
	return svc.repo.CreatePermission(ctx, Permission{
		Category:    np.Category,
		Action:      np.Action,
		Description: np.Description,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) Query(ctx context.Context, category string) ([]Permission, error) {
	return svc.repo.QueryPermissions(ctx, core.CleanString(category, true /* lower */))
}

func (svc *Service) GetByID(ctx context.Context, id string) (Permission, error) {
	return svc.repo.GetPermission(ctx, GetFilter{ID: id})
}

// UserPermissions lists the permissions granted to a user, ignoring the admin bypass.
func (svc *Service) UserPermissions(ctx context.Context, userID string) ([]Permission, error) {
	return svc.repo.QueryUserPermissions(ctx, userID)
}

// Grant gives permissionID to usr. It takes effect on the next authorization check.
func (svc *Service) Grant(ctx context.Context, usr user.User, permissionID string) (Permission, error) {
	p, err := svc.repo.GetPermission(ctx, GetFilter{ID: permissionID})
	if err != nil {
		return Permission{}, err
	}
	if err := svc.repo.GrantPermission(ctx, usr.ID, p.ID, time.Now().UTC()); err != nil {
		return Permission{}, errors.Wrap(err, "granting permission")
	}
	return p, nil
}

func (svc *Service) Revoke(ctx context.Context, usr user.User, permissionID string) error {
	if err := svc.repo.RevokePermission(ctx, usr.ID, permissionID); err != nil {
		return errors.Wrap(err, "revoking permission")
	}
	return nil
}

// SeedDefaultCatalog creates the missing permissions of DefaultCatalog.
func (svc *Service) SeedDefaultCatalog(ctx context.Context) (int, error) {
	var created int
	for _, np := range DefaultCatalog() {
		_, err := svc.repo.GetPermission(ctx, GetFilter{Category: np.Category, Action: np.Action})
		if err == nil {
			continue
		}
		if errors.Cause(err) != ErrNotFound {
			return created, errors.Wrapf(err, "finding permission %s:%s", np.Category, np.Action)
		}
		if _, err := svc.Create(ctx, np); err != nil {
			return created, errors.Wrapf(err, "creating permission %s:%s", np.Category, np.Action)
		}
		created++
	}
	svc.logger.Info("permission catalog seeded", map[string]interface{}{"created": created})
	return created, nil
}
