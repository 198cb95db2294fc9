package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	"github.com/koneum/eduwaly/services/metrics"
)

// gate holds the access checks shared by the API groups.
// Every check must run behind the JWT middleware.
type gate struct {
	conf   *core.Config
	logger core.Logger
	users  *user.Service
	perms  *permission.Service
	subs   *subscription.Service
}

func (g *gate) contextUser(ctx echo.Context) (user.User, error) {
	return getContextUser(ctx, g.users)
}

// contextEntitlement resolves the school's entitlement at most once per request.
func (g *gate) contextEntitlement(ctx echo.Context, schoolID string) (plan.Entitlement, error) {
	if ent, ok := ctx.Get(entitlementContextKey).(plan.Entitlement); ok && ent.SchoolID == schoolID {
		return ent, nil
	}
	ent, err := g.subs.Resolve(ctx.Request().Context(), schoolID)
	if err != nil {
		return plan.Entitlement{}, err
	}
	ctx.Set(entitlementContextKey, ent)
	return ent, nil
}

// authorize fails with core.ErrInsufficientPermission when the context user may not do action in category.
func (g *gate) authorize(ctx echo.Context, category, action string) error {
	usr, err := g.contextUser(ctx)
	if err != nil {
		return err
	}
	err = g.perms.Authorize(ctx.Request().Context(), &usr, category, action)
	if err == nil || errors.Is(err, core.ErrInsufficientPermission) {
		metrics.Decision("permission", err == nil)
	}
	return err
}

func (g *gate) requirePermission(category, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := g.authorize(ctx, category, action); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// requireFeature refuses the request with an upgrade prompt when the school's plan lacks feature.
// The school is the :schoolId param, or the context user's school.
// Platform operators acting outside a school are not gated.
func (g *gate) requireFeature(feature plan.Feature) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := g.contextUser(ctx)
			if err != nil {
				return err
			}
			schoolID := ctx.Param("schoolId")
			if schoolID == "" {
				schoolID = usr.SchoolID
			}
			if schoolID == "" && usr.IsSuperAdmin() {
				return next(ctx)
			}

			ent, err := g.contextEntitlement(ctx, schoolID)
			if err != nil {
				return err
			}
			enabled, err := plan.HasFeature(ent, feature)
			if err != nil {
				return err
			}
			metrics.Decision("feature", enabled)
			if !enabled {
				return core.NewUpgradeRequiredError(core.UpgradeReasonFeature, string(feature), "")
			}
			return next(ctx)
		}
	}
}

// requireTenant guards routes scoped to the school named by param.
func (g *gate) requireTenant(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := g.contextUser(ctx)
			if err != nil {
				return err
			}
			err = permission.CheckTenant(usr, ctx.Param(param))
			metrics.Decision("tenant", err == nil)
			if err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func (g *gate) superAdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := g.contextUser(ctx)
		if err != nil {
			return err
		}
		if !usr.IsSuperAdmin() {
			return core.ErrInsufficientPermission
		}
		return next(ctx)
	}
}

// tenantUser loads the user id on behalf of ctxUsr, refusing users of other schools.
// Outside SUPER_ADMIN, an unknown id is refused the same way, so callers cannot tell whether an id exists.
func (g *gate) tenantUser(ctx echo.Context, ctxUsr user.User, id string) (user.User, error) {
	usr, err := g.users.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound && !ctxUsr.IsSuperAdmin() {
			metrics.Decision("tenant", false)
			return user.User{}, core.ErrCrossTenantAccess
		}
		return user.User{}, err
	}
	err = permission.CheckTenant(ctxUsr, usr.SchoolID)
	metrics.Decision("tenant", err == nil)
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// userObject loads the :id user into the context, refusing users of other schools.
func (g *gate) userObject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := g.contextUser(ctx)
		if err != nil {
			return err
		}
		usr, err := g.tenantUser(ctx, ctxUsr, ctx.Param("id"))
		if err != nil {
			return err
		}
		ctx.Set(objectContextKey, usr)
		return next(ctx)
	}
}

// metricsMiddleware counts requests by route and final status.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		path := ctx.Path()
		if path == "" {
			path = "unmatched"
		}
		method := ctx.Request().Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Response().Status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return nil
	}
}
