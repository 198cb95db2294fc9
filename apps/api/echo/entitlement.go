package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
)

// usageRoles maps the reported limits to the role they count.
var usageRoles = []struct {
	limit plan.LimitName
	role  user.Role
}{
	{plan.LimitMaxStudents, user.RoleStudent},
	{plan.LimitMaxTeachers, user.RoleTeacher},
}

type (
	LimitUsage struct {
		Limit      plan.Limit `json:"limit"`
		Usage      int64      `json:"usage"`
		OverLimit  bool       `json:"over_limit"`
		Percentage float64    `json:"percentage"`
	}

	UsageResponse struct {
		SchoolID string                       `json:"school_id"`
		PlanName string                       `json:"plan_name,omitempty"`
		Status   string                       `json:"status"`
		Usage    map[plan.LimitName]LimitUsage `json:"usage"`
	}
)

type entitlementApi struct {
	subscriptions *subscription.Service
	users         *user.Service
}

func registerEntitlementAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	gt *gate,
	subscriptions *subscription.Service,
	users *user.Service,
) {
	api := entitlementApi{
		subscriptions: subscriptions,
		users:         users,
	}

	eg := g.Group("/entitlement/:schoolId", jwt, gt.requireTenant("schoolId"))
	eg.GET("", api.retrieve)
	eg.GET("/usage", api.usage)
}

// resolve returns the school's entitlement, or the restricted one flagged as no_active_subscription.
func (api *entitlementApi) resolve(ctx echo.Context) (plan.Entitlement, error) {
	return api.subscriptions.ResolveOrRestricted(ctx.Request().Context(), ctx.Param("schoolId"))
}

// Handlers

func (api *entitlementApi) retrieve(ctx echo.Context) error {
	ent, err := api.resolve(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ent)
}

func (api *entitlementApi) usage(ctx echo.Context) error {
	ent, err := api.resolve(ctx)
	if err != nil {
		return err
	}

	resp := UsageResponse{
		SchoolID: ent.SchoolID,
		PlanName: ent.PlanName,
		Status:   ent.Status,
		Usage:    make(map[plan.LimitName]LimitUsage, len(usageRoles)),
	}
	for _, ur := range usageRoles {
		count, err := api.users.CountByRole(ctx.Request().Context(), ent.SchoolID, ur.role)
		if err != nil {
			return errors.Wrapf(err, "counting %s users", ur.role)
		}
		over, err := plan.IsOverLimit(ent, ur.limit, count)
		if err != nil {
			return err
		}
		pct, err := plan.UsagePercentage(ent, ur.limit, count)
		if err != nil {
			return err
		}
		limit, _ := ent.Limits.Get(ur.limit)
		resp.Usage[ur.limit] = LimitUsage{Limit: limit, Usage: count, OverLimit: over, Percentage: pct}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// registerMessageAPI exposes a messaging check endpoint, gated by the messaging feature.
func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, gt *gate) {
	mg := g.Group("/messages", jwt, gt.requireFeature(plan.FeatureMessaging))
	mg.GET("/ping", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: "pong"})
	}, gt.requirePermission(permission.CategoryMessages, permission.ActionRead))
}
