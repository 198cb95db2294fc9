package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
)

type schoolApi struct {
	gate          *gate
	svc           *school.Service
	subscriptions *subscription.Service
	validate      *validator.Validate
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	gt *gate,
	svc *school.Service,
	subscriptions *subscription.Service,
	validate *validator.Validate,
) {
	api := schoolApi{
		gate:          gt,
		svc:           svc,
		subscriptions: subscriptions,
		validate:      validate,
	}

	sg := g.Group("/schools", jwt)
	sg.POST("", api.onboard, gt.superAdminOnly)
	sg.GET("", api.query, gt.superAdminOnly)

	dg := sg.Group("/:schoolId", gt.requireTenant("schoolId"))
	dg.GET("", api.retrieve)
	dg.PUT("/active", api.setActive, gt.superAdminOnly)
	dg.GET("/subscription", api.subscription,
		gt.requirePermission(permission.CategorySubscriptions, permission.ActionRead))
	dg.POST("/subscription/upgrade", api.upgrade,
		gt.requirePermission(permission.CategorySubscriptions, permission.ActionManage))
}

// Handlers

func (api *schoolApi) onboard(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	s, err := api.svc.Onboard(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "onboarding school")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *schoolApi) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.School{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) setActive(ctx echo.Context) error {
	var data school.ActivationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivationRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return err
	}
	if s, err = api.svc.SetActive(ctx.Request().Context(), s, *data.IsActive); err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) subscription(ctx echo.Context) error {
	sub, err := api.subscriptions.Get(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *schoolApi) upgrade(ctx echo.Context) error {
	var data subscription.UpgradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpgradeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	// a conflict lost twice surfaces as 409
	sub, err := api.subscriptions.Upgrade(ctx.Request().Context(), ctx.Param("schoolId"), data.PlanID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
