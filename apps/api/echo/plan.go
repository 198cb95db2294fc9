package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core/plan"
)

type planApi struct {
	gate     *gate
	svc      *plan.Service
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, gt *gate, svc *plan.Service, validate *validator.Validate) {
	api := planApi{
		gate:     gt,
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/plans", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, gt.superAdminOnly)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, gt.superAdminOnly)
	pg.DELETE("/:id", api.deactivate, gt.superAdminOnly)
}

// Handlers

// query lists the active plans. SUPER_ADMIN may ask for inactive ones too with `?all=true`.
func (api *planApi) query(ctx echo.Context) error {
	ctxUsr, err := api.gate.contextUser(ctx)
	if err != nil {
		return err
	}
	all, _ := strconv.ParseBool(ctx.QueryParam("all"))

	plans, err := api.svc.Query(ctx.Request().Context(), all && ctxUsr.IsSuperAdmin())
	if err != nil {
		return errors.Wrap(err, "querying plans")
	}
	if plans == nil {
		plans = []plan.Plan{}
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) create(ctx echo.Context) error {
	var data plan.NewPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *planApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) update(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data plan.UpdatePlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate); err != nil {
		return err
	}

	p, err = api.svc.Update(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, p)
}

// deactivate hides the plan from new subscriptions; plans are never deleted.
func (api *planApi) deactivate(ctx echo.Context) error {
	p, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
