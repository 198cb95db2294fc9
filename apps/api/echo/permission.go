package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
)

type permissionApi struct {
	gate     *gate
	svc      *permission.Service
	validate *validator.Validate
}

func registerPermissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	gt *gate,
	svc *permission.Service,
	validate *validator.Validate,
) {
	api := permissionApi{
		gate:     gt,
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/permissions", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, gt.superAdminOnly)

	// grants
	ug := g.Group("/users/:id/permissions", jwt)
	read := gt.requirePermission(permission.CategoryPermissions, permission.ActionRead)
	manage := gt.requirePermission(permission.CategoryPermissions, permission.ActionManage)
	ug.GET("", api.queryUserPermissions, read, gt.userObject)
	ug.POST("", api.grant, manage, gt.userObject)
	ug.DELETE("/:permissionId", api.revoke, manage, gt.userObject)

	g.GET("/authorization/:userId", api.authorization, jwt)
}

// Handlers

func (api *permissionApi) query(ctx echo.Context) error {
	perms, err := api.svc.Query(ctx.Request().Context(), ctx.QueryParam("category"))
	if err != nil {
		return errors.Wrap(err, "querying permissions")
	}
	if perms == nil {
		perms = []permission.Permission{}
	}
	return ctx.JSON(http.StatusOK, perms)
}

func (api *permissionApi) create(ctx echo.Context) error {
	var data permission.NewPermission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPermission")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	perm, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating permission")
	}
	return ctx.JSON(http.StatusCreated, perm)
}

func (api *permissionApi) queryUserPermissions(ctx echo.Context) error {
	usr, err := contextObjectUser(ctx)
	if err != nil {
		return err
	}
	perms, err := api.svc.UserPermissions(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying user permissions")
	}
	if perms == nil {
		perms = []permission.Permission{}
	}
	return ctx.JSON(http.StatusOK, perms)
}

func (api *permissionApi) grant(ctx echo.Context) error {
	usr, err := contextObjectUser(ctx)
	if err != nil {
		return err
	}

	var data permission.GrantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrantRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ctxUsr, err := api.gate.contextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID || !ctxUsr.CanManage(usr.Role) {
		return core.ErrInsufficientPermission
	}

	perm, err := api.svc.Grant(ctx.Request().Context(), usr, data.PermissionID)
	if err != nil {
		if errors.Cause(err) == permission.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "permission_id", Error: err.Error()})
		}
		return errors.Wrap(err, "granting permission")
	}
	return ctx.JSON(http.StatusCreated, perm)
}

func (api *permissionApi) revoke(ctx echo.Context) error {
	usr, err := contextObjectUser(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := api.gate.contextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID || !ctxUsr.CanManage(usr.Role) {
		return core.ErrInsufficientPermission
	}

	if err := api.svc.Revoke(ctx.Request().Context(), usr, ctx.Param("permissionId")); err != nil {
		return errors.Wrap(err, "revoking permission")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// authorization returns the effective permissions of a user, for clients to hide what they cannot do.
// Users see their own; admins see those of their school's users.
func (api *permissionApi) authorization(ctx echo.Context) error {
	ctxUsr, err := api.gate.contextUser(ctx)
	if err != nil {
		return err
	}

	usr := ctxUsr
	if id := ctx.Param("userId"); id != ctxUsr.ID {
		if !ctxUsr.IsAdmin() {
			return core.ErrInsufficientPermission
		}
		if usr, err = api.gate.tenantUser(ctx, ctxUsr, id); err != nil {
			return err
		}
	}

	access, err := api.svc.EffectivePermissions(ctx.Request().Context(), &usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, access)
}
