package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/school"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
)

var (
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errInvalidSignature     = echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")

	msgPermissionDenied = "permission denied"
	msgPlanChanged      = "plan changed, please retry"
	msgUnavailable      = "service temporarily unavailable"
	msgUpgradeRequired  = "upgrade required"
)

// UpgradeResponse is the body of 402 responses.
type UpgradeResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Feature string `json:"feature,omitempty"`
	Limit   string `json:"limit,omitempty"`
}

func isNotFound(err error) bool {
	switch errors.Cause(err) {
	case user.ErrNotFound, school.ErrNotFound, plan.ErrNotFound, subscription.ErrNotFound, permission.ErrNotFound:
		return true
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		logWithUser := func(msg string) {
			var usr user.User
			if u, ok := ctx.Get(userContextKey).(user.User); ok {
				usr = u
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)
		}

		var upgrade *core.UpgradeRequiredError
		switch {
		case errors.As(err, &upgrade):
			code = http.StatusPaymentRequired
			message = UpgradeResponse{Error: msgUpgradeRequired, Reason: upgrade.Reason, Feature: upgrade.Feature, Limit: upgrade.Limit}
		case errors.Is(err, core.ErrNoActiveSubscription):
			code = http.StatusPaymentRequired
			message = UpgradeResponse{Error: msgUpgradeRequired, Reason: core.UpgradeReasonNoSubscription}
		case errors.Is(err, core.ErrUnauthenticated):
			code = http.StatusUnauthorized
			message = core.ErrUnauthenticated.Error()
		case errors.Is(err, core.ErrInsufficientPermission), errors.Is(err, core.ErrCrossTenantAccess):
			code = http.StatusForbidden
			message = msgPermissionDenied
		case errors.Is(err, user.ErrInvalidRole):
			// corrupt data: never fall back to a default role
			logWithUser("invalid role")
			code = http.StatusForbidden
			message = msgPermissionDenied
		case errors.Is(err, core.ErrUnknownFeature), errors.Is(err, core.ErrUnknownLimit):
			if ctx.Echo().Debug {
				code = http.StatusInternalServerError
				message = err.Error()
				break
			}
			logWithUser("unknown entitlement name")
			code = http.StatusForbidden
			message = msgPermissionDenied
		case errors.Is(err, core.ErrConcurrentModification):
			code = http.StatusConflict
			message = msgPlanChanged
		case errors.Is(err, subscription.ErrExists):
			code = http.StatusConflict
			message = subscription.ErrExists.Error()
		case errors.Is(err, plan.ErrPlanInactive):
			code = http.StatusBadRequest
			message = plan.ErrPlanInactive.Error()
		case core.IsUnavailable(err):
			logWithUser(msgUnavailable)
			code = http.StatusServiceUnavailable
			message = msgUnavailable
		case isNotFound(err):
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		default:
			code, message = handleGenericError(err, translator)
			if code == http.StatusInternalServerError {
				logWithUser(http.StatusText(code))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if code == http.StatusInternalServerError && ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func handleGenericError(err error, translator ut.Translator) (int, interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	}
	// any other error is a server error
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
