package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/announcement"
	"github.com/trezcool/agape/core/billing"
	"github.com/trezcool/agape/core/enrollment"
	"github.com/trezcool/agape/core/expense"
	"github.com/trezcool/agape/core/grade"
	"github.com/trezcool/agape/core/portal"
	"github.com/trezcool/agape/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidWebhookToken  = echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")

	notFoundErrs = []error{
		user.ErrNotFound,
		enrollment.ErrStudentNotFound,
		enrollment.ErrGuardianNotFound,
		billing.ErrNotFound,
		billing.ErrNotDelinquent,
		expense.ErrNotFound,
		grade.ErrNotFound,
		announcement.ErrNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			httpErr *echo.HTTPError
			vErrs   validator.ValidationErrors
			appVErr *core.ValidationError
			gwErr   *billing.GatewayError
		)

		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &appVErr):
			code = http.StatusBadRequest
			message = validationMessage(appVErr, translator)
		case errors.As(err, &vErrs):
			code = http.StatusBadRequest
			message = fieldErrors(vErrs, translator)
		case errors.As(err, &gwErr):
			code = http.StatusBadGateway
			message = gwErr.Message
		case errors.Is(err, portal.ErrTooManyAttempts):
			code = http.StatusTooManyRequests
			message = portal.ErrTooManyAttempts.Error()
		case errors.Is(err, portal.ErrInvalidCredentials):
			code = http.StatusUnauthorized
			message = portal.ErrInvalidCredentials.Error()
		default:
			if nfErr := notFound(err); nfErr != nil {
				code = http.StatusNotFound
				message = nfErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
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

func notFound(err error) error {
	for _, nfErr := range notFoundErrs {
		if errors.Is(err, nfErr) {
			return nfErr
		}
	}
	return nil
}

func fieldErrors(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}

// validationMessage renders a *core.ValidationError as field messages when it has any, else as a plain message.
func validationMessage(vErr *core.ValidationError, translator ut.Translator) interface{} {
	if len(vErr.Fields) > 0 {
		fldErrs := make(map[string]string, len(vErr.Fields))
		for _, fErr := range vErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
		return fldErrs
	}
	var vErrs validator.ValidationErrors
	if errors.As(vErr.Err, &vErrs) {
		return fieldErrors(vErrs, translator)
	}
	return vErr.Error()
}

// errorText is the plain message an endpoint answering `{success:false,error}` shows for err.
func errorText(err error, translator ut.Translator) string {
	var (
		appVErr *core.ValidationError
		vErrs   validator.ValidationErrors
		gwErr   *billing.GatewayError
	)
	switch {
	case errors.As(err, &appVErr):
		if len(appVErr.Fields) > 0 {
			return appVErr.Fields[0].Error
		}
		if errors.As(appVErr.Err, &vErrs) && len(vErrs) > 0 {
			return vErrs[0].Field() + ": " + vErrs[0].Translate(translator)
		}
		return appVErr.Error()
	case errors.As(err, &vErrs):
		return vErrs[0].Field() + ": " + vErrs[0].Translate(translator)
	case errors.As(err, &gwErr):
		return gwErr.Message
	}
	return err.Error()
}

func isValidatorError(err error) bool {
	var vErrs validator.ValidationErrors
	return errors.As(err, &vErrs)
}
