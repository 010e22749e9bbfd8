package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
)

var (
	errAccountDeactivated = core.NewAuthorizationError("account deactivated")
	errRefreshExpired     = core.NewAuthorizationError("refresh has expired")
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var kindStatus = map[string]int{
	core.KindValidation:    http.StatusBadRequest,
	core.KindAuthorization: http.StatusForbidden,
	core.KindNotFound:      http.StatusNotFound,
	core.KindConflict:      http.StatusConflict,
	core.KindDependency:    http.StatusServiceUnavailable,
	core.KindInternal:      http.StatusInternalServerError,
}

// httpErrorKind classifies the errors raised by echo itself (routing, binding, JWT middleware).
func httpErrorKind(code int) string {
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return core.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.KindAuthorization
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return core.KindNotFound
	default:
		return core.KindInternal
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp ErrorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				origErr = echo.NewHTTPError(http.StatusUnauthorized, origErr.Message)
			} else if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			resp.Error = httpErrorKind(code)
			if msg, ok := origErr.Message.(string); ok {
				resp.Message = msg
			} else {
				resp.Message = http.StatusText(code)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Error = core.KindValidation
			resp.Message = "invalid data"
			if origErr.Err != nil {
				resp.Message = origErr.Err.Error()
			}
			if len(origErr.Fields) > 0 {
				resp.Fields = origErr.FieldMap()
			}
		case *core.AuthorizationError:
			code = http.StatusForbidden
			if origErr.Reason == core.ReasonUnauthenticated {
				code = http.StatusUnauthorized
			}
			resp.Error = core.KindAuthorization
			resp.Message = origErr.Error()
		default:
			resp.Error = core.ErrorKind(err)
			code = kindStatus[resp.Error]
			resp.Message = errors.Cause(err).Error()

			switch resp.Error {
			case core.KindDependency:
				resp.Message = http.StatusText(http.StatusServiceUnavailable)
				logger.Error("dependency failure", err, getContextIdentity(ctx))
			case core.KindInternal:
				resp.Message = http.StatusText(http.StatusInternalServerError)
				if ctx.Echo().Debug {
					resp.Message = err.Error()
				}
				logger.Error(resp.Message, errors.Wrap(err, resp.Message), getContextIdentity(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
