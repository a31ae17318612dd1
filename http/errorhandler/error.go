// Package errorhandler renders handler errors as api.Error.
package errorhandler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/datarhei/relay/http/api"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler is a genral handler for echo handler errors
func HTTPErrorHandler(err error, c echo.Context) {
	var code int
	var details []string
	var message string

	var apierr api.Error
	var httperr *echo.HTTPError

	if errors.As(err, &apierr) {
		code = apierr.Code
		message = apierr.Message
		details = apierr.Details
	} else if errors.As(err, &httperr) {
		if inner, ok := httperr.Internal.(*echo.HTTPError); ok {
			httperr = inner
		}

		code = httperr.Code
		message = http.StatusText(httperr.Code)
		details = strings.Split(fmt.Sprintf("%v", httperr.Message), "\n")
	} else {
		code = http.StatusInternalServerError
		message = http.StatusText(http.StatusInternalServerError)
		details = strings.Split(err.Error(), "\n")
	}

	if c.Response().Committed {
		return
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(code)
		return
	}

	c.JSON(code, api.Error{
		Code:    code,
		Message: message,
		Details: details,
	})
}
