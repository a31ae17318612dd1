package util

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/datarhei/relay/encoding/json"

	"github.com/labstack/echo/v4"
)

// ShouldBindJSON binds the body data of the request to the given object. An error is
// returned if the body data is not valid JSON or the validation of the unmarshalled
// data failed.
func ShouldBindJSON(c echo.Context, obj interface{}) error {
	body, err := ReadJSON(c)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, obj); err != nil {
		return err
	}

	return c.Validate(obj)
}

// ReadJSON returns the body of the request if it is JSON.
func ReadJSON(c echo.Context) ([]byte, error) {
	req := c.Request()

	if req.ContentLength == 0 {
		return nil, fmt.Errorf("request doesn't contain any content")
	}

	ctype := req.Header.Get(echo.HeaderContentType)

	if !strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		return nil, fmt.Errorf("request doesn't contain JSON content")
	}

	return io.ReadAll(req.Body)
}

func PathParam(c echo.Context, name string) string {
	param, err := url.PathUnescape(c.Param(name))
	if err != nil {
		return ""
	}

	return param
}

func DefaultQuery(c echo.Context, name, defValue string) string {
	param := c.QueryParam(name)

	if len(param) == 0 {
		return defValue
	}

	return param
}
