// Package mock provides helpers for testing the HTTP handlers.
package mock

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/http/errorhandler"
	"github.com/datarhei/relay/http/validator"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// DummyEcho returns a router configured like the one of the API server.
func DummyEcho() *echo.Echo {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	router.Logger.SetOutput(io.Discard)
	router.Validator = validator.New()

	return router
}

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Raw     []byte
	Data    interface{}
}

// Request sends a request to the handler and requires the given status code
// for the response. A JSON body is decoded into Data.
func Request(t require.TestingT, httpstatus int, handler http.Handler, method, path string, data io.Reader) *Response {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, data)
	if data != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	handler.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	response := &Response{
		Code: res.StatusCode,
		Raw:  body,
	}

	if strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		err := json.Unmarshal(body, &response.Data)
		require.NoError(t, err)

		if m, ok := response.Data.(map[string]interface{}); ok && response.Code != http.StatusOK {
			response.Message, _ = m["message"].(string)
		}
	} else {
		response.Data = body
	}

	require.Equal(t, httpstatus, response.Code, string(response.Raw))

	return response
}

// Validate requires that data conforms to the JSON schema of datatype.
func Validate(t require.TestingT, datatype, data interface{}) bool {
	schema, err := jsonschema.Reflect(datatype).MarshalJSON()
	require.NoError(t, err)

	schemaLoader := gojsonschema.NewStringLoader(string(schema))
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	require.NoError(t, err)
	require.True(t, result.Valid(), result.Errors())

	return true
}

// Body returns the JSON encoding of v as request body.
func Body(t require.TestingT, v interface{}) io.Reader {
	data, err := json.Marshal(v)
	require.NoError(t, err)

	return bytes.NewReader(data)
}
