// Package validator validates request bodies for the echo router and reports
// failed fields by their JSON path.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type jsonValidator struct {
	validator *validator.Validate
}

// New returns a validator for the echo router. Field names in errors are
// taken from the json tags, e.g. "rtmp.chunk_size".
func New() echo.Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return &jsonValidator{
		validator: v,
	}
}

func (cv *jsonValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))

	for _, e := range verrs {
		rule := e.Tag()
		if len(e.Param()) != 0 {
			rule += "=" + e.Param()
		}

		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", jsonPath(e.Namespace()), rule))
	}

	return errors.New(strings.Join(msgs, "; "))
}

// jsonPath drops the name of the top level type and of embedded structs
// from a namespace. These are the only elements that don't have a json name.
func jsonPath(namespace string) string {
	elements := strings.Split(namespace, ".")
	if len(elements) > 0 {
		elements = elements[1:]
	}

	path := elements[:0]

	for _, e := range elements {
		if len(e) != 0 && unicode.IsUpper(rune(e[0])) {
			continue
		}

		path = append(path, e)
	}

	return strings.Join(path, ".")
}
