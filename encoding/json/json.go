// Package json wraps encoding/json and adds readable positions to decoding
// errors.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}

// NewEncoder returns an encoder that writes one JSON value per line.
func NewEncoder(w io.Writer) *json.Encoder {
	return json.NewEncoder(w)
}

// Unmarshal decodes data into v. Syntax and type errors are annotated with the
// line and the column where they occured.
func Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return FormatError(data, err)
	}

	return nil
}

// FormatError annotates errors from Unmarshal with the position in the input.
func FormatError(input []byte, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, column, ok := position(input, syntaxErr.Offset)
		if !ok {
			return err
		}

		return fmt.Errorf("syntax error at line %d, column %d: %w", line, column, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, column, ok := position(input, typeErr.Offset)
		if !ok {
			return err
		}

		return fmt.Errorf("expected %s for '%s' at line %d, column %d: %w", typeErr.Type.String(), typeErr.Field, line, column, err)
	}

	return err
}

func position(input []byte, offset int64) (int, int, bool) {
	if offset < 0 || offset > int64(len(input)) {
		return 0, 0, false
	}

	before := input[:offset]
	line := bytes.Count(before, []byte{'\n'}) + 1
	column := int(offset) - bytes.LastIndexByte(before, '\n')

	return line, column, true
}
