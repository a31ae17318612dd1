package json

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatSyntaxError(t *testing.T) {
	data := []byte("{\n  \"a\": 1,\n  \"b\": ,\n}")

	var v map[string]int
	err := Unmarshal(data, &v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}

func TestFormatTypeError(t *testing.T) {
	data := []byte("{\n  \"a\": \"x\"\n}")

	var v struct {
		A int `json:"a"`
	}

	err := Unmarshal(data, &v)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected int for 'a' at line 2")
}
