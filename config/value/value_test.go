package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntValue(t *testing.T) {
	var i int

	v := NewInt(&i, 42, 1, 100)
	require.Equal(t, "42", v.String())
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("101"))
	require.Equal(t, 101, i)
	require.Error(t, v.Validate())

	require.Error(t, v.Set("foo"))
	require.Equal(t, 101, i)
}

func TestStringListValue(t *testing.T) {
	var list []string

	v := NewStringList(&list, []string{"a"}, ",")
	require.Equal(t, "a", v.String())

	require.NoError(t, v.Set(" live , ,other"))
	require.Equal(t, []string{"live", "other"}, list)
	require.Equal(t, "live,other", v.String())

	require.NoError(t, v.Set(""))
	require.True(t, v.IsEmpty())
	require.Equal(t, "(empty)", v.String())
}

func TestAddressValue(t *testing.T) {
	var addr string

	v := NewAddress(&addr, "")
	require.True(t, v.IsEmpty())
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("1935"))
	require.Equal(t, ":1935", addr)
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("localhost:rtmp"))
	require.Error(t, v.Validate())

	require.NoError(t, v.Set("localhost"))
	require.Error(t, v.Validate())
}

func TestMustAddressValue(t *testing.T) {
	var addr string

	v := NewMustAddress(&addr, ":1935")
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set(""))
	require.Error(t, v.Validate())

	require.NoError(t, v.Set("8080"))
	require.Equal(t, ":8080", addr)
}

func TestRTMPURLValue(t *testing.T) {
	var u string

	v := NewRTMPURL(&u, "")
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("rtmp://origin:1935/"))
	require.Equal(t, "rtmp://origin:1935", u)
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("http://origin:1935"))
	require.Error(t, v.Validate())

	require.NoError(t, v.Set("rtmp://origin/live"))
	require.Error(t, v.Validate())

	require.NoError(t, v.Set("rtmp:///"))
	require.Error(t, v.Validate())
}

func TestGlobListValue(t *testing.T) {
	var list []string

	v := NewGlobList(&list, []string{"live*"}, ",")
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("live,[abc"))
	require.Error(t, v.Validate())
}

func TestLogLevelValue(t *testing.T) {
	var level string

	v := NewLogLevel(&level, "info")
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("DEBUG"))
	require.Equal(t, "debug", level)
	require.NoError(t, v.Validate())

	require.NoError(t, v.Set("verbose"))
	require.Error(t, v.Validate())
}

func TestInt64Value(t *testing.T) {
	var i int64

	v := NewInt64(&i, -1)
	require.Error(t, v.Validate())

	require.NoError(t, v.Set("0x10"))
	require.Equal(t, int64(16), i)
	require.NoError(t, v.Validate())
}
