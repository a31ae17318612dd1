package glob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatterns(t *testing.T) {
	ok, err := Match("live/*", "live/stream", '/')
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match("live*", "live/stream", '/')
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = Match("{live,test}", "test", '/')
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Match("**", "live/stream", '/')
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Match("[abc", "a")
	require.Error(t, err)
}

func TestList(t *testing.T) {
	list, err := NewList(nil)
	require.NoError(t, err)
	require.True(t, list.Allow("anything"))

	list, err = NewList([]string{"live", "event-*"})
	require.NoError(t, err)
	require.Equal(t, []string{"live", "event-*"}, list.Patterns())

	require.True(t, list.Allow("live"))
	require.True(t, list.Allow("event-42"))
	require.False(t, list.Allow("vod"))
	require.False(t, list.Allow("event-42/sub"))

	_, err = NewList([]string{"live", "[abc"})
	require.Error(t, err)
}

func TestMustCompile(t *testing.T) {
	require.Panics(t, func() {
		MustCompile("[abc")
	})

	g := MustCompile("live")
	require.Equal(t, "live", g.String())
	require.True(t, g.Match("live"))
}
