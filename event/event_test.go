package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPubSub(t *testing.T) {
	p := NewPubSub()
	defer p.Close()

	a, cancelA := p.Subscribe()
	b, cancelB := p.Subscribe()
	defer cancelB()

	require.NoError(t, p.Publish(NewStreamEvent(ActionPublishStart, "/live/test", "127.0.0.1:1234")))

	for _, c := range []<-chan Event{a, b} {
		select {
		case e := <-c:
			se, ok := e.(*StreamEvent)
			require.True(t, ok)
			require.Equal(t, "publish.start", se.Action)
			require.Equal(t, "/live/test", se.Path)
		case <-time.After(time.Second):
			require.Fail(t, "no event")
		}
	}

	cancelA()
	cancelA()

	_, ok := <-a
	require.False(t, ok)
}

func TestPubSubClosed(t *testing.T) {
	p := NewPubSub()

	c, _ := p.Subscribe()
	p.Close()

	_, ok := <-c
	require.False(t, ok)

	require.ErrorIs(t, p.Publish(NewStreamEvent(ActionPlayStop, "/live/test", "")), ErrClosed)
}

func TestStreamEventClone(t *testing.T) {
	e := NewStreamEvent(ActionPlayStart, "/live/test", "client")
	c := e.Clone().(*StreamEvent)

	require.Equal(t, e, c)
	require.NotSame(t, e, c)
	require.Equal(t, "Play.start", c.Action)
}
