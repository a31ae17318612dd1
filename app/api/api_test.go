package api

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *api {
	t.Setenv("RELAY_ADDRESS", "localhost:0")
	t.Setenv("RELAY_RTMP_ADDRESS", "127.0.0.1:0")
	t.Setenv("RELAY_DEBUG_AUTO_MAX_PROCS", "false")

	configfile := filepath.Join(t.TempDir(), "config.json")

	a, err := New(configfile, io.Discard)
	require.NoError(t, err)

	require.FileExists(t, configfile)

	return a.(*api)
}

func (a *api) getState() string {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.state
}

func TestNewInvalidConfig(t *testing.T) {
	t.Setenv("RELAY_RTMP_CHUNK_SIZE", "0")

	_, err := New(filepath.Join(t.TempDir(), "config.json"), io.Discard)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	a := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- a.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return a.getState() == "running"
	}, 5*time.Second, 10*time.Millisecond)

	require.Error(t, a.Reload())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "Start didn't return")
	}

	a.Stop()
	require.Equal(t, "idle", a.getState())

	a.Destroy()
}

func TestConfigReload(t *testing.T) {
	a := newTestAPI(t)

	done := make(chan error, 1)
	go func() {
		done <- a.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return a.getState() == "running"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, a.config.store.Reload())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrConfigReload)
	case <-time.After(5 * time.Second):
		require.Fail(t, "Start didn't return")
	}

	a.Stop()

	require.NoError(t, a.Reload())

	a.Destroy()
}
