package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "relay.json")

	s, err := NewJSON(path, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"chunk_size": 60000`)

	cfg := s.Get()
	require.Equal(t, ":1935", cfg.RTMP.Address)
}

func TestNewJSONKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")

	err := os.WriteFile(path, []byte(`{"version": 1, "id": "abc", "rtmp": {"upstream": "rtmp://origin"}}`), 0644)
	require.NoError(t, err)

	s, err := NewJSON(path, nil)
	require.NoError(t, err)

	cfg := s.Get()
	require.Equal(t, "abc", cfg.ID)
	require.Equal(t, "rtmp://origin", cfg.RTMP.Upstream)
	require.Equal(t, ":1935", cfg.RTMP.Address)
}

func TestNewJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")

	err := os.WriteFile(path, []byte("{\n\"version\": 1,\n\"id\": }"), 0644)
	require.NoError(t, err)

	_, err = NewJSON(path, nil)
	require.ErrorContains(t, err, "line 3")

	err = os.WriteFile(path, []byte(`{"version": 3}`), 0644)
	require.NoError(t, err)

	_, err = NewJSON(path, nil)
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")

	s, err := NewJSON(path, nil)
	require.NoError(t, err)

	cfg := s.Get()
	cfg.RTMP.ChunkSize = 0

	require.Error(t, s.Set(cfg))

	cfg.RTMP.ChunkSize = 4096
	require.NoError(t, s.Set(cfg))

	s, err = NewJSON(path, nil)
	require.NoError(t, err)
	require.Equal(t, 4096, s.Get().RTMP.ChunkSize)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestActive(t *testing.T) {
	s, err := NewJSON(filepath.Join(t.TempDir(), "relay.json"), nil)
	require.NoError(t, err)

	cfg := s.Get()
	cfg.RTMP.Upstream = "rtmp://origin"

	require.NoError(t, s.SetActive(cfg))
	require.Equal(t, "rtmp://origin", s.GetActive().RTMP.Upstream)
	require.Equal(t, "", s.Get().RTMP.Upstream)
}

func TestReload(t *testing.T) {
	reloaded := false

	s, err := NewJSON(filepath.Join(t.TempDir(), "relay.json"), func() {
		reloaded = true
	})
	require.NoError(t, err)

	require.NoError(t, s.Reload())
	require.True(t, reloaded)
}

func TestSetInvalidNamesVariable(t *testing.T) {
	s := NewDummy()

	cfg := s.Get()
	cfg.RTMP.ChunkSize = 0

	err := s.Set(cfg)
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorContains(t, err, "rtmp.chunk_size")

	err = s.SetActive(cfg)
	require.ErrorIs(t, err, ErrInvalid)

	require.NotEqual(t, 0, s.Get().RTMP.ChunkSize)
	require.NotEqual(t, 0, s.GetActive().RTMP.ChunkSize)
}

func TestCheckVersion(t *testing.T) {
	require.NoError(t, checkVersion(nil))
	require.NoError(t, checkVersion([]byte(`{"version": 1}`)))
	require.ErrorContains(t, checkVersion([]byte(`{"version": 2}`)), "version 2")
	require.Error(t, checkVersion([]byte(`{"version": "1"}`)))
}
