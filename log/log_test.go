package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "DEBUG", Ldebug.String())
	assert.Equal(t, "ERROR", Lerror.String())
	assert.Equal(t, "WARN", Lwarn.String())
	assert.Equal(t, "INFO", Linfo.String())
	assert.Equal(t, "SILENT", Lsilent.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	require.Equal(t, Lwarn, level)

	level, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	require.Equal(t, Ldebug, level)

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}

func TestLevels(t *testing.T) {
	// number of lines written for debug, info, warn, error
	tests := map[Level]int{
		Lsilent: 0,
		Lerror:  1,
		Lwarn:   2,
		Linfo:   3,
		Ldebug:  4,
	}

	for level, lines := range tests {
		buffer := bytes.Buffer{}
		logger := New("test").WithOutput(NewConsoleWriter(&buffer, level, false))

		logger.Debug().Log("debug")
		logger.Info().Log("info")
		logger.Warn().Log("warn")
		logger.Error().Log("error")

		assert.Equal(t, lines, bytes.Count(buffer.Bytes(), []byte("\n")), level.String())
	}
}

func TestLogWithoutLevel(t *testing.T) {
	buffer := bytes.Buffer{}
	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Ldebug, false))

	logger.Log("no level")
	require.Contains(t, buffer.String(), "level=DEBUG")
}

func TestLogComponent(t *testing.T) {
	buffer := bytes.Buffer{}
	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Linfo, false))

	logger.Info().Log("info")
	require.Contains(t, buffer.String(), `component="test"`)

	buffer.Reset()

	logger.WithComponent("RTMP").Info().Log("info")
	require.Contains(t, buffer.String(), `component="RTMP"`)
}

func TestLogFields(t *testing.T) {
	buffer := bytes.Buffer{}
	logger := New("test").WithOutput(NewConsoleWriter(&buffer, Linfo, false))

	base := logger.WithField("client", "127.0.0.1:4711")
	base.WithFields(Fields{"path": "/live/test", "who": "PUBLISH"}).WithError(errors.New("boom")).Info().Log("hello %s", "world")

	line := buffer.String()
	require.Contains(t, line, `msg="hello world"`)
	require.Contains(t, line, `client="127.0.0.1:4711"`)
	require.Contains(t, line, `path="/live/test"`)
	require.Contains(t, line, `who="PUBLISH"`)
	require.Contains(t, line, `error="boom"`)

	buffer.Reset()

	// fields don't leak into the parent
	base.Info().Log("second")
	require.NotContains(t, buffer.String(), "path=")

	buffer.Reset()

	logger.WithField("fn", func() {}).Info().Log("func")
	require.Contains(t, buffer.String(), `fn="<func>"`)
}

func TestLogCaller(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)
	logger := New("test").WithOutput(buffer)

	logger.Info().Log("here")

	events := buffer.Events()
	require.Len(t, events, 1)
	require.Contains(t, events[0].Caller, "log_test.go")
}

func TestLogWrite(t *testing.T) {
	buffer := NewBufferWriter(Ldebug, 10)
	logger := New("test").WithOutput(buffer)

	n, err := logger.Info().Write([]byte("line\n"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	events := buffer.Events()
	require.Len(t, events, 1)
	require.Equal(t, "line", events[0].Message)
	require.Equal(t, Linfo, events[0].Level)
}

func TestLogNoOutput(t *testing.T) {
	logger := New("test")

	require.NotPanics(t, func() {
		logger.Info().Log("nowhere")
		logger.Close()
	})
}
