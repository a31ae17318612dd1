package http

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgstore "github.com/datarhei/relay/config/store"
	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/http/handler"
	"github.com/datarhei/relay/http/mock"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/prometheus"
	"github.com/datarhei/relay/rtmp"
	"github.com/datarhei/relay/session"

	"github.com/stretchr/testify/require"
)

type testRelay struct {
	server  Server
	rtmp    rtmp.Server
	rtmpURL string
	buffer  log.BufferWriter
	logger  log.Logger
}

func newTestRelay(t *testing.T) *testRelay {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	buffer := log.NewBufferWriter(log.Ldebug, 100)
	events := log.NewChannelWriter()
	logger := log.New("Test").WithOutput(log.NewMultiWriter(buffer, events))

	collector := session.NewCollector(session.CollectorConfig{ID: "rtmp"})
	t.Cleanup(collector.Stop)

	rtmpserver, err := rtmp.New(rtmp.Config{
		Logger:    logger.WithComponent("RTMP"),
		Collector: collector,
	})
	require.NoError(t, err)

	go rtmpserver.Serve(l)
	t.Cleanup(rtmpserver.Close)

	metrics := prometheus.New(false)
	metrics.Register(prometheus.NewUptimeCollector("test", time.Now()))
	metrics.Register(prometheus.NewRTMPCollector("test", rtmpserver))

	server, err := NewServer(Config{
		Logger:    logger.WithComponent("HTTP"),
		LogBuffer: buffer,
		LogEvents: events,
		RTMP:      rtmpserver,
		Collector: collector,
		Config:    cfgstore.NewDummy(),
		Metrics:   metrics,
	})
	require.NoError(t, err)

	return &testRelay{
		server:  server,
		rtmp:    rtmpserver,
		rtmpURL: "rtmp://" + l.Addr().String(),
		buffer:  buffer,
		logger:  logger,
	}
}

func (r *testRelay) publish(t *testing.T, path string) *rtmp.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := rtmp.Dial(ctx, r.rtmpURL+path, rtmp.ClientConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)

	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Publish())

	return client
}

func TestNewServerRequiresRTMP(t *testing.T) {
	_, err := NewServer(Config{Config: cfgstore.NewDummy()})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/ping", nil)
	require.Equal(t, []byte("pong"), response.Data)

	rec := httptest.NewRecorder()
	r.server.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(handler.HeaderRelayID))
}

func TestAbout(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api", nil)
	mock.Validate(t, &api.About{}, response.Data)

	about := api.About{}
	require.NoError(t, json.Unmarshal(response.Raw, &about))
	require.Equal(t, "datarhei-relay", about.App)
	require.NotEmpty(t, about.ID)
}

func TestRTMPStreams(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/rtmp", nil)
	require.Equal(t, []interface{}{}, response.Data)

	r.publish(t, "/live/stream")

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/rtmp", nil)
	mock.Validate(t, []api.RTMPStream{}, response.Data)

	streams := []api.RTMPStream{}
	require.NoError(t, json.Unmarshal(response.Raw, &streams))
	require.Len(t, streams, 1)
	require.Equal(t, "/live/stream", streams[0].Path)
	require.NotZero(t, streams[0].Publisher)

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/rtmp/live/stream", nil)
	mock.Validate(t, &api.RTMPStream{}, response.Data)

	response = mock.Request(t, http.StatusNotFound, r.server, "GET", "/api/v3/rtmp/live/other", nil)
	require.Equal(t, "Not Found", response.Message)

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/rtmp/stats", nil)
	mock.Validate(t, &api.RTMPStats{}, response.Data)

	stats := api.RTMPStats{}
	require.NoError(t, json.Unmarshal(response.Raw, &stats))
	require.Equal(t, uint64(1), stats.Connections)
	require.Equal(t, uint64(1), stats.Streams)
	require.Equal(t, uint64(1), stats.Publishers)

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/rtmp/connections", nil)

	connections := []api.RTMPConnection{}
	require.NoError(t, json.Unmarshal(response.Raw, &connections))
	require.Len(t, connections, 1)
	require.Equal(t, "/live/stream", connections[0].Path)
	require.Equal(t, "live", connections[0].App)
}

func TestSessions(t *testing.T) {
	r := newTestRelay(t)

	r.publish(t, "/live/stream")

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/session/active", nil)

	sessions := []api.Session{}
	require.NoError(t, json.Unmarshal(response.Raw, &sessions))
	require.Len(t, sessions, 1)
	require.Equal(t, "/live/stream", sessions[0].Reference)

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/session", nil)

	summary := api.SessionSummary{}
	require.NoError(t, json.Unmarshal(response.Raw, &summary))
	require.Equal(t, uint64(1), summary.CurrentSessions)
}

func TestLog(t *testing.T) {
	r := newTestRelay(t)

	r.logger.Info().WithField("path", "/live/stream").Log("hello")

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/log?format=raw", nil)

	events := []api.LogEvent{}
	require.NoError(t, json.Unmarshal(response.Raw, &events))

	found := false
	for _, e := range events {
		if e.Message == "hello" {
			require.Equal(t, "/live/stream", e.Data["path"])
			require.Equal(t, "INFO", e.Level)
			found = true
		}
	}
	require.True(t, found)

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/log", nil)
	require.Contains(t, string(response.Raw), "hello")
}

func TestConfig(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/config", nil)

	cfg := api.Config{}
	require.NoError(t, json.Unmarshal(response.Raw, &cfg))
	require.Equal(t, 60000, cfg.Config.RTMP.ChunkSize)

	mock.Request(t, http.StatusOK, r.server, "PUT", "/api/v3/config", strings.NewReader(`{"version": 1, "rtmp": {"chunk_size": 4096}}`))

	response = mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/config", nil)
	require.NoError(t, json.Unmarshal(response.Raw, &cfg))
	require.Equal(t, 4096, cfg.Config.RTMP.ChunkSize)
	require.Equal(t, ":1935", cfg.Config.RTMP.Address)

	mock.Request(t, http.StatusBadRequest, r.server, "PUT", "/api/v3/config", strings.NewReader(`{"version": 1, "rtmp": {"chunk_size": 70000}}`))
	mock.Request(t, http.StatusBadRequest, r.server, "PUT", "/api/v3/config", strings.NewReader(`{"version": 2}`))
	mock.Request(t, http.StatusBadRequest, r.server, "PUT", "/api/v3/config", strings.NewReader(`{"version": 1,`))

	response = mock.Request(t, http.StatusConflict, r.server, "PUT", "/api/v3/config", strings.NewReader(`{"version": 1, "address": ":1935"}`))

	errors := api.ConfigError{}
	require.NoError(t, json.Unmarshal(response.Raw, &errors))
	require.Contains(t, errors, "rtmp.address")
}

func TestConfigVariables(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/api/v3/config/variables", nil)

	variables := []api.ConfigVariable{}
	require.NoError(t, json.Unmarshal(response.Raw, &variables))

	names := map[string]string{}
	for _, v := range variables {
		names[v.Name] = v.EnvName
	}

	require.Equal(t, "RELAY_RTMP_ADDRESS", names["rtmp.address"])
	require.Equal(t, "RELAY_RTMP_UPSTREAM", names["rtmp.upstream"])
}

func TestMetrics(t *testing.T) {
	r := newTestRelay(t)

	response := mock.Request(t, http.StatusOK, r.server, "GET", "/metrics", nil)
	require.Contains(t, string(response.Raw), `relay_uptime_seconds{relay="test"}`)
	require.Contains(t, string(response.Raw), `relay_rtmp_connections{relay="test"} 0`)
}

func TestEvents(t *testing.T) {
	r := newTestRelay(t)

	ts := httptest.NewServer(r.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/v3/events?path=/live/*", nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	reader := bufio.NewReader(res.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "keepalive")

	r.publish(t, "/other/stream")
	r.publish(t, "/live/stream")

	line, err = reader.ReadString('\n')
	require.NoError(t, err)

	evt := api.StreamEvent{}
	require.NoError(t, json.Unmarshal([]byte(line), &evt))
	require.Equal(t, "publish.start", evt.Action)
	require.Equal(t, "/live/stream", evt.Path)
}

func TestEventsInvalidPattern(t *testing.T) {
	r := newTestRelay(t)

	mock.Request(t, http.StatusBadRequest, r.server, "GET", "/api/v3/events?path=[abc", nil)
}

func TestLogStream(t *testing.T) {
	r := newTestRelay(t)

	ts := httptest.NewServer(r.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/v3/log/stream?component=test", nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	reader := bufio.NewReader(res.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "keepalive")

	r.logger.WithComponent("Other").Info().Log("filtered")
	r.logger.Info().Log("streamed")

	line, err = reader.ReadString('\n')
	require.NoError(t, err)

	evt := api.LogEvent{}
	require.NoError(t, json.Unmarshal([]byte(line), &evt))
	require.Equal(t, "streamed", evt.Message)
	require.Equal(t, "Test", evt.Component)
}
