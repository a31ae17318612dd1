// Package http provides the HTTP API of the relay.
package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	cfgstore "github.com/datarhei/relay/config/store"
	"github.com/datarhei/relay/http/errorhandler"
	"github.com/datarhei/relay/http/handler"
	api "github.com/datarhei/relay/http/handler/api"
	"github.com/datarhei/relay/http/validator"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/prometheus"
	"github.com/datarhei/relay/psutil"
	"github.com/datarhei/relay/rtmp"
	"github.com/datarhei/relay/session"

	mwlog "github.com/datarhei/relay/http/middleware/log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	Logger    log.Logger
	LogBuffer log.BufferWriter
	LogEvents log.ChannelWriter
	RTMP      rtmp.Server
	Collector session.Collector
	Config    cfgstore.Store
	Metrics   prometheus.Reader
	PSUtil    psutil.Util
	StartedAt time.Time
}

type Server interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type server struct {
	logger log.Logger

	handler struct {
		about      *api.AboutHandler
		ping       *handler.PingHandler
		prometheus *handler.PrometheusHandler
	}

	v3handler struct {
		log     *api.LogHandler
		rtmp    *api.RTMPHandler
		session *api.SessionHandler
		config  *api.ConfigHandler
		events  *api.EventsHandler
	}

	router *echo.Echo
}

// NewServer returns the HTTP API. The RTMP server and the config store are
// required.
func NewServer(config Config) (Server, error) {
	if config.RTMP == nil {
		return nil, fmt.Errorf("no RTMP server provided")
	}

	if config.Config == nil {
		return nil, fmt.Errorf("no config store provided")
	}

	s := &server{
		logger: config.Logger,
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	if config.Collector == nil {
		config.Collector = session.NewNullCollector()
	}

	if config.StartedAt.IsZero() {
		config.StartedAt = time.Now()
	}

	cfg := config.Config.GetActive()

	s.handler.about = api.NewAbout(cfg.ID, cfg.Name, config.StartedAt, config.PSUtil)
	s.handler.ping = handler.NewPing(cfg.ID)

	if config.Metrics != nil {
		s.handler.prometheus = handler.NewPrometheus(config.Metrics, cfg.ID)
	}

	s.v3handler.log = api.NewLog(config.LogBuffer, config.LogEvents)
	s.v3handler.rtmp = api.NewRTMP(config.RTMP)
	s.v3handler.session = api.NewSession(config.Collector)
	s.v3handler.config = api.NewConfig(config.Config)
	s.v3handler.events = api.NewEvents(config.RTMP)

	s.router = echo.New()
	s.router.HTTPErrorHandler = errorhandler.HTTPErrorHandler
	s.router.Validator = validator.New()
	s.router.HideBanner = true
	s.router.HidePort = true

	s.router.Use(mwlog.NewWithConfig(mwlog.Config{
		Logger: s.logger,
	}))
	s.router.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			rows := strings.Split(string(stack), "\n")
			s.logger.Error().WithField("stack", rows).Log("recovered from a panic")
			return nil
		},
	}))

	s.setRoutes()

	return s, nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *server) setRoutes() {
	s.router.GET("/ping", s.handler.ping.Ping)
	s.router.HEAD("/ping", s.handler.ping.Ping)

	if s.handler.prometheus != nil {
		s.router.GET("/metrics", s.handler.prometheus.Metrics)
	}

	api := s.router.Group("/api")
	api.GET("", s.handler.about.About)

	v3 := api.Group("/v3")

	v3.GET("/log", s.v3handler.log.Log)
	v3.GET("/log/stream", s.v3handler.log.Stream)

	v3.GET("/rtmp", s.v3handler.rtmp.ListStreams)
	v3.GET("/rtmp/stats", s.v3handler.rtmp.Stats)
	v3.GET("/rtmp/connections", s.v3handler.rtmp.ListConnections)
	v3.GET("/rtmp/:app/:name", s.v3handler.rtmp.GetStream)

	v3.GET("/session", s.v3handler.session.Summary)
	v3.GET("/session/active", s.v3handler.session.Active)

	v3.GET("/config", s.v3handler.config.Get)
	v3.PUT("/config", s.v3handler.config.Set)
	v3.GET("/config/variables", s.v3handler.config.Variables)
	v3.GET("/config/reload", s.v3handler.config.Reload)

	v3.GET("/events", s.v3handler.events.StreamEvents)
}
