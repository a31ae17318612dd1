package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	gohttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/datarhei/relay/app"
	"github.com/datarhei/relay/config"
	configstore "github.com/datarhei/relay/config/store"
	configvars "github.com/datarhei/relay/config/vars"
	"github.com/datarhei/relay/event"
	"github.com/datarhei/relay/http"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/prometheus"
	"github.com/datarhei/relay/psutil"
	"github.com/datarhei/relay/rtmp"
	"github.com/datarhei/relay/session"

	"github.com/google/gops/agent"
	"go.uber.org/automaxprocs/maxprocs"
)

// The API interface is the implementation for the relay app.
type API interface {
	// Start starts the API. This is blocking until the app has
	// been ended with Stop() or Destroy(). In this case a nil error
	// is returned. An ErrConfigReload error is returned if a
	// configuration reload has been requested.
	Start(ctx context.Context) error

	// Stop stops the API, some states may be kept intact such
	// that they can be reused after starting the API again.
	Stop()

	// Destroy is the same as Stop() but no state will be kept intact.
	Destroy()

	// Reload the configuration for the API. If there's an error the
	// previously loaded configuration is not altered.
	Reload() error
}

type api struct {
	rtmpserver rtmp.Server
	httpserver *gohttp.Server
	collector  session.Collector
	prom       prometheus.Metrics

	errorChan chan error

	log struct {
		writer io.Writer
		buffer log.BufferWriter
		events log.ChannelWriter
		logger struct {
			main   log.Logger
			rtmp   log.Logger
			http   log.Logger
			events log.Logger
		}
	}

	config struct {
		path   string
		store  configstore.Store
		config *config.Config
	}

	stopEvents event.CancelFunc

	lock   sync.Mutex
	wgStop sync.WaitGroup
	state  string

	startedAt    time.Time
	undoMaxprocs func()
}

// ErrConfigReload is an error returned to indicate that a reload of
// the configuration has been requested.
var ErrConfigReload = fmt.Errorf("configuration reload")

// New returns a new instance of the API interface
func New(configpath string, logwriter io.Writer) (API, error) {
	a := &api{
		state:     "idle",
		startedAt: time.Now(),
	}

	a.config.path = configpath
	a.log.writer = logwriter

	if a.log.writer == nil {
		a.log.writer = io.Discard
	}

	a.errorChan = make(chan error, 1)

	if err := a.Reload(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *api) Reload() error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.state == "running" {
		return fmt.Errorf("can't reload config while running")
	}

	if a.errorChan == nil {
		a.errorChan = make(chan error, 1)
	}

	logger := log.New("Relay").WithOutput(log.NewConsoleWriter(a.log.writer, log.Lwarn, true))

	store, err := configstore.NewJSON(a.config.path, func() {
		select {
		case a.errorChan <- ErrConfigReload:
		default:
		}
	})
	if err != nil {
		return err
	}

	cfg := store.Get()

	cfg.Merge()
	cfg.Validate(false)

	loglevel, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		loglevel = log.Linfo
	}

	buffer := log.NewBufferWriter(loglevel, cfg.Log.MaxLines)
	events := log.NewChannelWriter()

	logger = logger.WithOutput(log.NewMultiWriter(
		log.NewTopicWriter(
			log.NewConsoleWriter(a.log.writer, loglevel, true),
			cfg.Log.Topics,
		),
		buffer,
		events,
	))

	logfields := log.Fields{
		"application": app.Name,
		"version":     app.Version.String(),
		"arch":        app.Arch,
		"compiler":    app.Compiler,
	}

	if len(app.Commit) != 0 && len(app.Branch) != 0 {
		logfields["commit"] = app.Commit
		logfields["branch"] = app.Branch
	}

	if len(app.Build) != 0 {
		logfields["build"] = app.Build
	}

	logger.Info().WithFields(logfields).Log("")

	logger.Info().WithField("path", a.config.path).Log("Read config file")

	configlogger := logger.WithComponent("Config")
	cfg.Messages(func(level log.Level, v configvars.Variable, message string) {
		l := configlogger.WithFields(log.Fields{
			"variable":    v.Name,
			"value":       v.Value,
			"env":         v.EnvName,
			"description": v.Description,
			"override":    v.Merged,
		})

		switch level {
		case log.Lerror:
			l.Error().WithField("error", message).Log("")
		case log.Lwarn:
			l.Warn().Log(message)
		default:
			l.Debug().Log(message)
		}
	})

	if cfg.HasErrors() {
		logger.Error().WithField("error", "Not all variables are set or are valid. Check the error messages above. Bailing out.").Log("")
		return fmt.Errorf("not all variables are set or valid")
	}

	cfg.LoadedAt = time.Now()

	store.SetActive(cfg)

	if a.log.events != nil {
		a.log.events.Close()
	}

	a.config.store = store
	a.config.config = cfg
	a.log.logger.main = logger
	a.log.buffer = buffer
	a.log.events = events

	return nil
}

func (a *api) start(ctx context.Context) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.errorChan == nil {
		a.errorChan = make(chan error, 1)
	}

	if a.state == "running" {
		return fmt.Errorf("already running")
	}

	a.state = "starting"

	cfg := a.config.store.GetActive()

	if cfg.Debug.AutoMaxProcs {
		undoMaxprocs, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			format = strings.TrimPrefix(format, "maxprocs: ")
			a.log.logger.main.Debug().Log(format, args...)
		}))
		if err != nil {
			a.log.logger.main.Warn().Log("%s", err.Error())
		}

		a.undoMaxprocs = undoMaxprocs
	}

	if cfg.Debug.Profiling {
		if err := agent.Listen(agent.Options{}); err != nil {
			a.log.logger.main.Error().WithError(err).Log("Failed to start the gops agent")
		}
	}

	if cfg.Sessions.Enable {
		a.collector = session.NewCollector(session.CollectorConfig{
			ID:     "rtmp",
			Logger: a.log.logger.main.WithComponent("Session"),
		})
	} else {
		a.collector = session.NewNullCollector()
	}

	a.log.logger.rtmp = a.log.logger.main.WithComponent("RTMP").WithField("address", cfg.RTMP.Address)

	rtmpserver, err := rtmp.New(rtmp.Config{
		Logger:           a.log.logger.rtmp,
		Collector:        a.collector,
		Addr:             cfg.RTMP.Address,
		Apps:             cfg.RTMP.Apps,
		ChunkSize:        uint32(cfg.RTMP.ChunkSize),
		QueueSize:        cfg.RTMP.QueueSize,
		SweepInterval:    cfg.SweepInterval(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
		Upstream:         cfg.RTMP.Upstream,
	})
	if err != nil {
		return fmt.Errorf("unable to create RTMP server: %w", err)
	}

	a.rtmpserver = rtmpserver

	a.log.logger.events = a.log.logger.main.WithComponent("Events")
	if err := a.logEvents(rtmpserver); err != nil {
		a.log.logger.events.Warn().WithError(err).Log("Failed to subscribe to stream events")
	}

	if cfg.Metrics.Enable {
		a.prom = prometheus.New(true)
		a.prom.Register(prometheus.NewUptimeCollector(cfg.Name, a.startedAt))
		a.prom.Register(prometheus.NewRTMPCollector(cfg.Name, rtmpserver))
		a.prom.Register(prometheus.NewSessionCollector(cfg.Name, a.collector))
	}

	if len(cfg.Address) != 0 {
		if err := a.startHTTP(cfg); err != nil {
			return err
		}
	}

	a.wgStop.Add(1)
	go func() {
		defer a.wgStop.Done()

		a.log.logger.rtmp.Info().Log("Server started")

		err := rtmpserver.ListenAndServe()
		if err != nil && !errors.Is(err, rtmp.ErrServerClosed) {
			err = fmt.Errorf("RTMP server: %w", err)
		} else {
			err = nil
		}

		a.log.logger.rtmp.Info().Log("Server exited")

		sendError(a.errorChan, err)
	}()

	a.state = "running"

	return nil
}

func (a *api) startHTTP(cfg *config.Config) error {
	var psu psutil.Util

	if u, err := psutil.New(); err == nil {
		psu = u
	} else {
		a.log.logger.main.Warn().WithError(err).Log("Resource usage is not available")
	}

	a.log.logger.http = a.log.logger.main.WithComponent("HTTP").WithField("address", cfg.Address)

	serverConfig := http.Config{
		Logger:    a.log.logger.http,
		LogBuffer: a.log.buffer,
		LogEvents: a.log.events,
		RTMP:      a.rtmpserver,
		Collector: a.collector,
		Config:    a.config.store,
		PSUtil:    psu,
		StartedAt: a.startedAt,
	}

	if a.prom != nil {
		serverConfig.Metrics = a.prom
	}

	handler, err := http.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("unable to create HTTP server: %w", err)
	}

	a.httpserver = &gohttp.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", cfg.Address, err)
	}

	a.wgStop.Add(1)
	go func() {
		defer a.wgStop.Done()

		a.log.logger.http.Info().Log("Server started")

		err := a.httpserver.Serve(listener)
		if err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
			err = fmt.Errorf("HTTP server: %w", err)
		} else {
			err = nil
		}

		a.log.logger.http.Info().Log("Server exited")

		sendError(a.errorChan, err)
	}()

	return nil
}

// logEvents writes a log line for each publish and play event.
func (a *api) logEvents(source event.EventSource) error {
	ch, cancel, err := source.Events()
	if err != nil {
		return err
	}

	a.stopEvents = cancel

	logger := a.log.logger.events

	go func() {
		for e := range ch {
			evt, ok := e.(*event.StreamEvent)
			if !ok {
				continue
			}

			logger.Info().WithFields(log.Fields{
				"action": evt.Action,
				"path":   evt.Path,
				"client": evt.Client,
			}).Log("")
		}
	}()

	return nil
}

func sendError(ch chan<- error, err error) {
	if err == nil {
		return
	}

	select {
	case ch <- err:
	default:
	}
}

func (a *api) Start(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.stop()
		return err
	}

	a.lock.Lock()
	errorChan := a.errorChan
	a.lock.Unlock()

	select {
	case err := <-errorChan:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (a *api) stop() {
	a.lock.Lock()
	defer a.lock.Unlock()

	logger := a.log.logger.main.WithField("action", "shutdown")

	if a.state == "idle" {
		logger.Info().Log("Complete")
		return
	}

	if a.httpserver != nil {
		logger.Info().Log("Stopping HTTP server ...")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.httpserver.Shutdown(ctx); err != nil {
			logger.Warn().WithError(err).Log("Failed to stop HTTP server gracefully")
			a.httpserver.Close()
		}
		cancel()

		a.httpserver = nil
	}

	if a.rtmpserver != nil {
		logger.Info().Log("Stopping RTMP server ...")
		a.rtmpserver.Close()
		a.rtmpserver = nil
	}

	if a.stopEvents != nil {
		a.stopEvents()
		a.stopEvents = nil
	}

	if a.prom != nil {
		a.prom.UnregisterAll()
		a.prom = nil
	}

	if a.collector != nil {
		a.collector.Stop()
		a.collector = nil
	}

	agent.Close()

	if a.undoMaxprocs != nil {
		a.undoMaxprocs()
		a.undoMaxprocs = nil
	}

	logger.Info().Log("Waiting for all servers to stop ...")
	a.wgStop.Wait()

	// Drain error channel
	if a.errorChan != nil {
		close(a.errorChan)
		a.errorChan = nil
	}

	a.state = "idle"

	logger.Info().Log("Complete")
}

func (a *api) Stop() {
	a.log.logger.main.Info().Log("Shutdown requested ...")
	a.stop()
}

func (a *api) Destroy() {
	a.log.logger.main.Info().Log("Shutdown requested ...")
	a.stop()

	a.lock.Lock()
	defer a.lock.Unlock()

	if a.log.events != nil {
		a.log.events.Close()
		a.log.events = nil
	}

	a.config.store = nil
	a.config.config = nil
}
