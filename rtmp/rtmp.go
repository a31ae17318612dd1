// Package rtmp provides an RTMP relay server. Publishers push a stream to a
// path /app/name, any number of players pull it from there.
package rtmp

import (
	"errors"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datarhei/relay/event"
	"github.com/datarhei/relay/glob"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/session"
)

// ErrServerClosed is returned by ListenAndServe and Serve after Close has
// been called.
var ErrServerClosed = errors.New("rtmp: server closed")

const (
	DefaultChunkSize     = 60000
	DefaultQueueSize     = 1024
	DefaultSweepInterval = 3 * time.Second
)

// Config for a new RTMP server
type Config struct {
	// Logger. Optional.
	Logger log.Logger

	Collector session.Collector

	// The address the RTMP server should listen on, e.g. ":1935"
	Addr string

	// Glob patterns of the allowed apps. Optional. By default all apps are
	// allowed.
	Apps []string

	// The chunk size for outgoing messages. Defaults to 60000.
	ChunkSize uint32

	// Number of messages that can be queued per connection. Defaults to 1024.
	QueueSize int

	// Interval for removing empty sessions. Defaults to 3 seconds.
	SweepInterval time.Duration

	// Time a client has for completing the handshake. Optional.
	HandshakeTimeout time.Duration

	// Base URL of an upstream RTMP server, e.g. "rtmp://origin:1935". Players
	// asking for an unknown path will be served from upstream. Optional.
	Upstream string
}

// EventHandler gets notified about publish and play events.
type EventHandler interface {
	OnEvent(name, path string)
}

// EventHandlerFunc is a function that implements EventHandler.
type EventHandlerFunc func(name, path string)

func (f EventHandlerFunc) OnEvent(name, path string) {
	f(name, path)
}

// Stats are the current numbers of the server.
type Stats struct {
	Connections uint64
	Sessions    uint64
	Publishers  uint64
	Players     uint64
	Dropped     uint64
}

// Server represents a RTMP server
type Server interface {
	// ListenAndServe starts the RTMP server
	ListenAndServe() error

	// Serve accepts connections from the listener
	Serve(l net.Listener) error

	// Close stops the RTMP server and closes all connections
	Close()

	// Sessions returns a list of the current sessions
	Sessions() []SessionInfo

	// Session returns the session with the path
	Session(path string) (SessionInfo, bool)

	// Connections returns a list of all connected clients
	Connections() []ConnectionInfo

	// AddEventHandler registers a handler for stream events
	AddEventHandler(h EventHandler)

	// ApplyStreamID returns a new stream id
	ApplyStreamID() uint32

	Stats() Stats

	event.EventSource
}

// server is an implementation of the Server interface
type server struct {
	addr             string
	apps             glob.List
	chunkSize        uint32
	queueSize        int
	sweepInterval    time.Duration
	handshakeTimeout time.Duration
	upstream         string

	logger    log.Logger
	collector session.Collector
	events    *event.PubSub

	handlers     []EventHandler
	handlersLock sync.RWMutex

	sessions map[string]*Session
	pulls    map[string]*pull
	lock     sync.Mutex

	connections     map[uint64]*connection
	connectionsLock sync.Mutex

	listener net.Listener
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once

	streamID     atomic.Uint32
	connectionID atomic.Uint64
}

// New creates a new RTMP server according to the given config
func New(config Config) (Server, error) {
	s := &server{
		addr:             config.Addr,
		chunkSize:        config.ChunkSize,
		queueSize:        config.QueueSize,
		sweepInterval:    config.SweepInterval,
		handshakeTimeout: config.HandshakeTimeout,
		upstream:         strings.TrimSuffix(config.Upstream, "/"),
		logger:           config.Logger,
		collector:        config.Collector,
		events:           event.NewPubSub(),
		sessions:         map[string]*Session{},
		pulls:            map[string]*pull{},
		connections:      map[uint64]*connection{},
		stop:             make(chan struct{}),
	}

	if s.logger == nil {
		s.logger = log.New("")
	}

	if s.collector == nil {
		s.collector = session.NewNullCollector()
	}

	if s.chunkSize == 0 || s.chunkSize > DefaultChunkSize {
		s.chunkSize = DefaultChunkSize
	}

	if s.queueSize <= 0 {
		s.queueSize = DefaultQueueSize
	}

	if s.sweepInterval <= 0 {
		s.sweepInterval = DefaultSweepInterval
	}

	apps, err := glob.NewList(config.Apps)
	if err != nil {
		return nil, err
	}

	s.apps = apps

	go s.sweeper()

	return s, nil
}

// ListenAndServe starts the RMTP server
func (s *server) ListenAndServe() error {
	addr := s.addr
	if len(addr) == 0 {
		addr = ":1935"
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(l)
}

func (s *server) Serve(l net.Listener) error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.lock.Unlock()

	s.logger.Info().WithField("address", l.Addr().String()).Log("Listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			s.lock.Lock()
			closed := s.closed
			s.lock.Unlock()

			if closed {
				return ErrServerClosed
			}

			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			return err
		}

		c := newConnection(s, conn, s.connectionID.Add(1))

		s.connectionsLock.Lock()
		s.connections[c.id] = c
		s.connectionsLock.Unlock()

		go func() {
			c.serve()

			s.connectionsLock.Lock()
			delete(s.connections, c.id)
			s.connectionsLock.Unlock()
		}()
	}
}

func (s *server) Close() {
	s.lock.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}

	pulls := make([]*pull, 0, len(s.pulls))
	for _, p := range s.pulls {
		pulls = append(pulls, p)
	}
	s.lock.Unlock()

	for _, p := range pulls {
		p.cancel()
	}

	s.connectionsLock.Lock()
	for _, c := range s.connections {
		c.close(ErrServerClosed)
	}
	s.connectionsLock.Unlock()

	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.events.Close()
}

// sweeper periodically removes sessions without any sinks.
func (s *server) sweeper() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *server) sweep() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for path, session := range s.sessions {
		if session.Len() != 0 {
			continue
		}

		delete(s.sessions, path)

		s.logger.Debug().WithField("path", path).Log("Removed session")
	}
}

// lookup returns the session with the path or nil.
func (s *server) lookup(path string) *Session {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.sessions[path]
}

// join adds the sink to the session with the path. The session is created
// if it doesn't exist and create is true.
func (s *server) join(path string, sink Sink, create bool) (*Session, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, ok := s.sessions[path]
	if !ok {
		if !create {
			return nil, false
		}

		session = NewSession(path)
		s.sessions[path] = session
	}

	if !session.AddSink(sink) {
		return session, false
	}

	return session, true
}

func (s *server) ApplyStreamID() uint32 {
	return s.streamID.Add(1)
}

func (s *server) allowApp(app string) bool {
	return s.apps.Allow(app)
}

func (s *server) AddEventHandler(h EventHandler) {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()

	s.handlers = append(s.handlers, h)
}

func (s *server) notify(action, path, client string) {
	s.handlersLock.RLock()
	handlers := s.handlers
	s.handlersLock.RUnlock()

	for _, h := range handlers {
		h.OnEvent(action, path)
	}

	s.events.Publish(event.NewStreamEvent(action, path, client))
}

func (s *server) Events() (<-chan event.Event, event.CancelFunc, error) {
	ch, cancel := s.events.Subscribe()

	return ch, cancel, nil
}

func (s *server) Sessions() []SessionInfo {
	s.lock.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.lock.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })

	return infos
}

func (s *server) Session(path string) (SessionInfo, bool) {
	session := s.lookup(path)
	if session == nil {
		return SessionInfo{}, false
	}

	return session.Info(), true
}

func (s *server) Connections() []ConnectionInfo {
	s.connectionsLock.Lock()
	connections := make([]*connection, 0, len(s.connections))
	for _, c := range s.connections {
		connections = append(connections, c)
	}
	s.connectionsLock.Unlock()

	infos := make([]ConnectionInfo, 0, len(connections))
	for _, c := range connections {
		infos = append(infos, c.Info())
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	return infos
}

func (s *server) Stats() Stats {
	stats := Stats{}

	for _, info := range s.Sessions() {
		stats.Sessions++
		if info.Publisher != 0 {
			stats.Publishers++
		}
		stats.Players += uint64(len(info.Players))
	}

	s.connectionsLock.Lock()
	stats.Connections = uint64(len(s.connections))
	for _, c := range s.connections {
		stats.Dropped += c.dropped.Load()
	}
	s.connectionsLock.Unlock()

	return stats
}

func (s *server) log(who, action, path, message, client string) {
	s.logger.Info().WithFields(log.Fields{
		"who":    who,
		"action": action,
		"path":   path,
		"client": client,
	}).Log(message)
}
