package rtmp

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datarhei/relay/event"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/mem"
	"github.com/datarhei/relay/rtmp/amf"
	"github.com/datarhei/relay/rtmp/bits"
	"github.com/datarhei/relay/rtmp/chunk"
	"github.com/datarhei/relay/rtmp/handshake"
	"github.com/datarhei/relay/rtmp/url"

	"github.com/lithammer/shortuuid/v4"
)

var (
	ErrProtocol  = errors.New("rtmp: protocol violation")
	ErrQueueFull = errors.New("rtmp: outbound queue full")
)

// State is the protocol state of a connection.
type State int32

const (
	StateHandshake State = iota
	StateConnecting
	StateCreateStream
	StatePlaying
	StatePublishing
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateConnecting:
		return "connecting"
	case StateCreateStream:
		return "createstream"
	case StatePlaying:
		return "playing"
	case StatePublishing:
		return "publishing"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}

	return "unknown"
}

// Chunk header and extended timestamp bytes on top of the payload of a
// single chunk.
const maxChunkOverhead = 18

const (
	readBufferSize = 64 * 1024
	maxWriteBatch  = 256 * 1024
)

// Commands that are accepted and ignored in any state.
var ignoredCommands = map[string]struct{}{
	"_checkbw":        {},
	"_result":         {},
	"_error":          {},
	"onBWDone":        {},
	"receiveAudio":    {},
	"receiveVideo":    {},
	"pause":           {},
	"seek":            {},
	"FCSubscribe":     {},
	"FCUnsubscribe":   {},
	"setBufferLength": {},
}

// outgoing is either raw handshake bytes or a message for the chunk encoder.
type outgoing struct {
	raw []byte
	msg *chunk.Message
}

// ConnectionInfo describes a connection.
type ConnectionInfo struct {
	ID        uint64
	SessionID string
	Remote    string
	State     string
	App       string
	Path      string
	StreamID  uint32
	CreatedAt time.Time
	Dropped   uint64
}

// connection is a client connected to the server. It acts as a Sink in the
// session it publishes to or plays from.
type connection struct {
	id        uint64
	sid       string
	server    *server
	conn      net.Conn
	remote    string
	logger    log.Logger
	createdAt time.Time

	handshake *handshake.Server
	chunks    *chunk.Manager
	inbuf     *mem.Buffer
	received  uint64
	acked     uint64

	queue     chan outgoing
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	state      atomic.Int32
	streamID   atomic.Uint32
	publishing atomic.Bool
	playing    atomic.Bool
	closed     atomic.Bool

	connected     bool
	windowAckSize uint32
	peerBandwidth uint32
	peerAcked     uint32
	avcHeader     []byte
	aacHeader     []byte

	app     string
	tcURL   string
	name    string
	path    string
	session *Session
	lock    sync.Mutex

	leave     *pendingLeave
	leaveLock sync.Mutex
}

// pendingLeave is a scheduled removal from a session.
type pendingLeave struct {
	session *Session
	timer   *time.Timer
}

func newConnection(s *server, conn net.Conn, id uint64) *connection {
	c := &connection{
		id:        id,
		sid:       shortuuid.New(),
		server:    s,
		conn:      conn,
		createdAt: time.Now(),
		handshake: handshake.NewServer(handshake.Config{}),
		chunks:    chunk.NewManager(),
		inbuf:     mem.Get(),
		queue:     make(chan outgoing, s.queueSize),
		done:      make(chan struct{}),
	}

	if addr := conn.RemoteAddr(); addr != nil {
		c.remote = addr.String()
	}

	c.logger = s.logger.WithFields(log.Fields{
		"id":     c.sid,
		"client": c.remote,
	})

	c.state.Store(int32(StateHandshake))

	return c
}

// serve reads from the connection until it is closed or the peer violates
// the protocol.
func (c *connection) serve() {
	go c.writeLoop()

	defer func() {
		c.teardown()
		c.close(nil)
		c.chunks.ClearDecode()
		c.chunks.ClearEncode()
		c.state.Store(int32(StateClosed))
		mem.Put(c.inbuf)
		c.inbuf = nil
	}()

	if c.server.handshakeTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.server.handshakeTimeout))
	}

	buf := make([]byte, readBufferSize)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			if !c.OnReadable(buf[:n]) {
				c.state.Store(int32(StateError))
				return
			}
		}

		if err != nil {
			c.logger.Debug().WithError(err).Log("Connection closed")
			return
		}
	}
}

// OnReadable feeds received bytes into the connection. It returns false if
// the connection has to be closed.
func (c *connection) OnReadable(data []byte) bool {
	c.received += uint64(len(data))
	c.server.collector.Ingress(c.sid, int64(len(data)))

	c.inbuf.Write(data)

	if !c.process() {
		return false
	}

	if c.windowAckSize > 0 && c.received-c.acked >= uint64(c.windowAckSize) {
		c.acked = c.received
		c.send(newAcknowledgement(uint32(c.received)))
	}

	return !c.closed.Load()
}

func (c *connection) process() bool {
	for c.inbuf.Len() > 0 {
		if c.State() == StateHandshake {
			n, err := c.handshake.Parse(c.inbuf.Bytes())
			if err != nil {
				c.logger.Warn().WithError(err).Log("Handshake failed")
				return false
			}

			if n == 0 {
				return true
			}

			c.inbuf.Advance(n)

			if r := c.handshake.Response(); r != nil {
				if !c.enqueue(outgoing{raw: r}, false) {
					return false
				}
			}

			if c.handshake.Done() {
				c.setState(StateConnecting)
				c.conn.SetReadDeadline(time.Time{})
			}

			continue
		}

		n, err := c.chunks.Parse(c.inbuf.Bytes())
		if err != nil {
			c.logger.Warn().WithError(err).Log("Invalid chunk")
			return false
		}

		c.inbuf.Advance(n)

		for c.chunks.HasMessage() {
			if !c.handleMessage(c.chunks.GetMessage()) {
				return false
			}
		}

		if n == 0 {
			// A complete chunk that can't be parsed.
			if c.inbuf.Len() >= int(c.chunks.InChunkSize())+maxChunkOverhead {
				c.logger.Warn().WithError(ErrProtocol).Log("No progress parsing %d bytes", c.inbuf.Len())
				return false
			}

			return true
		}
	}

	return true
}

func (c *connection) handleMessage(msg *chunk.Message) bool {
	switch msg.TypeID {
	case chunk.TypeSetChunkSize:
		c.logger.Debug().Log("Incoming chunk size %d", c.chunks.InChunkSize())
	case chunk.TypeAbort:
	case chunk.TypeAcknowledgement:
		if len(msg.Body) >= 4 {
			c.peerAcked = bits.U32BE(msg.Body)
		}
	case chunk.TypeWindowAckSize:
		if len(msg.Body) >= 4 {
			c.windowAckSize = bits.U32BE(msg.Body)
		}
	case chunk.TypeSetPeerBandwidth:
		if len(msg.Body) >= 4 {
			c.peerBandwidth = bits.U32BE(msg.Body)
		}
	case chunk.TypeUserControl:
		c.handleUserControl(msg)
	case chunk.TypeCommandAMF3:
		if len(msg.Body) == 0 || msg.Body[0] != 0 {
			return c.violation("AMF3 command not supported")
		}

		return c.handleCommand(msg, msg.Body[1:])
	case chunk.TypeCommandAMF0:
		return c.handleCommand(msg, msg.Body)
	case chunk.TypeDataAMF3:
		if len(msg.Body) != 0 && msg.Body[0] == 0 {
			c.handleData(msg.Body[1:])
		}
	case chunk.TypeDataAMF0:
		c.handleData(msg.Body)
	case chunk.TypeAudio:
		if c.publishing.Load() {
			if isAACSequenceHeader(msg.Body) {
				c.aacHeader = msg.Body
			}

			if session := c.currentSession(); session != nil {
				session.BroadcastAudio(msg.Timestamp, msg.Body)
			}
		}
	case chunk.TypeVideo:
		if c.publishing.Load() {
			if isVideoSequenceHeader(msg.Body) {
				c.avcHeader = msg.Body
			}

			if session := c.currentSession(); session != nil {
				session.BroadcastVideo(msg.Timestamp, msg.Body)
			}
		}
	default:
		c.logger.Debug().Log("Ignoring message type %s", chunk.TypeName(msg.TypeID))
	}

	return true
}

func (c *connection) handleUserControl(msg *chunk.Message) {
	if len(msg.Body) < 6 {
		return
	}

	if bits.U16BE(msg.Body) == eventPingRequest {
		c.send(newUserControl(eventPingResponse, bits.U32BE(msg.Body[2:])))
	}
}

// violation logs a protocol violation. The connection gets closed.
func (c *connection) violation(format string, args ...interface{}) bool {
	c.logger.Warn().WithError(ErrProtocol).Log(format, args...)

	return false
}

func (c *connection) handleCommand(msg *chunk.Message, body []byte) bool {
	args, err := amf.DecodeArray(body)
	if len(args) == 0 {
		return c.violation("Undecodable command: %s", err)
	}

	name, ok := args[0].AsString()
	if !ok {
		return c.violation("Command without name")
	}

	txn, _ := argNumber(args, 1)

	switch name {
	case "connect":
		return c.onConnect(txn, args)
	case "releaseStream", "FCPublish", "FCUnpublish":
		if !c.connected {
			return c.violation("%s before connect", name)
		}

		return c.send(newResult(txn, amf.Null(), amf.Null()))
	case "createStream":
		return c.onCreateStream(txn)
	case "getStreamLength":
		return c.send(newResult(txn, amf.Null(), amf.Number(0)))
	case "publish":
		return c.onPublish(msg.StreamID, args)
	case "play":
		return c.onPlay(msg.StreamID, args)
	case "deleteStream", "closeStream":
		if c.publishing.Load() {
			if !c.send(newStatus(c.streamID.Load(), levelStatus, CodeUnpublishSuccess, "Stop publishing.")) {
				return false
			}
		}

		c.teardown()
		return true
	}

	if _, ok := ignoredCommands[name]; ok {
		return true
	}

	if c.State() < StateCreateStream {
		return c.violation("Unknown command %q before createStream", name)
	}

	c.logger.Debug().Log("Ignoring command %q", name)

	return true
}

func (c *connection) onConnect(txn float64, args []amf.Value) bool {
	if c.connected {
		return c.violation("Repeated connect")
	}

	if len(args) < 3 || !args[2].IsObject() {
		return c.violation("connect without command object")
	}

	app, _ := args[2].GetString("app")
	app, _, _ = strings.Cut(app, "?")
	app = strings.Trim(app, "/")
	if len(app) == 0 {
		return c.violation("connect without app")
	}

	tcURL, _ := args[2].GetString("tcUrl")

	if !c.server.allowApp(app) {
		c.server.log("CONNECT", "FORBIDDEN", "/"+app, "app not allowed", c.remote)

		return c.send(newError(txn, amf.Null(), statusObject(levelError, CodeConnectRejected, "Application not allowed.")))
	}

	c.lock.Lock()
	c.app = app
	c.tcURL = tcURL
	c.lock.Unlock()

	ok := c.send(newWindowAckSize(defaultWindowAckSize)) &&
		c.send(newSetPeerBandwidth(defaultPeerBandwidth, peerBandwidthDynamic)) &&
		c.send(newSetChunkSize(c.server.chunkSize))
	if !ok {
		return false
	}

	properties := amf.Object(map[string]amf.Value{
		"fmsVer":       amf.String("FMS/4,5,0,297"),
		"capabilities": amf.Number(255),
		"mode":         amf.Number(1),
	})

	info := statusObject(levelStatus, CodeConnectSuccess, "Connection succeeded.")
	info.Set("objectEncoding", amf.Number(0))

	if !c.send(newResult(txn, properties, info)) {
		return false
	}

	c.connected = true
	c.setState(StateConnecting)

	c.server.log("CONNECT", "ACCEPT", "/"+app, "", c.remote)

	return true
}

func (c *connection) onCreateStream(txn float64) bool {
	if !c.connected {
		return c.violation("createStream before connect")
	}

	id := c.server.ApplyStreamID()
	c.streamID.Store(id)

	if !c.send(newResult(txn, amf.Null(), amf.Number(float64(id)))) {
		return false
	}

	if c.State() == StateConnecting {
		c.setState(StateCreateStream)
	}

	return true
}

func (c *connection) onPublish(streamID uint32, args []amf.Value) bool {
	if !c.connected {
		return c.violation("publish before connect")
	}

	name, ok := argString(args, 3)
	if !ok {
		return c.violation("publish without stream name")
	}

	if c.publishing.Load() || c.playing.Load() {
		return c.send(newStatus(streamID, levelError, CodePublishBadConnection, "Connection already publishing."))
	}

	name = streamName(name)
	path := url.StreamPath(c.app, name)

	if len(name) == 0 {
		return c.send(newStatus(streamID, levelError, CodePublishBadName, "Missing stream name."))
	}

	c.completeLeave(nil)

	c.publishing.Store(true)

	session, ok := c.server.join(path, c, true)
	if !ok {
		c.publishing.Store(false)
		c.server.log("PUBLISH", "CONFLICT", path, "already publishing", c.remote)

		return c.send(newStatus(streamID, levelError, CodePublishBadName, "Stream already publishing."))
	}

	c.lock.Lock()
	c.name = name
	c.path = path
	c.session = session
	c.lock.Unlock()

	c.avcHeader = nil
	c.aacHeader = nil
	c.setState(StatePublishing)

	c.server.collector.Register(c.sid, path, c.remote)
	c.server.collector.Extra(c.sid, map[string]interface{}{
		"name":   name,
		"method": "publish",
	})

	if !c.send(newStatus(streamID, levelStatus, CodePublishStart, "Start publishing.")) {
		return false
	}

	c.server.log("PUBLISH", "START", path, "", c.remote)
	c.server.notify(event.ActionPublishStart, path, c.remote)

	return true
}

func (c *connection) onPlay(streamID uint32, args []amf.Value) bool {
	if !c.connected {
		return c.violation("play before connect")
	}

	name, ok := argString(args, 3)
	if !ok {
		return c.violation("play without stream name")
	}

	if c.publishing.Load() || c.playing.Load() {
		return c.send(newStatus(streamID, levelError, CodePlayFailed, "Connection already playing or publishing."))
	}

	name = streamName(name)
	path := url.StreamPath(c.app, name)

	c.completeLeave(nil)

	session := c.server.lookup(path)
	if session == nil {
		session = c.server.pull(path)
	}

	if session == nil {
		c.server.log("PLAY", "NOTFOUND", path, "", c.remote)
		return c.send(newStatus(streamID, levelError, CodePlayStreamNotFound, "Stream not found."))
	}

	ok = c.send(newUserControl(eventStreamBegin, streamID)) &&
		c.send(newStatus(streamID, levelStatus, CodePlayReset, "Resetting and playing stream.")) &&
		c.send(newStatus(streamID, levelStatus, CodePlayStart, "Start playing.")) &&
		c.send(newData(streamID, amf.String("|RtmpSampleAccess"), amf.Boolean(true), amf.Boolean(true)))
	if !ok {
		return false
	}

	if metadata := session.Metadata(); metadata.Len() != 0 {
		c.send(newData(streamID, amf.String("onMetaData"), metadata))
	}

	c.playing.Store(true)

	session, _ = c.server.join(path, c, true)

	c.lock.Lock()
	c.name = name
	c.path = path
	c.session = session
	c.lock.Unlock()

	c.setState(StatePlaying)

	c.server.collector.Register(c.sid, path, c.remote)
	c.server.collector.Extra(c.sid, map[string]interface{}{
		"name":   name,
		"method": "play",
	})

	c.server.log("PLAY", "START", path, "", c.remote)
	c.server.notify(event.ActionPlayStart, path, c.remote)

	return true
}

func (c *connection) handleData(body []byte) {
	if !c.publishing.Load() {
		return
	}

	args, _ := amf.DecodeArray(body)

	name, ok := argString(args, 0)
	if ok && name == "@setDataFrame" {
		args = args[1:]
		name, ok = argString(args, 0)
	}

	if !ok || name != "onMetaData" || len(args) < 2 || !args[1].IsObject() {
		c.logger.Debug().Log("Ignoring data message %q", name)
		return
	}

	if session := c.currentSession(); session != nil {
		session.BroadcastMetadata(args[1])
	}
}

// teardown leaves the session. The sink is removed from the session after
// a tick such that the current broadcast completes.
func (c *connection) teardown() {
	c.lock.Lock()
	session, path := c.session, c.path
	c.session = nil
	c.path = ""
	c.lock.Unlock()

	publishing := c.publishing.Swap(false)
	playing := c.playing.Swap(false)

	if c.State() == StatePlaying || c.State() == StatePublishing {
		c.setState(StateConnecting)
	}

	c.chunks.ClearEncode()

	if session == nil {
		return
	}

	c.completeLeave(nil)

	leave := &pendingLeave{session: session}

	c.leaveLock.Lock()
	c.leave = leave
	leave.timer = time.AfterFunc(time.Millisecond, func() {
		c.completeLeave(leave)
	})
	c.leaveLock.Unlock()

	c.server.collector.Close(c.sid)

	if publishing {
		c.server.log("PUBLISH", "STOP", path, "", c.remote)
		c.server.notify(event.ActionPublishStop, path, c.remote)
	} else if playing {
		c.server.log("PLAY", "STOP", path, "", c.remote)
		c.server.notify(event.ActionPlayStop, path, c.remote)
	}
}

// completeLeave removes the connection from the session of a pending leave.
// With nil it completes whichever leave is pending. A leave that has been
// completed or replaced does nothing, such that a timer never removes a
// membership the connection acquired after the leave was scheduled.
func (c *connection) completeLeave(leave *pendingLeave) {
	c.leaveLock.Lock()
	defer c.leaveLock.Unlock()

	if c.leave == nil || (leave != nil && c.leave != leave) {
		return
	}

	c.leave.timer.Stop()
	c.leave.session.RemoveSink(c)
	c.leave = nil
}

func (c *connection) currentSession() *Session {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.session
}

func (c *connection) send(msg *chunk.Message) bool {
	return c.enqueue(outgoing{msg: msg}, false)
}

// enqueue hands a message to the writer. A full queue drops media and closes
// the connection for everything else.
func (c *connection) enqueue(o outgoing, droppable bool) bool {
	if c.closed.Load() {
		return false
	}

	select {
	case c.queue <- o:
		return true
	default:
	}

	if droppable {
		c.dropped.Add(1)
		return false
	}

	c.logger.Warn().WithError(ErrQueueFull).Log("Closing connection")
	c.close(ErrQueueFull)

	return false
}

func (c *connection) writeLoop() {
	var data []byte

	for {
		select {
		case <-c.done:
			return
		case o := <-c.queue:
			data = c.encode(data[:0], o)

			for len(c.queue) != 0 && len(data) < maxWriteBatch {
				data = c.encode(data, <-c.queue)
			}

			n, err := c.conn.Write(data)
			if n > 0 {
				c.server.collector.Egress(c.sid, int64(n))
			}

			if err != nil {
				c.close(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *connection) encode(dst []byte, o outgoing) []byte {
	if o.msg == nil {
		return append(dst, o.raw...)
	}

	dst = c.chunks.AppendEncode(dst, o.msg)

	if o.msg.TypeID == chunk.TypeSetChunkSize && len(o.msg.Body) >= 4 {
		c.chunks.SetOutChunkSize(bits.U32BE(o.msg.Body))
	}

	return dst
}

func (c *connection) close(err error) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.conn.Close()

		if err != nil {
			c.logger.Debug().WithError(err).Log("Connection closed")
		}
	})
}

func (c *connection) State() State {
	return State(c.state.Load())
}

func (c *connection) setState(s State) {
	c.state.Store(int32(s))
}

func (c *connection) Info() ConnectionInfo {
	c.lock.Lock()
	defer c.lock.Unlock()

	return ConnectionInfo{
		ID:        c.id,
		SessionID: c.sid,
		Remote:    c.remote,
		State:     c.State().String(),
		App:       c.app,
		Path:      c.path,
		StreamID:  c.streamID.Load(),
		CreatedAt: c.createdAt,
		Dropped:   c.dropped.Load(),
	}
}

func (c *connection) ID() uint64 {
	return c.id
}

func (c *connection) IsPublisher() bool {
	return c.publishing.Load()
}

func (c *connection) IsPlayer() bool {
	return c.playing.Load()
}

func (c *connection) Closed() bool {
	return c.closed.Load()
}

func (c *connection) SendMetadata(metadata amf.Value) bool {
	if metadata.Len() == 0 {
		return false
	}

	return c.enqueue(outgoing{msg: newData(c.streamID.Load(), amf.String("onMetaData"), metadata)}, true)
}

func (c *connection) SendAudio(timestamp uint32, data []byte) bool {
	return c.enqueue(outgoing{msg: newMedia(chunk.TypeAudio, c.streamID.Load(), timestamp, data)}, true)
}

// SendUnpublish tells a player that the publisher has left.
func (c *connection) SendUnpublish() bool {
	id := c.streamID.Load()

	return c.send(newUserControl(eventStreamEOF, id)) &&
		c.send(newStatus(id, levelStatus, CodePlayUnpublish, "Stream unpublished."))
}

func (c *connection) SendVideo(timestamp uint32, data []byte) bool {
	return c.enqueue(outgoing{msg: newMedia(chunk.TypeVideo, c.streamID.Load(), timestamp, data)}, true)
}

func argString(args []amf.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}

	return args[i].AsString()
}

func argNumber(args []amf.Value, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}

	return args[i].AsNumber()
}

// streamName returns the stream name without a query string.
func streamName(name string) string {
	name, _, _ = strings.Cut(name, "?")

	return name
}
