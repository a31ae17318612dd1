package rtmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/mem"
	"github.com/datarhei/relay/rtmp/amf"
	"github.com/datarhei/relay/rtmp/bits"
	"github.com/datarhei/relay/rtmp/chunk"
	"github.com/datarhei/relay/rtmp/handshake"
	"github.com/datarhei/relay/rtmp/url"
)

// ErrRejected is returned if the server answers a command with an error.
var ErrRejected = errors.New("rtmp: rejected")

const clientChunkSize = 4096

// ClientConfig for Dial
type ClientConfig struct {
	// Logger. Optional.
	Logger log.Logger

	// Timeout for each network operation. Optional.
	Timeout time.Duration
}

// Client is the client side of an RTMP connection. It publishes to or plays
// from a single stream.
type Client struct {
	conn    net.Conn
	url     *url.URL
	logger  log.Logger
	timeout time.Duration

	chunks   *chunk.Manager
	inbuf    *mem.Buffer
	buf      []byte
	received uint64
	acked    uint64
	window   uint32

	streamID uint32
	txn      float64

	writeLock sync.Mutex
}

// Dial connects to the RTMP URL rtmp://host[:port]/app/stream. It completes
// the handshake, connects to the app and creates a stream. Publish or Play
// must be called afterwards.
func Dial(ctx context.Context, rawurl string, config ClientConfig) (*Client, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", u.Address())
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:    conn,
		url:     u,
		logger:  config.Logger,
		timeout: config.Timeout,
		chunks:  chunk.NewManager(),
		inbuf:   mem.Get(),
		buf:     make([]byte, readBufferSize),
	}

	if c.logger == nil {
		c.logger = log.New("")
	}

	c.logger = c.logger.WithField("url", u.String())

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.handshake(); err != nil {
		c.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	if err := c.connect(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := c.createStream(); err != nil {
		c.Close()
		return nil, fmt.Errorf("createStream: %w", err)
	}

	if ctx.Err() != nil {
		c.Close()
		return nil, ctx.Err()
	}

	return c, nil
}

func (c *Client) handshake() error {
	hs := handshake.NewClient(handshake.Config{})

	c0c1, err := hs.Start()
	if err != nil {
		return err
	}

	if err := c.write(c0c1); err != nil {
		return err
	}

	for !hs.Done() {
		if err := c.read(); err != nil {
			return err
		}

		n, err := hs.Parse(c.inbuf.Bytes())
		if err != nil {
			return err
		}

		c.inbuf.Advance(n)

		if r := hs.Response(); r != nil {
			if err := c.write(r); err != nil {
				return err
			}
		}
	}

	return c.writeMessage(newSetChunkSize(clientChunkSize))
}

func (c *Client) connect() error {
	txn := c.nextTxn()

	object := amf.Object(map[string]amf.Value{
		"app":           amf.String(c.url.App),
		"type":          amf.String("nonprivate"),
		"flashVer":      amf.String("FMLE/3.0 (compatible; relay)"),
		"tcUrl":         amf.String(c.url.TcURL()),
		"fpad":          amf.Boolean(false),
		"capabilities":  amf.Number(15),
		"audioCodecs":   amf.Number(4071),
		"videoCodecs":   amf.Number(252),
		"videoFunction": amf.Number(1),
	})

	if err := c.writeMessage(newCommand(0, amf.String("connect"), amf.Number(txn), object)); err != nil {
		return err
	}

	_, err := c.waitResult(txn)

	return err
}

func (c *Client) createStream() error {
	txn := c.nextTxn()

	if err := c.writeMessage(newCommand(0, amf.String("createStream"), amf.Number(txn), amf.Null())); err != nil {
		return err
	}

	args, err := c.waitResult(txn)
	if err != nil {
		return err
	}

	id, ok := argNumber(args, 3)
	if !ok {
		return fmt.Errorf("%w: missing stream id", ErrProtocol)
	}

	c.streamID = uint32(id)

	return nil
}

// Publish announces the stream for publishing.
func (c *Client) Publish() error {
	err := c.writeMessage(newCommand(c.streamID, amf.String("publish"), amf.Number(c.nextTxn()), amf.Null(),
		amf.String(c.url.StreamName()), amf.String("live")))
	if err != nil {
		return err
	}

	return c.waitStatus(CodePublishStart)
}

// Play requests the stream for playing.
func (c *Client) Play() error {
	err := c.writeMessage(newCommand(c.streamID, amf.String("play"), amf.Number(c.nextTxn()), amf.Null(),
		amf.String(c.url.StreamName())))
	if err != nil {
		return err
	}

	return c.waitStatus(CodePlayStart)
}

func (c *Client) WriteAudio(timestamp uint32, data []byte) error {
	return c.writeMessage(newMedia(chunk.TypeAudio, c.streamID, timestamp, data))
}

func (c *Client) WriteVideo(timestamp uint32, data []byte) error {
	return c.writeMessage(newMedia(chunk.TypeVideo, c.streamID, timestamp, data))
}

func (c *Client) WriteMetadata(metadata amf.Value) error {
	return c.writeMessage(newData(c.streamID, amf.String("@setDataFrame"), amf.String("onMetaData"), metadata))
}

// ReadMessage returns the next message from the server. Protocol control
// messages are handled and not returned.
func (c *Client) ReadMessage() (*chunk.Message, error) {
	for {
		for c.chunks.HasMessage() {
			msg := c.chunks.GetMessage()
			if c.control(msg) {
				continue
			}

			return msg, nil
		}

		if err := c.read(); err != nil {
			return nil, err
		}

		n, err := c.chunks.Parse(c.inbuf.Bytes())
		if err != nil {
			return nil, err
		}

		c.inbuf.Advance(n)

		if c.window > 0 && c.received-c.acked >= uint64(c.window) {
			c.acked = c.received
			if err := c.writeMessage(newAcknowledgement(uint32(c.received))); err != nil {
				return nil, err
			}
		}
	}
}

// control handles protocol control messages. It returns false for all other
// messages.
func (c *Client) control(msg *chunk.Message) bool {
	switch msg.TypeID {
	case chunk.TypeSetChunkSize, chunk.TypeAbort, chunk.TypeAcknowledgement, chunk.TypeSetPeerBandwidth:
	case chunk.TypeWindowAckSize:
		if len(msg.Body) >= 4 {
			c.window = bits.U32BE(msg.Body)
		}
	case chunk.TypeUserControl:
		if len(msg.Body) >= 6 && bits.U16BE(msg.Body) == eventPingRequest {
			c.writeMessage(newUserControl(eventPingResponse, bits.U32BE(msg.Body[2:])))
		}
	default:
		return false
	}

	return true
}

// waitResult reads messages until the answer for the transaction arrives.
func (c *Client) waitResult(txn float64) ([]amf.Value, error) {
	for {
		msg, err := c.ReadMessage()
		if err != nil {
			return nil, err
		}

		if msg.TypeID != chunk.TypeCommandAMF0 {
			continue
		}

		args, _ := amf.DecodeArray(msg.Body)

		name, _ := argString(args, 0)
		id, _ := argNumber(args, 1)

		if id != txn {
			continue
		}

		switch name {
		case "_result":
			return args, nil
		case "_error":
			return args, fmt.Errorf("%w: %s", ErrRejected, describe(args, 3))
		}
	}
}

// waitStatus reads messages until an onStatus with the code or with level
// error arrives.
func (c *Client) waitStatus(code string) error {
	for {
		msg, err := c.ReadMessage()
		if err != nil {
			return err
		}

		if msg.TypeID != chunk.TypeCommandAMF0 {
			continue
		}

		args, _ := amf.DecodeArray(msg.Body)
		if name, _ := argString(args, 0); name != "onStatus" || len(args) < 4 {
			continue
		}

		level, _ := args[3].GetString("level")
		got, _ := args[3].GetString("code")

		if level == levelError {
			return fmt.Errorf("%w: %s", ErrRejected, describe(args, 3))
		}

		if got == code {
			return nil
		}
	}
}

func describe(args []amf.Value, i int) string {
	if i >= len(args) {
		return "unknown"
	}

	code, _ := args[i].GetString("code")
	description, _ := args[i].GetString("description")

	return code + " (" + description + ")"
}

func (c *Client) nextTxn() float64 {
	c.txn++
	return c.txn
}

func (c *Client) read() error {
	if c.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		c.received += uint64(n)
		c.inbuf.Write(c.buf[:n])
	}

	if err != nil && n == 0 {
		return err
	}

	return nil
}

func (c *Client) write(data []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if c.timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}

	_, err := c.conn.Write(data)

	return err
}

func (c *Client) writeMessage(msg *chunk.Message) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	data := c.chunks.Encode(msg)

	if msg.TypeID == chunk.TypeSetChunkSize {
		c.chunks.SetOutChunkSize(bits.U32BE(msg.Body))
	}

	if c.timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}

	_, err := c.conn.Write(data)

	return err
}

// StreamID returns the id of the stream created on the server.
func (c *Client) StreamID() uint32 {
	return c.streamID
}

func (c *Client) Close() error {
	c.writeMessage(newCommand(0, amf.String("deleteStream"), amf.Number(0), amf.Null(), amf.Number(float64(c.streamID))))

	return c.conn.Close()
}
