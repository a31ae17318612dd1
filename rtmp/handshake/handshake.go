// Package handshake implements the simple RTMP handshake for both roles as
// byte driven state machines. Neither role does any I/O, the caller feeds the
// received bytes with Parse and sends what Response returns.
package handshake

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/datarhei/relay/math/rand"
	"github.com/datarhei/relay/rtmp/bits"
	timesrc "github.com/datarhei/relay/time"
)

const (
	Version = 3

	// PacketSize is the size of C1, C2, S1 and S2: time(4) + zero(4) + random(1528).
	PacketSize = 1536
	randomSize = PacketSize - 8

	c0c1Size   = 1 + PacketSize
	s0s1s2Size = 1 + 2*PacketSize
)

var (
	ErrVersion  = errors.New("handshake: unsupported version")
	ErrMismatch = errors.New("handshake: echo doesn't match")
	ErrTerminal = errors.New("handshake: already finished")
	ErrState    = errors.New("handshake: invalid state")
)

type State int

const (
	StateStart State = iota
	StateWaitC0C1
	StateWaitC2
	StateWaitS0S1S2
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateWaitC0C1:
		return "wait-c0c1"
	case StateWaitC2:
		return "wait-c2"
	case StateWaitS0S1S2:
		return "wait-s0s1s2"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	}

	return "unknown"
}

// Config allows to replace the clock and the source of randomness.
type Config struct {
	Clock  timesrc.Source
	Random io.Reader
}

type base struct {
	state    State
	response []byte
	clock    timesrc.Source
	epoch    time.Time
	random   io.Reader
}

func newBase(config Config, state State) base {
	b := base{
		state:  state,
		clock:  config.Clock,
		random: config.Random,
	}

	if b.clock == nil {
		b.clock = &timesrc.StdSource{}
	}

	if b.random == nil {
		b.random = rand.Reader
	}

	b.epoch = b.clock.Now()

	return b
}

// State returns the current state.
func (b *base) State() State {
	return b.state
}

// Done returns whether the handshake completed successfully.
func (b *base) Done() bool {
	return b.state == StateComplete
}

// Response returns the bytes that have to be sent to the peer after the last
// successful Parse. It returns nil if there's nothing to send. The response is
// handed out only once.
func (b *base) Response() []byte {
	r := b.response
	b.response = nil

	return r
}

// packet builds a C1 or S1: time, zero and random bytes.
func (b *base) packet() []byte {
	p := make([]byte, PacketSize)

	bits.PutU32BE(p, timesrc.Millis(b.clock, b.epoch))
	io.ReadFull(b.random, p[8:])

	return p
}

// Server is the server side of the handshake.
type Server struct {
	base

	s1 []byte
}

func NewServer(config Config) *Server {
	return &Server{
		base: newBase(config, StateWaitC0C1),
	}
}

// Parse consumes C0C1 or C2 from the beginning of data. It returns the number
// of consumed bytes. If data is too short, nothing is consumed and no error is
// returned. Any error leaves the handshake in StateError.
func (s *Server) Parse(data []byte) (int, error) {
	switch s.state {
	case StateWaitC0C1:
		if len(data) < c0c1Size {
			return 0, nil
		}

		if data[0] != Version {
			s.state = StateError
			return 0, ErrVersion
		}

		c1 := data[1:c0c1Size]
		s.s1 = s.packet()

		response := make([]byte, 0, s0s1s2Size)
		response = append(response, Version)
		response = append(response, s.s1...)
		response = append(response, c1...)

		s.response = response
		s.state = StateWaitC2

		return c0c1Size, nil
	case StateWaitC2:
		if len(data) < PacketSize {
			return 0, nil
		}

		c2 := data[:PacketSize]

		if bits.U32BE(c2[4:]) != 0 || !bytes.Equal(c2, s.s1) {
			s.state = StateError
			return 0, ErrMismatch
		}

		s.state = StateComplete

		return PacketSize, nil
	case StateComplete, StateError:
		return 0, ErrTerminal
	}

	return 0, ErrState
}

// Client is the client side of the handshake.
type Client struct {
	base

	c0c1 []byte
}

func NewClient(config Config) *Client {
	return &Client{
		base: newBase(config, StateStart),
	}
}

// Start returns C0C1 and waits for S0S1S2 afterwards.
func (c *Client) Start() ([]byte, error) {
	if c.state != StateStart {
		return nil, ErrState
	}

	c.c0c1 = append([]byte{Version}, c.packet()...)
	c.state = StateWaitS0S1S2

	return c.c0c1, nil
}

// Parse consumes S0S1S2. On success the C2 is available from Response.
func (c *Client) Parse(data []byte) (int, error) {
	switch c.state {
	case StateWaitS0S1S2:
		if len(data) < s0s1s2Size {
			return 0, nil
		}

		s0 := data[0]
		s1 := data[1 : 1+PacketSize]
		s2 := data[1+PacketSize : s0s1s2Size]

		if s0 != c.c0c1[0] {
			c.state = StateError
			return 0, ErrVersion
		}

		if !bytes.Equal(s2, c.c0c1[1:]) {
			c.state = StateError
			return 0, ErrMismatch
		}

		c.response = append([]byte(nil), s1...)
		c.state = StateComplete

		return s0s1s2Size, nil
	case StateComplete, StateError:
		return 0, ErrTerminal
	}

	return 0, ErrState
}
