package chunk

import (
	"sync"

	"github.com/datarhei/relay/rtmp/bits"
)

const (
	// DefaultChunkSize is the chunk size both directions start with.
	DefaultChunkSize = 128

	// MaxChunkSize is the largest accepted chunk size. A message can't be larger.
	MaxChunkSize = 0xFFFFFF
)

// Manager holds the chunk stream state of one connection. Incoming bytes are
// turned into a queue of messages, outgoing messages into chunks.
//
// SetChunkSize and Abort messages take effect on the decoding side as soon as
// they are complete, because the following chunks in the same buffer already
// depend on them. They are queued nevertheless.
type Manager struct {
	inChunkSize  uint32
	outChunkSize uint32

	decoders   map[uint32]*DecodeStream
	decodeLock sync.Mutex
	inBytes    uint64

	encoders   map[uint32]*EncodeStream
	encodeLock sync.Mutex

	queue     []*Message
	queueLock sync.Mutex
}

func NewManager() *Manager {
	m := &Manager{
		inChunkSize:  DefaultChunkSize,
		outChunkSize: DefaultChunkSize,
		decoders:     map[uint32]*DecodeStream{},
		encoders:     map[uint32]*EncodeStream{},
	}

	return m
}

func clampChunkSize(size uint32) uint32 {
	size &= 0x7FFFFFFF

	if size == 0 {
		return 0
	}

	if size > MaxChunkSize {
		size = MaxChunkSize
	}

	return size
}

// SetInChunkSize sets the chunk size of the incoming direction. A size of 0 is
// ignored.
func (m *Manager) SetInChunkSize(size uint32) {
	if size = clampChunkSize(size); size == 0 {
		return
	}

	m.decodeLock.Lock()
	m.inChunkSize = size
	m.decodeLock.Unlock()
}

func (m *Manager) InChunkSize() uint32 {
	m.decodeLock.Lock()
	defer m.decodeLock.Unlock()

	return m.inChunkSize
}

// SetOutChunkSize sets the chunk size of the outgoing direction. The peer has
// to be informed with a SetChunkSize message before.
func (m *Manager) SetOutChunkSize(size uint32) {
	if size = clampChunkSize(size); size == 0 {
		return
	}

	m.encodeLock.Lock()
	m.outChunkSize = size
	m.encodeLock.Unlock()
}

func (m *Manager) OutChunkSize() uint32 {
	m.encodeLock.Lock()
	defer m.encodeLock.Unlock()

	return m.outChunkSize
}

// Parse consumes as many complete chunks from b as possible and returns the
// number of consumed bytes. Complete messages are queued.
func (m *Manager) Parse(b []byte) (int, error) {
	m.decodeLock.Lock()
	defer m.decodeLock.Unlock()

	total := 0

	for total < len(b) {
		_, csid, n := DecodeBasicHeader(b[total:])
		if n == 0 {
			break
		}

		s, ok := m.decoders[csid]
		if !ok {
			s = NewDecodeStream(csid, m.submit)
			m.decoders[csid] = s
		}

		n, err := s.Feed(b[total:], m.inChunkSize)
		if err != nil {
			return total, err
		}

		if n == 0 {
			break
		}

		total += n
	}

	m.inBytes += uint64(total)

	return total, nil
}

// submit is called with decodeLock held.
func (m *Manager) submit(msg *Message) {
	if msg.StreamID == 0 && len(msg.Body) >= 4 {
		switch msg.TypeID {
		case TypeSetChunkSize:
			if size := clampChunkSize(bits.U32BE(msg.Body)); size != 0 {
				m.inChunkSize = size
			}
		case TypeAbort:
			if s, ok := m.decoders[bits.U32BE(msg.Body)]; ok {
				s.Abort()
			}
		}
	}

	m.queueLock.Lock()
	m.queue = append(m.queue, msg)
	m.queueLock.Unlock()
}

// InBytes returns the number of bytes consumed by Parse so far.
func (m *Manager) InBytes() uint64 {
	m.decodeLock.Lock()
	defer m.decodeLock.Unlock()

	return m.inBytes
}

// HasMessage returns whether a complete message is queued.
func (m *Manager) HasMessage() bool {
	m.queueLock.Lock()
	defer m.queueLock.Unlock()

	return len(m.queue) != 0
}

// GetMessage returns the oldest queued message or nil.
func (m *Manager) GetMessage() *Message {
	m.queueLock.Lock()
	defer m.queueLock.Unlock()

	if len(m.queue) == 0 {
		return nil
	}

	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]

	return msg
}

// ClearDecode drops all incoming state, including queued messages.
func (m *Manager) ClearDecode() {
	m.decodeLock.Lock()
	m.decoders = map[uint32]*DecodeStream{}
	m.decodeLock.Unlock()

	m.queueLock.Lock()
	m.queue = nil
	m.queueLock.Unlock()
}

// Encode returns the chunks of msg. The chunk stream is derived from the
// message type.
func (m *Manager) Encode(msg *Message) []byte {
	return m.AppendEncode(nil, msg)
}

// AppendEncode appends the chunks of msg to dst.
func (m *Manager) AppendEncode(dst []byte, msg *Message) []byte {
	m.encodeLock.Lock()
	defer m.encodeLock.Unlock()

	csid := msg.CSID
	if csid < 2 || csid > MaxCSID {
		csid = CSIDFor(msg.TypeID)
	}

	s, ok := m.encoders[csid]
	if !ok {
		s = NewEncodeStream(csid)
		m.encoders[csid] = s
	}

	return s.AppendEncode(dst, msg, m.outChunkSize)
}

// ClearEncode drops all outgoing header state. The next message on each chunk
// stream will carry a full header.
func (m *Manager) ClearEncode() {
	m.encodeLock.Lock()
	m.encoders = map[uint32]*EncodeStream{}
	m.encodeLock.Unlock()
}
