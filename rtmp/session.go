package rtmp

import (
	"sort"
	"sync"
	"time"

	"github.com/datarhei/relay/rtmp/amf"
)

// Sink is a participant of a session. The publisher feeds the session, all
// other sinks receive what the publisher sends.
type Sink interface {
	ID() uint64
	IsPublisher() bool
	IsPlayer() bool

	// Closed returns whether the sink is gone. Closed sinks are removed from
	// the session with the next broadcast.
	Closed() bool

	SendMetadata(metadata amf.Value) bool
	SendAudio(timestamp uint32, data []byte) bool
	SendVideo(timestamp uint32, data []byte) bool

	// SendUnpublish is called on players when the publisher leaves.
	SendUnpublish() bool
}

// member tracks what a player already received.
type member struct {
	sink Sink

	videoStarted bool
	audioStarted bool
	keyFrame     bool
}

// delivery is a send that happens after the session lock is released.
type delivery struct {
	sink   Sink
	prefix []byte
	data   []byte
}

// Session is a stream path with at most one publisher and any number of
// players.
type Session struct {
	path      string
	createdAt time.Time

	publisher Sink
	sinks     map[uint64]*member

	avcHeader []byte
	aacHeader []byte
	metadata  amf.Value
	keyFrame  bool

	lock sync.Mutex
}

func NewSession(path string) *Session {
	return &Session{
		path:      path,
		createdAt: time.Now(),
		sinks:     map[uint64]*member{},
		metadata:  amf.EcmaArray(nil),
	}
}

func (s *Session) Path() string {
	return s.path
}

// AddSink adds a sink to the session. A publisher replaces the cached
// sequence headers. It returns false if the sink is a publisher and the
// session already has one.
func (s *Session) AddSink(sink Sink) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if sink.IsPublisher() {
		if s.publisher != nil && s.publisher.ID() != sink.ID() {
			return false
		}

		s.publisher = sink
		s.avcHeader = nil
		s.aacHeader = nil
		s.keyFrame = false

		for _, m := range s.sinks {
			m.keyFrame = false
			m.videoStarted = false
			m.audioStarted = false
		}
	}

	s.sinks[sink.ID()] = &member{
		sink:     sink,
		keyFrame: s.keyFrame,
	}

	return true
}

// RemoveSink removes a sink. Removing the publisher drops the cached sequence
// headers and notifies the players. The metadata is kept.
func (s *Session) RemoveSink(sink Sink) {
	s.lock.Lock()

	delete(s.sinks, sink.ID())

	if s.publisher == nil || s.publisher.ID() != sink.ID() {
		s.lock.Unlock()
		return
	}

	s.publisher = nil
	s.avcHeader = nil
	s.aacHeader = nil
	s.keyFrame = false

	players := make([]Sink, 0, len(s.sinks))

	for _, m := range s.sinks {
		if m.sink.IsPlayer() && !m.sink.Closed() {
			players = append(players, m.sink)
		}
	}

	s.lock.Unlock()

	for _, p := range players {
		p.SendUnpublish()
	}
}

// BroadcastVideo sends a video frame to all players. A player that didn't
// receive video yet gets the cached sequence header first. As long as a
// sequence header is known, players only receive video once they got a key
// frame.
func (s *Session) BroadcastVideo(timestamp uint32, data []byte) {
	header := isVideoSequenceHeader(data)
	key := !header && isKeyFrame(data)

	s.lock.Lock()

	if header {
		s.avcHeader = data
	} else if key {
		s.keyFrame = true
	}

	cached := s.avcHeader

	deliveries := s.collect(func(m *member) (prefix, send bool) {
		if header {
			m.videoStarted = true
			return false, true
		}

		prefix = !m.videoStarted && cached != nil
		m.videoStarted = true

		if cached != nil && !m.keyFrame {
			if !key {
				return prefix, false
			}

			m.keyFrame = true
		}

		return prefix, true
	}, cached, data)

	s.lock.Unlock()

	for _, d := range deliveries {
		if d.prefix != nil {
			d.sink.SendVideo(timestamp, d.prefix)
		}

		if d.data != nil {
			d.sink.SendVideo(timestamp, d.data)
		}
	}
}

// BroadcastAudio sends an audio frame to all players. A player that didn't
// receive audio yet gets the cached AAC sequence header first.
func (s *Session) BroadcastAudio(timestamp uint32, data []byte) {
	header := isAACSequenceHeader(data)

	s.lock.Lock()

	if header {
		s.aacHeader = data
	}

	cached := s.aacHeader

	deliveries := s.collect(func(m *member) (prefix, send bool) {
		if header {
			m.audioStarted = true
			return false, true
		}

		prefix = !m.audioStarted && cached != nil
		m.audioStarted = true

		return prefix, true
	}, cached, data)

	s.lock.Unlock()

	for _, d := range deliveries {
		if d.prefix != nil {
			d.sink.SendAudio(timestamp, d.prefix)
		}

		if d.data != nil {
			d.sink.SendAudio(timestamp, d.data)
		}
	}
}

// collect walks the players and removes closed sinks. Must be called with
// the lock held.
func (s *Session) collect(decide func(m *member) (bool, bool), prefix, data []byte) []delivery {
	deliveries := make([]delivery, 0, len(s.sinks))

	for id, m := range s.sinks {
		if m.sink.Closed() {
			delete(s.sinks, id)
			continue
		}

		if !m.sink.IsPlayer() {
			continue
		}

		withPrefix, send := decide(m)
		if !withPrefix && !send {
			continue
		}

		d := delivery{sink: m.sink}
		if withPrefix {
			d.prefix = prefix
		}

		if send {
			d.data = data
		}

		deliveries = append(deliveries, d)
	}

	return deliveries
}

// BroadcastMetadata updates the cached metadata and sends it to all players.
// An object is merged into the cached metadata, an associative array
// replaces it. Other values are ignored.
func (s *Session) BroadcastMetadata(metadata amf.Value) {
	s.lock.Lock()

	switch metadata.Kind() {
	case amf.KindObject:
		s.metadata = s.metadata.Merge(metadata)
	case amf.KindEcmaArray:
		s.metadata = metadata.Clone()
	default:
		s.lock.Unlock()
		return
	}

	m := s.metadata.Clone()

	deliveries := s.collect(func(*member) (bool, bool) { return false, true }, nil, nil)

	s.lock.Unlock()

	for _, d := range deliveries {
		d.sink.SendMetadata(m)
	}
}

// Metadata returns a copy of the cached metadata.
func (s *Session) Metadata() amf.Value {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.metadata.Clone()
}

func (s *Session) HasPublisher() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.publisher != nil
}

// Publisher returns the id of the publisher or 0 if there's none.
func (s *Session) Publisher() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.publisher == nil {
		return 0
	}

	return s.publisher.ID()
}

// Len returns the number of sinks, the publisher included.
func (s *Session) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.sinks)
}

// Players returns the number of players.
func (s *Session) Players() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	n := 0
	for _, m := range s.sinks {
		if m.sink.IsPlayer() {
			n++
		}
	}

	return n
}

// SessionInfo describes a session.
type SessionInfo struct {
	Path         string
	CreatedAt    time.Time
	Publisher    uint64
	Players      []uint64
	HasVideo     bool
	HasAudio     bool
	MetadataKeys []string
}

func (s *Session) Info() SessionInfo {
	s.lock.Lock()
	defer s.lock.Unlock()

	info := SessionInfo{
		Path:         s.path,
		CreatedAt:    s.createdAt,
		Players:      []uint64{},
		HasVideo:     s.avcHeader != nil,
		HasAudio:     s.aacHeader != nil,
		MetadataKeys: s.metadata.Keys(),
	}

	if s.publisher != nil {
		info.Publisher = s.publisher.ID()
	}

	for id, m := range s.sinks {
		if m.sink.IsPlayer() {
			info.Players = append(info.Players, id)
		}
	}

	sort.Slice(info.Players, func(i, j int) bool { return info.Players[i] < info.Players[j] })

	return info
}
