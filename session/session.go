package session

import (
	"sync"
	"time"

	"github.com/prep/average"
)

const (
	averageWindow      = 10 * time.Second
	averageGranularity = time.Second
)

type session struct {
	id        string
	reference string
	peer      string
	createdAt time.Time
	extra     map[string]interface{}

	rxBitrate *average.SlidingWindow
	txBitrate *average.SlidingWindow

	lock         sync.Mutex
	rxBytes      uint64
	txBytes      uint64
	topRxBitrate float64
	topTxBitrate float64
}

func newSession(id, reference, peer string) *session {
	s := &session{
		id:        id,
		reference: reference,
		peer:      peer,
		createdAt: time.Now(),
		extra:     map[string]interface{}{},
	}

	s.rxBitrate, _ = average.New(averageWindow, averageGranularity)
	s.txBitrate, _ = average.New(averageWindow, averageGranularity)

	return s
}

func (s *session) stop() {
	s.rxBitrate.Stop()
	s.txBitrate.Stop()
}

func (s *session) ingress(size int64) {
	s.rxBitrate.Add(size * 8)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.rxBytes += uint64(size)

	if bitrate := s.rxBitrate.Average(averageWindow); bitrate > s.topRxBitrate {
		s.topRxBitrate = bitrate
	}
}

func (s *session) egress(size int64) {
	s.txBitrate.Add(size * 8)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.txBytes += uint64(size)

	if bitrate := s.txBitrate.Average(averageWindow); bitrate > s.topTxBitrate {
		s.topTxBitrate = bitrate
	}
}

func (s *session) setExtra(extra map[string]interface{}) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for k, v := range extra {
		s.extra[k] = v
	}
}

func (s *session) snapshot(collector string) Session {
	s.lock.Lock()
	defer s.lock.Unlock()

	extra := make(map[string]interface{}, len(s.extra))
	for k, v := range s.extra {
		extra[k] = v
	}

	return Session{
		Collector:    collector,
		ID:           s.id,
		Reference:    s.reference,
		Peer:         s.peer,
		CreatedAt:    s.createdAt,
		Extra:        extra,
		RxBytes:      s.rxBytes,
		RxBitrate:    s.rxBitrate.Average(averageWindow),
		TopRxBitrate: s.topRxBitrate,
		TxBytes:      s.txBytes,
		TxBitrate:    s.txBitrate.Average(averageWindow),
		TopTxBitrate: s.topTxBitrate,
	}
}
