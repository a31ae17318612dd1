// Package time provides an exchangeable clock.
package time

import (
	"sync"
	"time"
)

type Source interface {
	Now() time.Time
}

type StdSource struct{}

func (s *StdSource) Now() time.Time {
	return time.Now()
}

// Millis returns the milliseconds elapsed since epoch, truncated to 32 bits
// as RTMP timestamps are.
func Millis(s Source, epoch time.Time) uint32 {
	return uint32(s.Now().Sub(epoch).Milliseconds())
}

// TestSource is a manually advanced clock.
type TestSource struct {
	N time.Time

	lock sync.Mutex
}

func (t *TestSource) Now() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.N
}

func (t *TestSource) Set(sec int64, nsec int64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = time.Unix(sec, nsec)
}

func (t *TestSource) Add(d time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.N = t.N.Add(d)
}
