package mem

import (
	"sync"
)

// DefaultMaxPooled is the largest capacity a buffer may have to be kept by
// the default pool.
const DefaultMaxPooled = 1 << 20

// BufferPool reuses buffers between connections. Buffers that have grown
// beyond the limit are dropped on Put so a single oversized message doesn't
// pin its memory for the lifetime of the process.
type BufferPool struct {
	pool      sync.Pool
	maxPooled int
}

// NewBufferPool returns a pool that keeps buffers up to a capacity of
// maxPooled bytes. A maxPooled of 0 or less keeps every buffer.
func NewBufferPool(maxPooled int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return &Buffer{}
			},
		},
		maxPooled: maxPooled,
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *Buffer {
	buf := p.pool.Get().(*Buffer)
	buf.Reset()

	return buf
}

// Put hands the buffer back. The buffer must not be used afterwards.
func (p *BufferPool) Put(buf *Buffer) {
	if buf == nil {
		return
	}

	if p.maxPooled > 0 && buf.Cap() > p.maxPooled {
		return
	}

	p.pool.Put(buf)
}

var DefaultBufferPool = NewBufferPool(DefaultMaxPooled)

func Get() *Buffer {
	return DefaultBufferPool.Get()
}

func Put(buf *Buffer) {
	DefaultBufferPool.Put(buf)
}
