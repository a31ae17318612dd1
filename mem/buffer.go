// Package mem provides byte buffers for accumulating partially received
// data and a pool to reuse them.
package mem

import (
	"errors"
	"io"
)

// Buffer is a byte buffer that is filled at the end and consumed from the
// front. Consumed space is reclaimed on the next write.
type Buffer struct {
	data []byte
	off  int
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// Bytes returns the unconsumed bytes. The slice is only valid until the next
// modification of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.off:]
}

// Advance consumes n bytes.
func (b *Buffer) Advance(n int) {
	if n >= b.Len() {
		b.Reset()
		return
	}

	b.off += n
}

// Cap returns the capacity of the underlying storage.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Reset empties the buffer and keeps its capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}

	n := copy(b.data, b.data[b.off:])
	b.data = b.data[:n]
	b.off = 0
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.off > 0 && cap(b.data)-len(b.data) < len(p) {
		b.compact()
	}

	b.data = append(b.data, p...)

	return len(p), nil
}

// ReadOnce reads once from r and appends what has been read. It reads at most
// max bytes.
func (b *Buffer) ReadOnce(r io.Reader, max int) (int, error) {
	if b.off > 0 && cap(b.data)-len(b.data) < max {
		b.compact()
	}

	if cap(b.data)-len(b.data) < max {
		grown := make([]byte, len(b.data), len(b.data)+max)
		copy(grown, b.data)
		b.data = grown
	}

	n, err := r.Read(b.data[len(b.data) : len(b.data)+max])
	b.data = b.data[:len(b.data)+n]

	return n, err
}

// ReadFrom reads from r until EOF and appends to the buffer.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	size := int64(0)

	for {
		n, err := b.ReadOnce(r, 32*1024)
		size += int64(n)

		if err != nil {
			if errors.Is(err, io.EOF) {
				return size, nil
			}

			return size, err
		}
	}
}

// WriteTo writes the unconsumed bytes to w and consumes what has been written.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	b.Advance(n)

	return int64(n), err
}
