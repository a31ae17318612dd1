package log

import (
	"container/ring"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/mattn/go-isatty"
)

// Writer receives log events.
type Writer interface {
	Write(e *Event) error
	Close()
}

type formatWriter struct {
	writer    io.Writer
	level     Level
	formatter Formatter
}

func (w *formatWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	_, err := w.writer.Write(w.formatter.Bytes(e))

	return err
}

func (w *formatWriter) Close() {}

// NewJSONWriter writes one JSON object per line for all events up to level.
func NewJSONWriter(w io.Writer, level Level) Writer {
	return NewSyncWriter(&formatWriter{
		writer:    w,
		level:     level,
		formatter: NewJSONFormatter(),
	})
}

// NewConsoleWriter writes human readable lines for all events up to level.
// Colors are only used if w is a terminal.
func NewConsoleWriter(w io.Writer, level Level, useColor bool) Writer {
	return NewSyncWriter(&formatWriter{
		writer:    w,
		level:     level,
		formatter: NewConsoleFormatter(useColor && isTerminal(w)),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type topicWriter struct {
	writer Writer
	topics map[string]struct{}
}

// NewTopicWriter passes only events of the given components. An empty list
// passes all events.
func NewTopicWriter(writer Writer, topics []string) Writer {
	w := &topicWriter{
		writer: writer,
		topics: map[string]struct{}{},
	}

	for _, topic := range topics {
		w.topics[strings.ToLower(topic)] = struct{}{}
	}

	return w
}

func (w *topicWriter) Write(e *Event) error {
	if len(w.topics) != 0 {
		if _, ok := w.topics[strings.ToLower(e.Component)]; !ok {
			return nil
		}
	}

	return w.writer.Write(e)
}

func (w *topicWriter) Close() {
	w.writer.Close()
}

type syncWriter struct {
	lock   sync.Mutex
	writer Writer
}

func NewSyncWriter(writer Writer) Writer {
	return &syncWriter{
		writer: writer,
	}
}

func (w *syncWriter) Write(e *Event) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.writer.Write(e)
}

func (w *syncWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.writer.Close()
}

type multiWriter struct {
	writer []Writer
}

// NewMultiWriter writes each event to all writers. The first error is
// returned, but all writers receive the event.
func NewMultiWriter(writer ...Writer) Writer {
	return &multiWriter{
		writer: append([]Writer{}, writer...),
	}
}

func (w *multiWriter) Write(e *Event) error {
	var first error

	for _, writer := range w.writer {
		if err := writer.Write(e); err != nil && first == nil {
			first = err
		}
	}

	return first
}

func (w *multiWriter) Close() {
	for _, writer := range w.writer {
		writer.Close()
	}
}

// BufferWriter keeps the last events in memory.
type BufferWriter interface {
	Writer
	Events() []*Event
}

type bufferWriter struct {
	lines *ring.Ring
	lock  sync.RWMutex
	level Level
}

func NewBufferWriter(level Level, lines int) BufferWriter {
	b := &bufferWriter{
		level: level,
	}

	if lines > 0 {
		b.lines = ring.New(lines)
	}

	return b
}

func (w *bufferWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.lines != nil {
		w.lines.Value = e.clone()
		w.lines = w.lines.Next()
	}

	return nil
}

func (w *bufferWriter) Close() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.lines = nil
}

// Events returns the buffered events, oldest first.
func (w *bufferWriter) Events() []*Event {
	lines := []*Event{}

	w.lock.RLock()
	defer w.lock.RUnlock()

	if w.lines == nil {
		return lines
	}

	w.lines.Do(func(l interface{}) {
		if l == nil {
			return
		}

		lines = append(lines, l.(*Event).clone())
	})

	return lines
}

// ChannelWriter distributes events to subscribers.
type ChannelWriter interface {
	Writer

	Subscribe() (<-chan Event, func())
}

type channelWriter struct {
	publisher       chan *Event
	publisherClosed bool
	publisherLock   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
}

func NewChannelWriter() ChannelWriter {
	w := &channelWriter{
		publisher:  make(chan *Event, 1024),
		subscriber: map[string]chan Event{},
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	go w.broadcast()

	return w
}

func (w *channelWriter) Write(e *Event) error {
	w.publisherLock.Lock()
	defer w.publisherLock.Unlock()

	if w.publisherClosed {
		return fmt.Errorf("writer is closed")
	}

	select {
	case w.publisher <- e.clone():
	default:
		return fmt.Errorf("publisher queue full")
	}

	return nil
}

func (w *channelWriter) Close() {
	w.cancel()

	w.publisherLock.Lock()
	w.publisherClosed = true
	w.publisherLock.Unlock()

	w.subscriberLock.Lock()
	for _, c := range w.subscriber {
		close(c)
	}
	w.subscriber = map[string]chan Event{}
	w.subscriberLock.Unlock()
}

// Subscribe returns a channel with all events written after the call and a
// function to unsubscribe. Slow subscribers miss events.
func (w *channelWriter) Subscribe() (<-chan Event, func()) {
	c := make(chan Event, 1024)
	id := ""

	w.subscriberLock.Lock()
	for {
		id = shortuuid.New()
		if _, ok := w.subscriber[id]; !ok {
			w.subscriber[id] = c
			break
		}
	}
	w.subscriberLock.Unlock()

	unsubscribe := func() {
		w.subscriberLock.Lock()
		if _, ok := w.subscriber[id]; ok {
			delete(w.subscriber, id)
			close(c)
		}
		w.subscriberLock.Unlock()
	}

	return c, unsubscribe
}

func (w *channelWriter) broadcast() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.publisher:
			w.subscriberLock.Lock()
			for _, c := range w.subscriber {
				select {
				case c <- *e.clone():
				default:
				}
			}
			w.subscriberLock.Unlock()
		}
	}
}
