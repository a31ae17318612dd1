// Package event distributes events from a publisher to any number of
// subscribers.
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

type Event interface {
	Clone() Event
}

type CancelFunc func()

// EventSource is implemented by everything that emits events.
type EventSource interface {
	Events() (<-chan Event, CancelFunc, error)
}

var (
	ErrClosed    = errors.New("event: pubsub is closed")
	ErrQueueFull = errors.New("event: publisher queue full")
)

// PubSub fans out published events to all subscribers. Publishing never
// blocks. An event is dropped for a subscriber that doesn't keep up.
type PubSub struct {
	publisher       chan Event
	publisherClosed bool
	publisherLock   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
}

func NewPubSub() *PubSub {
	w := &PubSub{
		publisher:  make(chan Event, 1024),
		subscriber: map[string]chan Event{},
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	go w.broadcast()

	return w
}

func (w *PubSub) Publish(e Event) error {
	event := e.Clone()

	w.publisherLock.Lock()
	defer w.publisherLock.Unlock()

	if w.publisherClosed {
		return ErrClosed
	}

	select {
	case w.publisher <- event:
	default:
		return ErrQueueFull
	}

	return nil
}

// Close stops the distribution and closes all subscriber channels.
func (w *PubSub) Close() {
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

// Subscribe returns a channel with all events published after the call. The
// channel is closed by calling the returned function or by Close.
func (w *PubSub) Subscribe() (<-chan Event, CancelFunc) {
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
		defer w.subscriberLock.Unlock()

		if _, ok := w.subscriber[id]; ok {
			delete(w.subscriber, id)
			close(c)
		}
	}

	return c, unsubscribe
}

func (w *PubSub) broadcast() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.publisher:
			w.subscriberLock.Lock()
			for _, c := range w.subscriber {
				select {
				case c <- e.Clone():
				default:
				}
			}
			w.subscriberLock.Unlock()
		}
	}
}
