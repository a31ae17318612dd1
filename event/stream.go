package event

import (
	"time"
)

// Stream actions
const (
	ActionPublishStart = "publish.start"
	ActionPublishStop  = "publish.stop"
	ActionPlayStart    = "Play.start"
	ActionPlayStop     = "play.stop"
)

// StreamEvent reports a change of a publisher or player on a stream path.
type StreamEvent struct {
	Action    string
	Path      string
	Client    string
	Timestamp time.Time
}

func NewStreamEvent(action, path, client string) *StreamEvent {
	return &StreamEvent{
		Action:    action,
		Path:      path,
		Client:    client,
		Timestamp: time.Now(),
	}
}

func (e *StreamEvent) Clone() Event {
	return &StreamEvent{
		Action:    e.Action,
		Path:      e.Path,
		Client:    e.Client,
		Timestamp: e.Timestamp,
	}
}
