package api

import (
	"time"

	"github.com/datarhei/relay/rtmp"
)

// RTMPStream is a stream on the RTMP server
type RTMPStream struct {
	Path         string   `json:"path" jsonschema:"required"`
	CreatedAt    int64    `json:"created_at"`
	Publisher    uint64   `json:"publisher"`
	Players      []uint64 `json:"players"`
	HasVideo     bool     `json:"has_video"`
	HasAudio     bool     `json:"has_audio"`
	MetadataKeys []string `json:"metadata"`
}

func (s *RTMPStream) Unmarshal(info rtmp.SessionInfo) {
	s.Path = info.Path
	s.CreatedAt = info.CreatedAt.Unix()
	s.Publisher = info.Publisher
	s.Players = append([]uint64{}, info.Players...)
	s.HasVideo = info.HasVideo
	s.HasAudio = info.HasAudio
	s.MetadataKeys = append([]string{}, info.MetadataKeys...)
}

// RTMPConnection is a client connected to the RTMP server
type RTMPConnection struct {
	ID        uint64 `json:"id" jsonschema:"required"`
	SessionID string `json:"session_id"`
	Remote    string `json:"remote"`
	State     string `json:"state"`
	App       string `json:"app"`
	Path      string `json:"path"`
	StreamID  uint32 `json:"stream_id"`
	Uptime    uint64 `json:"uptime_seconds"`
	Dropped   uint64 `json:"dropped_messages"`
}

func (c *RTMPConnection) Unmarshal(info rtmp.ConnectionInfo) {
	c.ID = info.ID
	c.SessionID = info.SessionID
	c.Remote = info.Remote
	c.State = info.State
	c.App = info.App
	c.Path = info.Path
	c.StreamID = info.StreamID
	c.Uptime = uint64(time.Since(info.CreatedAt).Seconds())
	c.Dropped = info.Dropped
}

// RTMPStats are the current numbers of the RTMP server
type RTMPStats struct {
	Connections uint64 `json:"connections"`
	Streams     uint64 `json:"streams"`
	Publishers  uint64 `json:"publishers"`
	Players     uint64 `json:"players"`
	Dropped     uint64 `json:"dropped_messages"`
}

func (s *RTMPStats) Unmarshal(stats rtmp.Stats) {
	s.Connections = stats.Connections
	s.Streams = stats.Sessions
	s.Publishers = stats.Publishers
	s.Players = stats.Players
	s.Dropped = stats.Dropped
}

// StreamEvent is a publish or play event of a stream
type StreamEvent struct {
	Timestamp int64  `json:"ts"`
	Action    string `json:"action"`
	Path      string `json:"path"`
	Client    string `json:"client"`
}
