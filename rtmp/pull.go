package rtmp

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/datarhei/relay/event"
	"github.com/datarhei/relay/log"
	"github.com/datarhei/relay/rtmp/amf"
	"github.com/datarhei/relay/rtmp/chunk"
)

const pullTimeout = 10 * time.Second

// pull plays a stream from the upstream server and publishes it into a
// local session. It stops when the session has no players anymore.
type pull struct {
	id      uint64
	path    string
	url     string
	session *Session
	logger  log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// pull starts pulling the path from upstream. It returns the session the
// stream will be published to, or nil if no upstream is configured.
func (s *server) pull(path string) *Session {
	if len(s.upstream) == 0 {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if session, ok := s.sessions[path]; ok {
		return session
	}

	p := &pull{
		id:      s.connectionID.Add(1),
		path:    path,
		url:     s.upstream + path,
		session: NewSession(path),
	}

	p.logger = s.logger.WithFields(log.Fields{
		"path":     path,
		"upstream": p.url,
	})

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.session.AddSink(p)
	s.sessions[path] = p.session
	s.pulls[path] = p

	go s.runPull(p)

	return p.session
}

func (s *server) runPull(p *pull) {
	defer func() {
		p.closed.Store(true)
		p.session.RemoveSink(p)

		s.lock.Lock()
		delete(s.pulls, p.path)
		s.lock.Unlock()

		s.log("PLAY", "PROXYSTOP", p.path, p.url, "")
		s.notify(event.ActionPublishStop, p.path, p.url)
	}()

	s.log("PLAY", "PROXYSTART", p.path, p.url, "")

	ctx, cancel := context.WithTimeout(p.ctx, pullTimeout)
	client, err := Dial(ctx, p.url, ClientConfig{Logger: p.logger})
	cancel()

	if err != nil {
		p.logger.Error().WithError(err).Log("Proxying address failed")
		return
	}

	defer client.Close()

	if err := client.Play(); err != nil {
		p.logger.Error().WithError(err).Log("Proxying address failed")
		return
	}

	s.notify(event.ActionPublishStart, p.path, p.url)

	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				client.conn.Close()
				return
			case <-ticker.C:
				if p.session.Players() == 0 {
					p.cancel()
				}
			}
		}
	}()

	for {
		msg, err := client.ReadMessage()
		if err != nil {
			if p.ctx.Err() == nil {
				p.logger.Warn().WithError(err).Log("Upstream closed")
			}

			p.cancel()

			return
		}

		switch msg.TypeID {
		case chunk.TypeAudio:
			p.session.BroadcastAudio(msg.Timestamp, msg.Body)
		case chunk.TypeVideo:
			p.session.BroadcastVideo(msg.Timestamp, msg.Body)
		case chunk.TypeDataAMF0:
			args, _ := amf.DecodeArray(msg.Body)
			if name, _ := argString(args, 0); name == "onMetaData" && len(args) > 1 {
				p.session.BroadcastMetadata(args[1])
			}
		}
	}
}

func (p *pull) ID() uint64 {
	return p.id
}

func (p *pull) IsPublisher() bool {
	return true
}

func (p *pull) IsPlayer() bool {
	return false
}

func (p *pull) Closed() bool {
	return p.closed.Load()
}

func (p *pull) SendMetadata(amf.Value) bool {
	return false
}

func (p *pull) SendAudio(uint32, []byte) bool {
	return false
}

func (p *pull) SendUnpublish() bool {
	return false
}

func (p *pull) SendVideo(uint32, []byte) bool {
	return false
}
