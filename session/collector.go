// Package session accounts the traffic of connections. A session is one
// connection, identified by an id and grouped by a reference, e.g. the stream
// path.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/datarhei/relay/log"

	"github.com/prep/average"
)

// Session represents an active session
type Session struct {
	Collector    string                 `json:"collector"`
	ID           string                 `json:"id"`
	Reference    string                 `json:"reference"`
	Peer         string                 `json:"remote"`
	CreatedAt    time.Time              `json:"created_at"`
	Extra        map[string]interface{} `json:"extra"`
	RxBytes      uint64                 `json:"rx_bytes"`
	RxBitrate    float64                `json:"rx_bitrate"`     // bit/s
	TopRxBitrate float64                `json:"rx_top_bitrate"` // bit/s
	TxBytes      uint64                 `json:"tx_bytes"`
	TxBitrate    float64                `json:"tx_bitrate"`     // bit/s
	TopTxBitrate float64                `json:"tx_top_bitrate"` // bit/s
}

// Stats holds accumulated values of closed and active sessions.
type Stats struct {
	TotalSessions uint64 `json:"sessions"`
	TotalRxBytes  uint64 `json:"rx_bytes"`
	TotalTxBytes  uint64 `json:"tx_bytes"`
}

// Summary is a summary over all current and past sessions.
type Summary struct {
	CurrentSessions  uint64  `json:"current_sessions"`
	MaxSessions      uint64  `json:"max_sessions"`
	CurrentRxBitrate float64 `json:"current_rx_bitrate"` // bit/s
	CurrentTxBitrate float64 `json:"current_tx_bitrate"` // bit/s

	Active []Session `json:"active"`

	References map[string]Stats `json:"references"`
	Stats
}

// The Collector interface
type Collector interface {
	// Register registers a new session. A different id distinguishes different
	// sessions.
	Register(id, reference, peer string)

	// Extra adds arbitrary extra data to a session.
	Extra(id string, extra map[string]interface{})

	// Ingress adds size bytes of ingress traffic to a session.
	Ingress(id string, size int64)

	// Egress adds size bytes of egress traffic to a session.
	Egress(id string, size int64)

	// Close closes the session with the id. Returns false if the session is
	// not known.
	Close(id string) bool

	// IngressBitrate returns the current bitrate of all ingress traffic.
	IngressBitrate() float64

	// EgressBitrate returns the current bitrate of all egress traffic.
	EgressBitrate() float64

	// Active returns a list of currently active sessions.
	Active() []Session

	// Summary returns the summary of all active sessions and the history.
	Summary() Summary

	// Stop stops the collector.
	Stop()
}

type CollectorConfig struct {
	ID     string
	Logger log.Logger
}

type collector struct {
	id     string
	logger log.Logger

	sessions    map[string]*session
	maxSessions uint64
	history     map[string]Stats
	lock        sync.RWMutex

	rxBitrate *average.SlidingWindow
	txBitrate *average.SlidingWindow
}

func NewCollector(config CollectorConfig) Collector {
	c := &collector{
		id:       config.ID,
		logger:   config.Logger,
		sessions: map[string]*session{},
		history:  map[string]Stats{},
	}

	if c.logger == nil {
		c.logger = log.New("")
	}

	c.rxBitrate, _ = average.New(averageWindow, averageGranularity)
	c.txBitrate, _ = average.New(averageWindow, averageGranularity)

	return c
}

func (c *collector) Register(id, reference, peer string) {
	if len(id) == 0 {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.sessions[id]; ok {
		return
	}

	c.sessions[id] = newSession(id, reference, peer)

	if n := uint64(len(c.sessions)); n > c.maxSessions {
		c.maxSessions = n
	}

	c.logger.Debug().WithFields(log.Fields{
		"id":        id,
		"reference": reference,
		"peer":      peer,
	}).Log("Session registered")
}

func (c *collector) get(id string) *session {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.sessions[id]
}

func (c *collector) Extra(id string, extra map[string]interface{}) {
	if sess := c.get(id); sess != nil {
		sess.setExtra(extra)
	}
}

func (c *collector) Ingress(id string, size int64) {
	sess := c.get(id)
	if sess == nil {
		return
	}

	sess.ingress(size)
	c.rxBitrate.Add(size * 8)
}

func (c *collector) Egress(id string, size int64) {
	sess := c.get(id)
	if sess == nil {
		return
	}

	sess.egress(size)
	c.txBitrate.Add(size * 8)
}

func (c *collector) Close(id string) bool {
	c.lock.Lock()
	sess, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.lock.Unlock()

	if !ok {
		return false
	}

	sess.stop()

	snapshot := sess.snapshot(c.id)

	c.lock.Lock()
	stats := c.history[snapshot.Reference]
	stats.TotalSessions++
	stats.TotalRxBytes += snapshot.RxBytes
	stats.TotalTxBytes += snapshot.TxBytes
	c.history[snapshot.Reference] = stats
	c.lock.Unlock()

	c.logger.Debug().WithFields(log.Fields{
		"id":        id,
		"reference": snapshot.Reference,
		"rx_bytes":  snapshot.RxBytes,
		"tx_bytes":  snapshot.TxBytes,
	}).Log("Session closed")

	return true
}

func (c *collector) IngressBitrate() float64 {
	return c.rxBitrate.Average(averageWindow)
}

func (c *collector) EgressBitrate() float64 {
	return c.txBitrate.Average(averageWindow)
}

func (c *collector) Active() []Session {
	c.lock.RLock()
	list := make([]*session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		list = append(list, sess)
	}
	c.lock.RUnlock()

	sessions := make([]Session, 0, len(list))
	for _, sess := range list {
		sessions = append(sessions, sess.snapshot(c.id))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions
}

func (c *collector) Summary() Summary {
	summary := Summary{
		CurrentRxBitrate: c.IngressBitrate(),
		CurrentTxBitrate: c.EgressBitrate(),
		References:       map[string]Stats{},
	}

	summary.Active = c.Active()

	c.lock.RLock()
	summary.MaxSessions = c.maxSessions

	for reference, stats := range c.history {
		summary.References[reference] = stats
		summary.TotalSessions += stats.TotalSessions
		summary.TotalRxBytes += stats.TotalRxBytes
		summary.TotalTxBytes += stats.TotalTxBytes
	}
	c.lock.RUnlock()

	summary.CurrentSessions = uint64(len(summary.Active))

	// active sessions count into the totals as well
	for _, s := range summary.Active {
		stats := summary.References[s.Reference]
		stats.TotalSessions++
		stats.TotalRxBytes += s.RxBytes
		stats.TotalTxBytes += s.TxBytes
		summary.References[s.Reference] = stats

		summary.TotalSessions++
		summary.TotalRxBytes += s.RxBytes
		summary.TotalTxBytes += s.TxBytes
	}

	return summary
}

func (c *collector) Stop() {
	c.lock.Lock()
	sessions := c.sessions
	c.sessions = map[string]*session{}
	c.lock.Unlock()

	for _, sess := range sessions {
		sess.stop()
	}

	c.rxBitrate.Stop()
	c.txBitrate.Stop()
}

type nullCollector struct{}

// NewNullCollector returns a Collector that doesn't collect anything.
func NewNullCollector() Collector { return &nullCollector{} }

func (n *nullCollector) Register(id, reference, peer string)           {}
func (n *nullCollector) Extra(id string, extra map[string]interface{}) {}
func (n *nullCollector) Ingress(id string, size int64)                 {}
func (n *nullCollector) Egress(id string, size int64)                  {}
func (n *nullCollector) Close(id string) bool                          { return true }
func (n *nullCollector) IngressBitrate() float64                       { return 0.0 }
func (n *nullCollector) EgressBitrate() float64                        { return 0.0 }
func (n *nullCollector) Active() []Session                             { return []Session{} }
func (n *nullCollector) Summary() Summary                              { return Summary{} }
func (n *nullCollector) Stop()                                         {}
