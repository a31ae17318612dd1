package api

import (
	"github.com/datarhei/relay/session"
)

// Session is an active connection and its traffic
type Session struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	Peer      string  `json:"remote"`
	CreatedAt int64   `json:"created_at"`
	RxBytes   uint64  `json:"bytes_rx"`
	TxBytes   uint64  `json:"bytes_tx"`
	RxBitrate float64 `json:"bandwidth_rx_kbit"` // kbit/s
	TxBitrate float64 `json:"bandwidth_tx_kbit"` // kbit/s

	Extra map[string]interface{} `json:"extra"`
}

func (s *Session) Unmarshal(sess session.Session) {
	s.ID = sess.ID
	s.Reference = sess.Reference
	s.Peer = sess.Peer
	s.CreatedAt = sess.CreatedAt.Unix()
	s.RxBytes = sess.RxBytes
	s.TxBytes = sess.TxBytes
	s.RxBitrate = sess.RxBitrate / 1024
	s.TxBitrate = sess.TxBitrate / 1024

	s.Extra = map[string]interface{}{}
	for k, v := range sess.Extra {
		s.Extra[k] = v
	}
}

// SessionStats are the accumulated numbers of a reference
type SessionStats struct {
	TotalSessions uint64 `json:"sessions"`
	TotalRxBytes  uint64 `json:"traffic_rx_mb"`
	TotalTxBytes  uint64 `json:"traffic_tx_mb"`
}

// SessionSummary is a summary of the current and past sessions
type SessionSummary struct {
	CurrentSessions  uint64  `json:"sessions"`
	MaxSessions      uint64  `json:"max_sessions"`
	CurrentRxBitrate float64 `json:"bandwidth_rx_mbit"` // mbit/s
	CurrentTxBitrate float64 `json:"bandwidth_tx_mbit"` // mbit/s

	Active     []Session               `json:"active"`
	References map[string]SessionStats `json:"references"`

	SessionStats
}

func (s *SessionSummary) Unmarshal(sum session.Summary) {
	s.CurrentSessions = sum.CurrentSessions
	s.MaxSessions = sum.MaxSessions
	s.CurrentRxBitrate = sum.CurrentRxBitrate / 1024 / 1024
	s.CurrentTxBitrate = sum.CurrentTxBitrate / 1024 / 1024

	s.Active = make([]Session, len(sum.Active))
	for i, sess := range sum.Active {
		s.Active[i].Unmarshal(sess)
	}

	s.References = map[string]SessionStats{}
	for reference, stats := range sum.References {
		s.References[reference] = SessionStats{
			TotalSessions: stats.TotalSessions,
			TotalRxBytes:  stats.TotalRxBytes / 1024 / 1024,
			TotalTxBytes:  stats.TotalTxBytes / 1024 / 1024,
		}
	}

	s.TotalSessions = sum.TotalSessions
	s.TotalRxBytes = sum.TotalRxBytes / 1024 / 1024
	s.TotalTxBytes = sum.TotalTxBytes / 1024 / 1024
}
