package prometheus

import (
	"github.com/datarhei/relay/rtmp"

	"github.com/prometheus/client_golang/prometheus"
)

type rtmpCollector struct {
	relay  string
	server rtmp.Server

	connectionsDesc *prometheus.Desc
	sessionsDesc    *prometheus.Desc
	publishersDesc  *prometheus.Desc
	playersDesc     *prometheus.Desc
	droppedDesc     *prometheus.Desc
	streamDesc      *prometheus.Desc
}

// NewRTMPCollector returns a collector for the numbers of an RTMP server and
// the number of players of each stream.
func NewRTMPCollector(relay string, s rtmp.Server) prometheus.Collector {
	return &rtmpCollector{
		relay:  relay,
		server: s,
		connectionsDesc: prometheus.NewDesc(
			"relay_rtmp_connections",
			"Current number of connections",
			[]string{"relay"}, nil),
		sessionsDesc: prometheus.NewDesc(
			"relay_rtmp_sessions",
			"Current number of sessions",
			[]string{"relay"}, nil),
		publishersDesc: prometheus.NewDesc(
			"relay_rtmp_publishers",
			"Current number of publishers",
			[]string{"relay"}, nil),
		playersDesc: prometheus.NewDesc(
			"relay_rtmp_players",
			"Current number of players",
			[]string{"relay"}, nil),
		droppedDesc: prometheus.NewDesc(
			"relay_rtmp_dropped_messages",
			"Number of media messages dropped for slow players of the current connections",
			[]string{"relay"}, nil),
		streamDesc: prometheus.NewDesc(
			"relay_rtmp_stream_players",
			"Current number of players by stream",
			[]string{"relay", "path"}, nil),
	}
}

func (c *rtmpCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionsDesc
	ch <- c.sessionsDesc
	ch <- c.publishersDesc
	ch <- c.playersDesc
	ch <- c.droppedDesc
	ch <- c.streamDesc
}

func (c *rtmpCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.server.Stats()

	ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(stats.Connections), c.relay)
	ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(stats.Sessions), c.relay)
	ch <- prometheus.MustNewConstMetric(c.publishersDesc, prometheus.GaugeValue, float64(stats.Publishers), c.relay)
	ch <- prometheus.MustNewConstMetric(c.playersDesc, prometheus.GaugeValue, float64(stats.Players), c.relay)
	ch <- prometheus.MustNewConstMetric(c.droppedDesc, prometheus.GaugeValue, float64(stats.Dropped), c.relay)

	for _, s := range c.server.Sessions() {
		ch <- prometheus.MustNewConstMetric(c.streamDesc, prometheus.GaugeValue, float64(len(s.Players)), c.relay, s.Path)
	}
}
