package prometheus

import (
	"github.com/datarhei/relay/session"

	"github.com/prometheus/client_golang/prometheus"
)

type sessionCollector struct {
	relay     string
	collector session.Collector

	totalDesc     *prometheus.Desc
	activeDesc    *prometheus.Desc
	rxDesc        *prometheus.Desc
	txDesc        *prometheus.Desc
	rxBitrateDesc *prometheus.Desc
	txBitrateDesc *prometheus.Desc
}

func NewSessionCollector(relay string, c session.Collector) prometheus.Collector {
	return &sessionCollector{
		relay:     relay,
		collector: c,
		totalDesc: prometheus.NewDesc(
			"relay_session_total",
			"Total number of sessions",
			[]string{"relay"}, nil),
		activeDesc: prometheus.NewDesc(
			"relay_session_active",
			"Current number of active sessions",
			[]string{"relay"}, nil),
		rxDesc: prometheus.NewDesc(
			"relay_session_rx_bytes",
			"Total received bytes",
			[]string{"relay"}, nil),
		txDesc: prometheus.NewDesc(
			"relay_session_tx_bytes",
			"Total sent bytes",
			[]string{"relay"}, nil),
		rxBitrateDesc: prometheus.NewDesc(
			"relay_session_rx_bitrate",
			"Current ingress bitrate in bit/s",
			[]string{"relay"}, nil),
		txBitrateDesc: prometheus.NewDesc(
			"relay_session_tx_bitrate",
			"Current egress bitrate in bit/s",
			[]string{"relay"}, nil),
	}
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalDesc
	ch <- c.activeDesc
	ch <- c.rxDesc
	ch <- c.txDesc
	ch <- c.rxBitrateDesc
	ch <- c.txBitrateDesc
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	summary := c.collector.Summary()

	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.CounterValue, float64(summary.TotalSessions), c.relay)
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(summary.CurrentSessions), c.relay)
	ch <- prometheus.MustNewConstMetric(c.rxDesc, prometheus.CounterValue, float64(summary.TotalRxBytes), c.relay)
	ch <- prometheus.MustNewConstMetric(c.txDesc, prometheus.CounterValue, float64(summary.TotalTxBytes), c.relay)
	ch <- prometheus.MustNewConstMetric(c.rxBitrateDesc, prometheus.GaugeValue, summary.CurrentRxBitrate, c.relay)
	ch <- prometheus.MustNewConstMetric(c.txBitrateDesc, prometheus.GaugeValue, summary.CurrentTxBitrate, c.relay)
}
