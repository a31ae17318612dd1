package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type uptimeCollector struct {
	relay string
	start time.Time

	uptimeDesc *prometheus.Desc
}

func NewUptimeCollector(relay string, start time.Time) prometheus.Collector {
	return &uptimeCollector{
		relay: relay,
		start: start,
		uptimeDesc: prometheus.NewDesc(
			"relay_uptime_seconds",
			"Number of seconds the relay is up",
			[]string{"relay"}, nil),
	}
}

func (c *uptimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.uptimeDesc
}

func (c *uptimeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.CounterValue, time.Since(c.start).Seconds(), c.relay)
}
