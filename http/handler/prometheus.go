package handler

import (
	"net/http"

	"github.com/datarhei/relay/prometheus"

	"github.com/labstack/echo/v4"
)

// PrometheusHandler exposes the relay's collectors to a Prometheus scraper.
type PrometheusHandler struct {
	handler http.Handler
	id      string
}

// NewPrometheus returns a PrometheusHandler serving the collectors registered
// with metrics. Each response carries the relay ID.
func NewPrometheus(metrics prometheus.Reader, id string) *PrometheusHandler {
	return &PrometheusHandler{
		handler: metrics.HTTPHandler(),
		id:      id,
	}
}

// Metrics godoc
// @Summary Prometheus metrics
// @ID metrics
// @Produce text/plain
// @Success 200 {string} string
// @Router /metrics [get]
func (m *PrometheusHandler) Metrics(c echo.Context) error {
	uncached(c, m.id)

	m.handler.ServeHTTP(c.Response(), c.Request())

	return nil
}
