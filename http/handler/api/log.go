package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/http/handler/util"
	"github.com/datarhei/relay/log"

	"github.com/labstack/echo/v4"
)

// The LogHandler type provides handler functions for reading the application log
type LogHandler struct {
	buffer log.BufferWriter
	events log.ChannelWriter
}

// NewLog return a new Log type. You have to provide log buffer. The events
// are optional.
func NewLog(buffer log.BufferWriter, events log.ChannelWriter) *LogHandler {
	l := &LogHandler{
		buffer: buffer,
		events: events,
	}

	if l.buffer == nil {
		l.buffer = log.NewBufferWriter(log.Lsilent, 1)
	}

	return l
}

// Log returns the last log lines of the application
// @Summary Application log
// @ID log-3
// @Param format query string false "Format of the list of log events (*console, raw)"
// @Produce json
// @Success 200 {array} api.LogEvent "application log"
// @Success 200 {array} string "application log"
// @Router /api/v3/log [get]
func (p *LogHandler) Log(c echo.Context) error {
	format := util.DefaultQuery(c, "format", "console")

	events := p.buffer.Events()

	if format == "raw" {
		list := make([]api.LogEvent, len(events))

		for i, e := range events {
			list[i].Unmarshal(e)
		}

		return c.JSON(http.StatusOK, list)
	}

	formatter := log.NewConsoleFormatter(false)

	lines := make([]string, len(events))

	for i, e := range events {
		lines[i] = strings.TrimSpace(formatter.String(e))
	}

	return c.JSON(http.StatusOK, lines)
}

// Stream returns a stream of the log events as they are written
// @Summary Stream of log events
// @ID log-3-stream
// @Param component query string false "Only events of this component"
// @Produce json-stream
// @Success 200 {object} api.LogEvent
// @Router /api/v3/log/stream [get]
func (p *LogHandler) Stream(c echo.Context) error {
	if p.events == nil {
		return api.Err(http.StatusNotImplemented, "", "log streaming is not available")
	}

	component := strings.ToLower(c.QueryParam("component"))

	evts, cancel := p.events.Subscribe()
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	reqctx := c.Request().Context()

	res := c.Response()

	res.Header().Set(echo.HeaderContentType, "application/x-json-stream; charset=UTF-8")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "close")
	res.WriteHeader(http.StatusOK)

	res.Write([]byte("{\"event\": \"keepalive\"}\n"))
	res.Flush()

	enc := json.NewEncoder(res)
	event := api.LogEvent{}

	for {
		select {
		case <-reqctx.Done():
			return nil
		case <-ticker.C:
			res.Write([]byte("{\"event\": \"keepalive\"}\n"))
			res.Flush()
		case e, ok := <-evts:
			if !ok {
				return nil
			}

			if len(component) != 0 && strings.ToLower(e.Component) != component {
				continue
			}

			event.Unmarshal(&e)

			if err := enc.Encode(event); err != nil {
				return nil
			}

			res.Flush()
		}
	}
}
