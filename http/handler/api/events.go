package api

import (
	"net/http"
	"time"

	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/event"
	"github.com/datarhei/relay/glob"
	"github.com/datarhei/relay/http/api"

	"github.com/labstack/echo/v4"
)

// The EventsHandler type provides a handler for streaming the publish and
// play events of the RTMP server.
type EventsHandler struct {
	source event.EventSource
}

// NewEvents returns a new EventsHandler type
func NewEvents(source event.EventSource) *EventsHandler {
	return &EventsHandler{
		source: source,
	}
}

// StreamEvents returns a stream of publish and play events
// @Summary Stream of publish and play events
// @ID events-3-stream
// @Param path query string false "glob pattern for stream paths"
// @Produce json-stream
// @Success 200 {object} api.StreamEvent
// @Router /api/v3/events [get]
func (h *EventsHandler) StreamEvents(c echo.Context) error {
	var pattern glob.Glob

	if p := c.QueryParam("path"); len(p) != 0 {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return api.Err(http.StatusBadRequest, "", "invalid pattern: %s", err.Error())
		}

		pattern = g
	}

	evts, cancel, err := h.source.Events()
	if err != nil {
		return api.Err(http.StatusServiceUnavailable, "", "%s", err.Error())
	}
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	reqctx := c.Request().Context()

	res := c.Response()

	res.Header().Set(echo.HeaderContentType, "application/x-json-stream; charset=UTF-8")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "close")
	res.WriteHeader(http.StatusOK)

	res.Write([]byte("{\"action\": \"keepalive\"}\n"))
	res.Flush()

	enc := json.NewEncoder(res)

	for {
		select {
		case <-reqctx.Done():
			return nil
		case <-ticker.C:
			res.Write([]byte("{\"action\": \"keepalive\"}\n"))
			res.Flush()
		case e, ok := <-evts:
			if !ok {
				return nil
			}

			evt, ok := e.(*event.StreamEvent)
			if !ok {
				continue
			}

			if pattern != nil && !pattern.Match(evt.Path) {
				continue
			}

			if err := enc.Encode(api.StreamEvent{
				Timestamp: evt.Timestamp.Unix(),
				Action:    evt.Action,
				Path:      evt.Path,
				Client:    evt.Client,
			}); err != nil {
				return nil
			}

			res.Flush()
		}
	}
}
