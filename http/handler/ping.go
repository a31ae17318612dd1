package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderRelayID carries the ID of the answering relay instance.
const HeaderRelayID = "X-Relay-Id"

// PingHandler answers liveness checks of load balancers and orchestrators.
type PingHandler struct {
	id string
}

// NewPing returns a PingHandler that identifies itself with the relay ID.
func NewPing(id string) *PingHandler {
	return &PingHandler{
		id: id,
	}
}

// Ping returns pong
// @Summary Liveliness check
// @Description Answers GET with "pong" and HEAD with an empty body. The relay ID is sent in the X-Relay-Id header.
// @ID ping
// @Produce text/plain
// @Success 200 {string} string "pong"
// @Router /ping [get]
func (p *PingHandler) Ping(c echo.Context) error {
	uncached(c, p.id)

	if c.Request().Method == http.MethodHead {
		return c.NoContent(http.StatusOK)
	}

	return c.String(http.StatusOK, "pong")
}

// uncached marks the response as not cacheable and tags it with the relay ID.
func uncached(c echo.Context, id string) {
	h := c.Response().Header()

	h.Set(echo.HeaderCacheControl, "no-store")

	if len(id) != 0 {
		h.Set(HeaderRelayID, id)
	}
}
