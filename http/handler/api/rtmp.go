package api

import (
	"net/http"

	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/http/handler/util"
	"github.com/datarhei/relay/rtmp"

	"github.com/labstack/echo/v4"
)

// The RTMPHandler type provides a handler for retrieving details from the RTMP server
type RTMPHandler struct {
	rtmp rtmp.Server
}

// NewRTMP returns a new RTMP type. You have to provide a RTMP server instance.
func NewRTMP(rtmp rtmp.Server) *RTMPHandler {
	return &RTMPHandler{
		rtmp: rtmp,
	}
}

// ListStreams lists all streams on the RTMP server
// @Summary List all RTMP streams
// @ID rtmp-3-list-streams
// @Produce json
// @Success 200 {array} api.RTMPStream
// @Router /api/v3/rtmp [get]
func (h *RTMPHandler) ListStreams(c echo.Context) error {
	sessions := h.rtmp.Sessions()

	list := make([]api.RTMPStream, len(sessions))

	for i, s := range sessions {
		list[i].Unmarshal(s)
	}

	return c.JSON(http.StatusOK, list)
}

// GetStream returns the details of a stream
// @Summary Details of a RTMP stream
// @ID rtmp-3-get-stream
// @Produce json
// @Param app path string true "App name"
// @Param name path string true "Stream name"
// @Success 200 {object} api.RTMPStream
// @Failure 404 {object} api.Error
// @Router /api/v3/rtmp/{app}/{name} [get]
func (h *RTMPHandler) GetStream(c echo.Context) error {
	path := "/" + util.PathParam(c, "app") + "/" + util.PathParam(c, "name")

	info, ok := h.rtmp.Session(path)
	if !ok {
		return api.Err(http.StatusNotFound, "", "stream not found: %s", path)
	}

	stream := api.RTMPStream{}
	stream.Unmarshal(info)

	return c.JSON(http.StatusOK, stream)
}

// ListConnections lists all connected clients
// @Summary List all RTMP connections
// @ID rtmp-3-list-connections
// @Produce json
// @Success 200 {array} api.RTMPConnection
// @Router /api/v3/rtmp/connections [get]
func (h *RTMPHandler) ListConnections(c echo.Context) error {
	connections := h.rtmp.Connections()

	list := make([]api.RTMPConnection, len(connections))

	for i, conn := range connections {
		list[i].Unmarshal(conn)
	}

	return c.JSON(http.StatusOK, list)
}

// Stats returns the current numbers of the RTMP server
// @Summary RTMP server stats
// @ID rtmp-3-stats
// @Produce json
// @Success 200 {object} api.RTMPStats
// @Router /api/v3/rtmp/stats [get]
func (h *RTMPHandler) Stats(c echo.Context) error {
	stats := api.RTMPStats{}
	stats.Unmarshal(h.rtmp.Stats())

	return c.JSON(http.StatusOK, stats)
}
