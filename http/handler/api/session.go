package api

import (
	"net/http"

	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/session"

	"github.com/labstack/echo/v4"
)

// The SessionHandler type provides handlers to retrieve session information
type SessionHandler struct {
	collector session.Collector
}

// NewSession returns a new Session type. You have to provide a session collector.
func NewSession(collector session.Collector) *SessionHandler {
	return &SessionHandler{
		collector: collector,
	}
}

// Summary returns a summary of all active and past sessions
// @Summary Get a summary of all active and past sessions
// @ID session-3-summary
// @Produce json
// @Success 200 {object} api.SessionSummary
// @Router /api/v3/session [get]
func (s *SessionHandler) Summary(c echo.Context) error {
	summary := api.SessionSummary{}
	summary.Unmarshal(s.collector.Summary())

	return c.JSON(http.StatusOK, summary)
}

// Active returns a list of active sessions
// @Summary Get a list of active sessions
// @ID session-3-active
// @Produce json
// @Success 200 {array} api.Session
// @Router /api/v3/session/active [get]
func (s *SessionHandler) Active(c echo.Context) error {
	active := s.collector.Active()

	list := make([]api.Session, len(active))

	for i, sess := range active {
		list[i].Unmarshal(sess)
	}

	return c.JSON(http.StatusOK, list)
}
