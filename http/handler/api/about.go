package api

import (
	"net/http"
	"time"

	"github.com/datarhei/relay/app"
	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/psutil"

	"github.com/labstack/echo/v4"
)

// The AboutHandler type provides handler functions for retrieving details
// about the API version and build infos.
type AboutHandler struct {
	id        string
	name      string
	createdAt time.Time
	psutil    psutil.Util
}

// NewAbout returns a new About type. psutil is optional.
func NewAbout(id, name string, createdAt time.Time, psutil psutil.Util) *AboutHandler {
	return &AboutHandler{
		id:        id,
		name:      name,
		createdAt: createdAt,
		psutil:    psutil,
	}
}

// About returns API version and build infos
// @Summary API version and build infos
// @ID about
// @Produce json
// @Success 200 {object} api.About
// @Router /api [get]
func (p *AboutHandler) About(c echo.Context) error {
	about := api.About{
		App:       app.Name,
		Name:      p.name,
		ID:        p.id,
		CreatedAt: p.createdAt.Format(time.RFC3339),
		Uptime:    uint64(time.Since(p.createdAt).Seconds()),
		Version: api.AboutVersion{
			Number:   app.Version.String(),
			Commit:   app.Commit,
			Branch:   app.Branch,
			Build:    app.Build,
			Arch:     app.Arch,
			Compiler: app.Compiler,
		},
	}

	if p.psutil != nil {
		if info, err := p.psutil.Info(c.Request().Context()); err == nil {
			about.Resources = api.AboutResources{
				NCPU:     info.NCPU,
				CPU:      info.CPU,
				CPURelay: info.CPUProc,
				Mem:      info.MemUsed,
				MemTotal: info.MemTotal,
				MemRelay: info.MemProc,
			}
		}
	}

	return c.JSON(http.StatusOK, about)
}
