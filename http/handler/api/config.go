package api

import (
	"net/http"
	"time"

	cfgstore "github.com/datarhei/relay/config/store"
	cfgvars "github.com/datarhei/relay/config/vars"
	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/http/api"
	"github.com/datarhei/relay/http/handler/util"
	"github.com/datarhei/relay/log"

	"github.com/labstack/echo/v4"
)

// The ConfigHandler type provides handler functions for reading and manipulating
// the current config.
type ConfigHandler struct {
	store cfgstore.Store
}

// NewConfig return a new Config type. You have to provide a valid config store.
func NewConfig(store cfgstore.Store) *ConfigHandler {
	return &ConfigHandler{
		store: store,
	}
}

// Get returns the currently active configuration
// @Summary Retrieve the currently active configuration
// @ID config-3-get
// @Produce json
// @Success 200 {object} api.Config
// @Router /api/v3/config [get]
func (p *ConfigHandler) Get(c echo.Context) error {
	cfg := p.store.GetActive()

	apicfg := api.Config{}
	apicfg.Unmarshal(cfg)

	return c.JSON(http.StatusOK, apicfg)
}

// Variables lists all configuration values with their environment variables
// @Summary List all configuration values
// @ID config-3-variables
// @Produce json
// @Success 200 {array} api.ConfigVariable
// @Router /api/v3/config/variables [get]
func (p *ConfigHandler) Variables(c echo.Context) error {
	variables := p.store.GetActive().Variables()

	list := make([]api.ConfigVariable, len(variables))

	for i, v := range variables {
		list[i].Unmarshal(v)
	}

	return c.JSON(http.StatusOK, list)
}

// Set will set the given configuration as new active configuration
// @Summary Update the current configuration
// @Description Update the current configuration by providing a complete or partial configuration. Fields that are not provided will not be changed.
// @ID config-3-set
// @Accept json
// @Produce json
// @Param config body api.SetConfig true "Configuration"
// @Success 200 {string} string
// @Failure 400 {object} api.Error
// @Failure 409 {object} api.ConfigError
// @Router /api/v3/config [put]
func (p *ConfigHandler) Set(c echo.Context) error {
	body, err := util.ReadJSON(c)
	if err != nil {
		return api.Err(http.StatusBadRequest, "Invalid JSON", "%s", err)
	}

	version := api.ConfigVersion{}

	if err := json.Unmarshal(body, &version); err != nil {
		return api.Err(http.StatusBadRequest, "Invalid JSON", "%s", err)
	}

	cfg := p.store.Get()

	if version.Version != cfg.Version {
		return api.Err(http.StatusBadRequest, "Invalid config version", "version %d", version.Version)
	}

	cfg.LoadedAt = p.store.GetActive().LoadedAt

	// Missing fields keep their current values
	setcfg := api.NewSetConfig(cfg)

	if err := json.Unmarshal(body, &setcfg); err != nil {
		return api.Err(http.StatusBadRequest, "Invalid JSON", "%s", err)
	}

	if err := c.Validate(setcfg); err != nil {
		return api.Err(http.StatusBadRequest, "Invalid config", "%s", err)
	}

	setcfg.MergeTo(cfg)

	cfg.UpdatedAt = time.Now()

	// The environment variables take precedence. The merged config has to be
	// valid, but the config without the overrides is stored.
	mergedConfig := cfg.Clone()
	mergedConfig.Merge()

	mergedConfig.Validate(true)
	if mergedConfig.HasErrors() {
		errors := api.ConfigError{}

		mergedConfig.Messages(func(level log.Level, v cfgvars.Variable, message string) {
			if level != log.Lerror {
				return
			}

			errors[v.Name] = append(errors[v.Name], message)
		})

		return c.JSON(http.StatusConflict, errors)
	}

	if err := p.store.Set(cfg); err != nil {
		return api.Err(http.StatusBadRequest, "Failed to store config", "%s", err)
	}

	if err := p.store.SetActive(mergedConfig); err != nil {
		return api.Err(http.StatusBadRequest, "Failed to activate config", "%s", err)
	}

	return c.JSON(http.StatusOK, "OK")
}

// Reload will reload the currently active configuration
// @Summary Reload the currently active configuration
// @Description Reload the currently active configuration. This will restart the RTMP server and the API.
// @ID config-3-reload
// @Produce json
// @Success 200 {string} string
// @Router /api/v3/config/reload [get]
func (p *ConfigHandler) Reload(c echo.Context) error {
	p.store.Reload()

	return c.JSON(http.StatusOK, "OK")
}
