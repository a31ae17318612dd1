package api

import (
	"time"

	"github.com/datarhei/relay/config"
	"github.com/datarhei/relay/config/vars"
)

// ConfigVersion is used to only unmarshal the version field in order
// find out whether the uploaded config has a supported layout.
type ConfigVersion struct {
	Version int64 `json:"version"`
}

// ConfigData embeds config.Data
type ConfigData struct {
	config.Data
}

// Config is the config returned by the API
type Config struct {
	CreatedAt time.Time `json:"created_at"`
	LoadedAt  time.Time `json:"loaded_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Config ConfigData `json:"config"`

	Overrides []string `json:"overrides"`
}

// Unmarshal converts a config.Config to a Config.
func (c *Config) Unmarshal(cfg *config.Config) {
	if cfg == nil {
		return
	}

	c.CreatedAt = cfg.CreatedAt
	c.LoadedAt = cfg.LoadedAt
	c.UpdatedAt = cfg.UpdatedAt
	c.Config = ConfigData{cfg.Clone().Data}
	c.Overrides = cfg.Overrides()
}

// SetConfig embeds config.Data. It is used to send a new config to the server.
type SetConfig struct {
	config.Data
}

// NewSetConfig converts a config.Config into a SetConfig in order to prepopulate
// a SetConfig with the current values. The uploaded config can have missing fields that
// will be filled with the current values after unmarshalling the JSON.
func NewSetConfig(cfg *config.Config) SetConfig {
	return SetConfig{
		cfg.Clone().Data,
	}
}

// MergeTo merges a sent config into a config.Config
func (s *SetConfig) MergeTo(cfg *config.Config) {
	cfg.ID = s.ID
	cfg.Name = s.Name
	cfg.Address = s.Address

	cfg.Log = s.Log
	cfg.RTMP = s.RTMP
	cfg.Sessions = s.Sessions
	cfg.Metrics = s.Metrics
	cfg.Debug = s.Debug
}

// ConfigError is used to return error messages when uploading a new config
type ConfigError map[string][]string

// ConfigVariable describes a configuration value
type ConfigVariable struct {
	Name        string `json:"name"`
	EnvName     string `json:"env"`
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Merged      bool   `json:"merged"`
}

func (v *ConfigVariable) Unmarshal(variable vars.Variable) {
	v.Name = variable.Name
	v.EnvName = variable.EnvName
	v.Value = variable.Value
	v.Default = variable.Default
	v.Description = variable.Description
	v.Required = variable.Required
	v.Merged = variable.Merged
}
