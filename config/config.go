// Package config implements types for handling the configuation for the app.
package config

import (
	"time"

	"github.com/datarhei/relay/config/value"
	"github.com/datarhei/relay/config/vars"
	"github.com/datarhei/relay/log"

	haikunator "github.com/atrox/haikunatorgo/v2"
	"github.com/google/uuid"
)

// Version is the current layout version of the configuration.
const Version = 1

// Config is a wrapper for Data
type Config struct {
	vars vars.Variables

	Data
}

// New returns a Config which is initialized with its default values
func New() *Config {
	config := &Config{}

	config.init()

	return config
}

// Clone returns a deep copy of the configuration, including the merge state
// of the variables.
func (d *Config) Clone() *Config {
	data := New()

	data.Data = d.Data

	data.Log.Topics = copyStrings(d.Log.Topics)
	data.RTMP.Apps = copyStrings(d.RTMP.Apps)

	data.vars.Transfer(&d.vars)

	return data
}

func (d *Config) init() {
	d.vars.Register(value.NewInt64(&d.Version, Version), "version", "", "Configuration file layout version", true)
	d.vars.Register(value.NewTime(&d.CreatedAt, time.Now()), "created_at", "", "Configuration file creation time", false)
	d.vars.Register(value.NewString(&d.ID, uuid.New().String()), "id", "RELAY_ID", "ID for this instance", true)
	d.vars.Register(value.NewString(&d.Name, haikunator.New().Haikunate()), "name", "RELAY_NAME", "A human readable name for this instance", false)
	d.vars.Register(value.NewAddress(&d.Address, ":8080"), "address", "RELAY_ADDRESS", "HTTP API listening address, empty for disabling the API", false)

	// Log
	d.vars.Register(value.NewLogLevel(&d.Log.Level, "info"), "log.level", "RELAY_LOG_LEVEL", "Loglevel: silent, error, warn, info, debug", false)
	d.vars.Register(value.NewStringList(&d.Log.Topics, []string{}, ","), "log.topics", "RELAY_LOG_TOPICS", "Show only selected log topics", false)
	d.vars.Register(value.NewInt(&d.Log.MaxLines, 1000, 0, 1000000), "log.max_lines", "RELAY_LOG_MAX_LINES", "Number of latest log lines to keep in memory", false)

	// RTMP
	d.vars.Register(value.NewMustAddress(&d.RTMP.Address, ":1935"), "rtmp.address", "RELAY_RTMP_ADDRESS", "RTMP server listen address", true)
	d.vars.Register(value.NewGlobList(&d.RTMP.Apps, []string{}, ","), "rtmp.apps", "RELAY_RTMP_APPS", "Glob patterns of allowed apps, empty for all", false)
	d.vars.Register(value.NewInt(&d.RTMP.ChunkSize, 60000, 1, 60000), "rtmp.chunk_size", "RELAY_RTMP_CHUNK_SIZE", "Chunk size for outgoing messages", false)
	d.vars.Register(value.NewInt(&d.RTMP.QueueSize, 1024, 1, 1<<20), "rtmp.queue_size", "RELAY_RTMP_QUEUE_SIZE", "Number of messages that can be queued for a client", false)
	d.vars.Register(value.NewInt64(&d.RTMP.SweepInterval, 3), "rtmp.sweep_interval_sec", "RELAY_RTMP_SWEEP_INTERVAL_SEC", "Seconds between removing empty sessions", false)
	d.vars.Register(value.NewInt64(&d.RTMP.HandshakeTimeout, 10), "rtmp.handshake_timeout_sec", "RELAY_RTMP_HANDSHAKE_TIMEOUT_SEC", "Seconds a client has for the handshake, 0 for unlimited", false)
	d.vars.Register(value.NewRTMPURL(&d.RTMP.Upstream, ""), "rtmp.upstream", "RELAY_RTMP_UPSTREAM", "Base URL of an upstream RTMP server for unknown streams", false)

	// Sessions
	d.vars.Register(value.NewBool(&d.Sessions.Enable, true), "sessions.enable", "RELAY_SESSIONS_ENABLE", "Enable collecting session stats", false)

	// Metrics
	d.vars.Register(value.NewBool(&d.Metrics.Enable, false), "metrics.enable", "RELAY_METRICS_ENABLE", "Enable prometheus endpoint /metrics", false)

	// Debug
	d.vars.Register(value.NewBool(&d.Debug.Profiling, false), "debug.profiling", "RELAY_DEBUG_PROFILING", "Enable the gops agent", false)
	d.vars.Register(value.NewBool(&d.Debug.AutoMaxProcs, true), "debug.auto_max_procs", "RELAY_DEBUG_AUTO_MAX_PROCS", "Set GOMAXPROCS according to the CPU quota", false)
}

// Merge overrides the current values with the values from the environment
// variables.
func (d *Config) Merge() {
	d.vars.Merge()
}

// Validate validates the current state of the Config for completeness and
// sanity. Errors are written to the log. Use resetLogs to indicate to reset
// the logs prior validation.
func (d *Config) Validate(resetLogs bool) {
	if resetLogs {
		d.vars.ResetLogs()
	}

	if d.Version != Version {
		d.vars.Log(log.Lerror, "version", "unknown configuration layout version (found version %d, expecting version %d)", d.Version, Version)

		return
	}

	d.vars.Validate()

	if len(d.Address) != 0 && d.Address == d.RTMP.Address {
		d.vars.Log(log.Lerror, "rtmp.address", "the RTMP server must not listen on the same address as the HTTP API")
	}
}

// Messages calls for each log entry the provided callback. The level has the values 'error', 'warn', or 'info'.
// The name is the name of the configuration value, e.g. 'rtmp.address'
func (d *Config) Messages(logger func(level log.Level, v vars.Variable, message string)) {
	d.vars.Messages(logger)
}

// HasErrors returns whether there are some error messages in the log.
func (d *Config) HasErrors() bool {
	return d.vars.HasErrors()
}

// Overrides returns a list of configuration value names that have been overriden by an environment variable.
func (d *Config) Overrides() []string {
	return d.vars.Overrides()
}

// Variables returns the description of all configuration values.
func (d *Config) Variables() []vars.Variable {
	return d.vars.List()
}

func copyStrings(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)

	return dst
}
