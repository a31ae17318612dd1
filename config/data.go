package config

import (
	"time"
)

// Data is the actual configuration data for the app
type Data struct {
	CreatedAt time.Time `json:"created_at"`
	LoadedAt  time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	Version   int64     `json:"version" validate:"eq=1" jsonschema:"minimum=1,maximum=1"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Log       struct {
		Level    string   `json:"level" validate:"oneof=silent error warn info debug" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,enum=silent"`
		Topics   []string `json:"topics"`
		MaxLines int      `json:"max_lines" validate:"gte=0"`
	} `json:"log"`
	RTMP struct {
		Address          string   `json:"address"`
		Apps             []string `json:"apps"`
		ChunkSize        int      `json:"chunk_size" validate:"min=1,max=60000" jsonschema:"minimum=1,maximum=60000"`
		QueueSize        int      `json:"queue_size" validate:"min=1" jsonschema:"minimum=1"`
		SweepInterval    int64    `json:"sweep_interval_sec" validate:"gte=0"`
		HandshakeTimeout int64    `json:"handshake_timeout_sec" validate:"gte=0"`
		Upstream         string   `json:"upstream"`
	} `json:"rtmp"`
	Sessions struct {
		Enable bool `json:"enable"`
	} `json:"sessions"`
	Metrics struct {
		Enable bool `json:"enable"`
	} `json:"metrics"`
	Debug struct {
		Profiling    bool `json:"profiling"`
		AutoMaxProcs bool `json:"auto_max_procs"`
	} `json:"debug"`
}

// SweepInterval returns the interval for removing empty sessions.
func (d *Data) SweepInterval() time.Duration {
	return time.Duration(d.RTMP.SweepInterval) * time.Second
}

// HandshakeTimeout returns the time a client has for the handshake.
func (d *Data) HandshakeTimeout() time.Duration {
	return time.Duration(d.RTMP.HandshakeTimeout) * time.Second
}
