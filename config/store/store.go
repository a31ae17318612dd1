// Package store persists the relay configuration and keeps the active copy
// the running relay was started with.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datarhei/relay/config"
	"github.com/datarhei/relay/config/vars"
	"github.com/datarhei/relay/encoding/json"
	"github.com/datarhei/relay/log"
)

// ErrInvalid is returned by Set and SetActive if the configuration doesn't
// pass validation.
var ErrInvalid = errors.New("invalid configuration")

// Store holds two copies of the configuration. The stored one is what the
// relay will use after the next Reload, the active one is what it runs with
// right now.
type Store interface {
	// Get returns a copy of the stored configuration.
	Get() *config.Config

	// Set validates and persists the configuration. It doesn't affect the
	// running relay until Reload is called.
	Set(data *config.Config) error

	// GetActive returns a copy of the active configuration, or of the stored
	// one if none has been activated yet.
	GetActive() *config.Config

	// SetActive validates the configuration and keeps it in memory as the
	// active one.
	SetActive(data *config.Config) error

	// Reload asks the relay to restart with the stored configuration.
	Reload() error
}

// validate runs the validation of the configuration and turns the error
// messages into a single error wrapping ErrInvalid.
func validate(d *config.Config) error {
	d.Validate(true)

	if !d.HasErrors() {
		return nil
	}

	msgs := []string{}

	d.Messages(func(level log.Level, v vars.Variable, message string) {
		if level != log.Lerror {
			return
		}

		msgs = append(msgs, v.Name+": "+message)
	})

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// checkVersion rejects JSON data written for a different configuration
// layout. Empty data is accepted.
func checkVersion(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	version := struct {
		Version int64 `json:"version"`
	}{}

	if err := json.Unmarshal(data, &version); err != nil {
		return err
	}

	if version.Version != config.Version {
		return fmt.Errorf("unsupported configuration layout version %d, expected %d", version.Version, config.Version)
	}

	return nil
}
