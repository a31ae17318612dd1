package store

import (
	"github.com/datarhei/relay/config"
)

type dummyStore struct {
	current *config.Config
	active  *config.Config
}

// NewDummy returns a store that keeps the configuration only in memory.
func NewDummy() Store {
	s := &dummyStore{}

	cfg := config.New()
	cfg.Validate(true)

	s.current = cfg
	s.active = cfg.Clone()

	return s
}

func (c *dummyStore) Get() *config.Config {
	return c.current.Clone()
}

func (c *dummyStore) Set(d *config.Config) error {
	if err := validate(d); err != nil {
		return err
	}

	c.current = d.Clone()

	return nil
}

func (c *dummyStore) GetActive() *config.Config {
	return c.active.Clone()
}

func (c *dummyStore) SetActive(d *config.Config) error {
	if err := validate(d); err != nil {
		return err
	}

	c.active = d.Clone()

	return nil
}

func (c *dummyStore) Reload() error {
	return nil
}
