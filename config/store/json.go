package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datarhei/relay/config"
	"github.com/datarhei/relay/encoding/json"
)

type jsonStore struct {
	path     string
	reloadFn func()

	base   *config.Config
	active *config.Config
	lock   sync.RWMutex
}

// NewJSON reads the JSON config file from the given path and writes it back
// with all missing values set to their defaults. If the file doesn't exist,
// it will be created.
func NewJSON(path string, reloadFn func()) (Store, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to determine absolute path of '%s': %w", path, err)
	}

	c := &jsonStore{
		path:     path,
		reloadFn: reloadFn,
		base:     config.New(),
	}

	if err := c.load(c.base); err != nil {
		return nil, fmt.Errorf("failed to read JSON from '%s': %w", path, err)
	}

	if err := c.store(c.base); err != nil {
		return nil, fmt.Errorf("failed to write JSON to '%s': %w", path, err)
	}

	return c, nil
}

func (c *jsonStore) Get() *config.Config {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.base.Clone()
}

func (c *jsonStore) Set(d *config.Config) error {
	if err := validate(d); err != nil {
		return err
	}

	data := d.Clone()

	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.store(data); err != nil {
		return fmt.Errorf("failed to write JSON to '%s': %w", c.path, err)
	}

	c.base = data

	return nil
}

func (c *jsonStore) GetActive() *config.Config {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.active != nil {
		return c.active.Clone()
	}

	return c.base.Clone()
}

func (c *jsonStore) SetActive(d *config.Config) error {
	if err := validate(d); err != nil {
		return err
	}

	c.lock.Lock()
	c.active = d.Clone()
	c.lock.Unlock()

	return nil
}

func (c *jsonStore) Reload() error {
	if c.reloadFn == nil {
		return nil
	}

	c.reloadFn()

	return nil
}

func (c *jsonStore) load(cfg *config.Config) error {
	jsondata, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	if len(jsondata) == 0 {
		return nil
	}

	if err := checkVersion(jsondata); err != nil {
		return err
	}

	if err := json.Unmarshal(jsondata, &cfg.Data); err != nil {
		return err
	}

	cfg.UpdatedAt = cfg.CreatedAt

	return nil
}

// store writes the configuration to a temporary file in the same directory
// and renames it to the actual path.
func (c *jsonStore) store(data *config.Config) error {
	jsondata, err := json.MarshalIndent(data)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp*")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(jsondata); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), c.path)
}
