package revcache

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/revcache/store"
)

// Config is the file form of the cache settings. Zero fields take defaults.
//
//	mode: background
//	workers: 2
//	queue_len: 512
//	wait_budget: 2ms
//	max_dense_id: 65536
type Config struct {
	// Mode is "inline" (default) or "background".
	Mode       string        `yaml:"mode" json:"mode"`
	Workers    int           `yaml:"workers" json:"workers"`           // background only; 0 => 1
	QueueLen   int           `yaml:"queue_len" json:"queue_len"`       // background only; 0 => 1024
	WaitBudget time.Duration `yaml:"wait_budget" json:"wait_budget"`   // 0 => use a value only once it is there
	MaxDenseID int           `yaml:"max_dense_id" json:"max_dense_id"` // 0 => store.DefaultMaxDenseID
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config data.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := c.PopulateMode(); err != nil {
		return err
	}
	switch {
	case c.Workers < 0:
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	case c.QueueLen < 0:
		return &ConfigError{Field: "queue_len", Reason: "must not be negative"}
	case c.WaitBudget < 0:
		return &ConfigError{Field: "wait_budget", Reason: "must not be negative"}
	case c.MaxDenseID < 0:
		return &ConfigError{Field: "max_dense_id", Reason: "must not be negative"}
	}
	return nil
}

// PopulateMode maps Mode onto store.Mode.
func (c Config) PopulateMode() (store.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "inline":
		return store.Inline, nil
	case "background":
		return store.Background, nil
	}
	return store.Inline, &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
}

// DenseLimit returns MaxDenseID with its default applied.
func (c Config) DenseLimit() int {
	return Coalesce(c.MaxDenseID, store.DefaultMaxDenseID)
}

// NewPool starts the worker pool the config asks for, or returns nil for
// inline production. The caller closes it.
func (c Config) NewPool() *store.Pool {
	if mode, _ := c.PopulateMode(); mode != store.Background {
		return nil
	}
	return store.NewPool(c.Workers, c.QueueLen)
}
