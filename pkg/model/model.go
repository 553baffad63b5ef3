// Package model resolves configured model names to the endpoint and
// credential an Upstream Call needs, and to the fixed or auto temperature
// a node referencing that model should use.
package model

import (
	"fmt"
	"sync"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/chorusdev/chorus/pkg/config"
)

// Config is one callable upstream endpoint.
type Config struct {
	Name            string
	BaseURL         string
	APIKey          string
	Temperature     *float64
	AutoTemperature bool
}

// Map is a process-wide, read-only lookup from model name to Config. It is
// built once from the loaded configuration and shared by every request;
// a Map itself is never mutated after construction. Reads still take the
// read lock.
type Map struct {
	mu     sync.RWMutex
	byName map[string]Config
}

// NewMap builds a Map from a configuration's model list.
func NewMap(models []config.ModelConfig) *Map {
	byName := make(map[string]Config, len(models))
	for _, m := range models {
		byName[m.Name] = Config{
			Name:            m.Name,
			BaseURL:         m.APIBase,
			APIKey:          m.APIKey,
			Temperature:     m.Temperature,
			AutoTemperature: m.AutoTemperature,
		}
	}
	return &Map{byName: byName}
}

// Get returns the model registered under name.
func (m *Map) Get(name string) (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.byName[name]
	if !ok {
		return Config{}, apperr.Newf(apperr.ConfigInvalid, "unknown model %q", name)
	}
	return cfg, nil
}

// Names returns every configured model name, in no particular order.
func (m *Map) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	return names
}

// String implements fmt.Stringer for debug logging.
func (c Config) String() string {
	return fmt.Sprintf("model(%s @ %s)", c.Name, c.BaseURL)
}
