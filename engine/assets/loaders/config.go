package loaders

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-resources/engine/resources"
)

const ConfigVersion uint32 = 1

// Config is a parsed config resource.
type Config struct {
	Values map[string]any
}

// String returns the string at key, or def.
func (c *Config) String(key, def string) string {
	if v, ok := c.Values[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer at key, or def.
func (c *Config) Int(key string, def int64) int64 {
	if v, ok := c.Values[key].(int64); ok {
		return v
	}
	return def
}

// Bool returns the boolean at key, or def.
func (c *Config) Bool(key string, def bool) bool {
	if v, ok := c.Values[key].(bool); ok {
		return v
	}
	return def
}

type ConfigLoader struct{}

func (cl *ConfigLoader) Load(f resources.File, a resources.Allocator) (any, error) {
	cfg := &Config{Values: make(map[string]any)}
	if err := toml.NewDecoder(f).Decode(&cfg.Values); err != nil {
		return nil, fmt.Errorf("config %s: %w", f.ID(), err)
	}
	return cfg, nil
}

func (cl *ConfigLoader) Unload(a resources.Allocator, data any) {}

func (cl *ConfigLoader) Online(name resources.StringID, m resources.Manager) {}

func (cl *ConfigLoader) Offline(name resources.StringID, m resources.Manager) {}
