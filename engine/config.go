package engine

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/systems"
)

const (
	defaultQueueSize = 256
	defaultTargetFPS = 60
	maxWorkers       = 64
)

type EngineConfig struct {
	// The application name used in logs.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Directory holding one file per resource.
	DataDir string `toml:"data_dir"`
	// Bundle to load from instead of DataDir, if set.
	BundlePath string `toml:"bundle_path"`
	Workers    int    `toml:"workers"`
	QueueSize  int    `toml:"queue_size"`
	// Upper bound of completion passes per frame.
	MaxPasses int  `toml:"max_passes"`
	Autoload  bool `toml:"autoload"`
	// Watch DataDir and reload resources whose files change.
	HotReload bool `toml:"hot_reload"`
	TargetFPS int  `toml:"target_fps"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Name:      "anima",
		LogLevel:  "info",
		DataDir:   "data",
		Workers:   runtime.NumCPU(),
		QueueSize: defaultQueueSize,
		MaxPasses: systems.DefaultMaxPasses,
		TargetFPS: defaultTargetFPS,
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (EngineConfig, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("engine config %s: %w", path, err)
	}
	config.normalize()
	return config, nil
}

// normalize replaces unset or out of range values.
func (c *EngineConfig) normalize() {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	c.Workers = core.Clamp(c.Workers, 1, maxWorkers)
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = def.MaxPasses
	}
	c.TargetFPS = core.Clamp(c.TargetFPS, 0, 1000)
	if c.BundlePath != "" {
		// Files inside a bundle cannot change under us.
		c.HotReload = false
	}
}

func (c EngineConfig) systemManagerConfig() systems.SystemManagerConfig {
	return systems.SystemManagerConfig{
		Loader: systems.ResourceLoaderConfig{
			DataDir:    c.DataDir,
			BundlePath: c.BundlePath,
			Workers:    c.Workers,
			QueueSize:  c.QueueSize,
		},
		Manager: systems.ResourceManagerConfig{
			MaxPasses: c.MaxPasses,
			Autoload:  c.Autoload,
		},
	}
}
