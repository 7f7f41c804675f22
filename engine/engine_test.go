package engine

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
	"github.com/spaghettifunk/anima-resources/engine/systems"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "demo"
log_level = "debug"
data_dir = "assets"
workers = 1000
queue_size = 0
hot_reload = true
target_fps = 30
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", config.Name)
	assert.Equal(t, "assets", config.DataDir)
	assert.Equal(t, maxWorkers, config.Workers)
	assert.Equal(t, defaultQueueSize, config.QueueSize)
	assert.Equal(t, systems.DefaultMaxPasses, config.MaxPasses)
	assert.True(t, config.HotReload)
	assert.Equal(t, 30, config.TargetFPS)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("workers = \"many\""), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestNormalizeDisablesHotReloadForBundles(t *testing.T) {
	config := EngineConfig{BundlePath: "data.bundle", HotReload: true, TargetFPS: -5}
	config.normalize()
	assert.False(t, config.HotReload)
	assert.Zero(t, config.TargetFPS)
	assert.Equal(t, min(runtime.NumCPU(), maxWorkers), config.Workers)
}

func TestNewRequiresGame(t *testing.T) {
	_, err := New(&Game{})
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestEngineRunsFrames(t *testing.T) {
	dir := t.TempDir()
	id := resources.NewResourceID("text", "motd")
	require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), []byte("hello"), 0o644))

	config := DefaultConfig()
	config.DataDir = dir
	config.Workers = 2
	config.HotReload = true
	config.TargetFPS = 0
	// A resource outside any package needs autoload to come online.
	config.Autoload = true

	var got any
	shutdown := false
	g := &Game{Config: &config}
	g.FnInitialize = func() error {
		require.True(t, g.SystemManager.ResourceManager.TryLoad(0, id.Type, id.Name, 0))
		return nil
	}
	var e *Engine
	deadline := time.Now().Add(5 * time.Second)
	g.FnUpdate = func(time.Duration) error {
		rm := g.SystemManager.ResourceManager
		if _, resident := rm.References(id.Type, id.Name); resident {
			got = rm.Get(id.Type, id.Name)
			e.Stop()
		}
		if time.Now().After(deadline) {
			e.Stop()
		}
		return nil
	}
	g.FnShutdown = func() error {
		shutdown = true
		return nil
	}

	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	assert.Equal(t, "hello", got)
	assert.NotZero(t, e.Frames())
	require.NoError(t, e.Shutdown())
	assert.True(t, shutdown)
}
