package testbed

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-resources/engine"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestStageData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, StageData(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	for _, e := range entries {
		_, err := resources.ParseResourceID(e.Name())
		assert.NoError(t, err, e.Name())
	}
}

func TestTestGameRunsToCompletion(t *testing.T) {
	config := engine.DefaultConfig()
	config.DataDir = t.TempDir()
	config.Workers = 2
	config.TargetFPS = 0

	tg, err := NewTestGame(&config)
	require.NoError(t, err)
	e, err := engine.New(tg.Game)
	require.NoError(t, err)
	tg.OnDone = e.Stop

	require.NoError(t, e.Initialize())
	// Stop a stuck demo so the test fails instead of hanging.
	timer := time.AfterFunc(10*time.Second, e.Stop)
	defer timer.Stop()
	require.NoError(t, e.Run())
	require.True(t, tg.state().reloaded, "demo did not finish before the deadline")

	rm := tg.SystemManager.ResourceManager
	assert.Contains(t, rm.Get(resources.TypeText, resources.HashString("credits")), "edited")

	require.NoError(t, e.Shutdown())
	assert.Zero(t, rm.Len())
	assert.Zero(t, rm.Allocator().Allocated())
}
