package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-resources/engine/resources"
)

type fakeReloader struct {
	resident map[resources.ResourceID]bool
	reloaded []resources.ResourceID
}

func (f *fakeReloader) CanGet(typ, name resources.StringID) bool {
	return f.resident[resources.ResourceID{Type: typ, Name: name}]
}

func (f *fakeReloader) Reload(typ, name resources.StringID) any {
	id := resources.ResourceID{Type: typ, Name: name}
	f.reloaded = append(f.reloaded, id)
	return id
}

func TestAssetWatcherReloadsChangedResources(t *testing.T) {
	dir := t.TempDir()
	aw, err := NewAssetWatcher(dir)
	require.NoError(t, err)
	defer aw.Close()

	credits := resources.NewResourceID("text", "credits")
	other := resources.NewResourceID("text", "other")
	for _, id := range []resources.ResourceID{credits, other} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), []byte("v2"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return len(aw.Dirty()) == 2 }, 5*time.Second, 10*time.Millisecond)

	r := &fakeReloader{resident: map[resources.ResourceID]bool{credits: true}}
	assert.Equal(t, 1, aw.Process(r))
	assert.Equal(t, []resources.ResourceID{credits}, r.reloaded)
	assert.Empty(t, aw.Dirty())
}

func TestAssetWatcherIgnoresForeignFiles(t *testing.T) {
	aw := &AssetWatcher{dirty: make(map[resources.ResourceID]AssetInfo)}
	aw.handleFileEvent("/data/shader.glsl")
	aw.handleFileEvent("/data/" + resources.NewResourceID("image", "sky").String())

	dirty := aw.Dirty()
	require.Len(t, dirty, 1)
	assert.Equal(t, resources.NewResourceID("image", "sky"), dirty[0].ID)
}

func TestAssetWatcherClose(t *testing.T) {
	aw, err := NewAssetWatcher(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, aw.Close())
	assert.ErrorIs(t, aw.Close(), ErrWatcherClosed)
}

func TestNewAssetWatcherMissingDir(t *testing.T) {
	_, err := NewAssetWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
