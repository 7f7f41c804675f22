package systems

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
	"github.com/spaghettifunk/anima-resources/engine/resources/bundle"
)

func writeResource(t *testing.T, dir string, id resources.ResourceID, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), []byte(data), 0o644))
}

func waitCompleted(t *testing.T, rl *ResourceLoader) ResourceRequest {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if rr, ok := rl.PopCompleted(); ok {
			return rr
		}
		select {
		case <-rl.Completed():
		case <-deadline:
			t.Fatal("timed out waiting for a completion")
		}
	}
}

func TestNewResourceLoaderValidatesSource(t *testing.T) {
	_, err := NewResourceLoader(ResourceLoaderConfig{Workers: 1})
	assert.Error(t, err)

	_, err = NewResourceLoader(ResourceLoaderConfig{DataDir: filepath.Join(t.TempDir(), "nope"), Workers: 1})
	assert.Error(t, err)

	_, err = NewResourceLoader(ResourceLoaderConfig{DataDir: t.TempDir(), Workers: 0})
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestResourceLoaderLoadsFromDataDir(t *testing.T) {
	dir := t.TempDir()
	id := resources.NewResourceID("text", "hello")
	writeResource(t, dir, id, "hello world")

	rl, err := NewResourceLoader(ResourceLoaderConfig{DataDir: dir, Workers: 2, QueueSize: 4})
	require.NoError(t, err)
	defer rl.Close()
	defer rl.Shutdown()

	heap := resources.NewHeapAllocator()
	require.True(t, rl.AddRequest(ResourceRequest{
		Type: id.Type, Name: id.Name,
		Allocator:    heap,
		LoadFunction: resources.LoadFile,
	}))
	rr := waitCompleted(t, rl)
	require.NoError(t, rr.Err)
	assert.Equal(t, []byte("hello world"), rr.Data)
	assert.Equal(t, int64(11), heap.Allocated())
	assert.Equal(t, uint64(1), rl.Metrics().Loaded.Load())

	missing := resources.NewResourceID("text", "missing")
	require.True(t, rl.AddRequest(ResourceRequest{
		Type: missing.Type, Name: missing.Name,
		Allocator:    heap,
		LoadFunction: resources.LoadFile,
	}))
	rr = waitCompleted(t, rl)
	assert.ErrorIs(t, rr.Err, os.ErrNotExist)
	assert.Nil(t, rr.Data)
	assert.Equal(t, uint64(1), rl.Metrics().Failed.Load())
}

func TestResourceLoaderRejectsWhenSaturated(t *testing.T) {
	dir := t.TempDir()
	id := resources.NewResourceID("binary", "blob")
	writeResource(t, dir, id, "x")

	rl, err := NewResourceLoader(ResourceLoaderConfig{DataDir: dir, Workers: 1, QueueSize: 1})
	require.NoError(t, err)
	defer rl.Close()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	blocking := func(f resources.File, a resources.Allocator) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil, nil
	}
	rr := ResourceRequest{Type: id.Type, Name: id.Name, LoadFunction: blocking}

	require.True(t, rl.AddRequest(rr))
	<-started
	require.True(t, rl.AddRequest(rr), "one request may wait in the queue")
	assert.False(t, rl.AddRequest(rr), "loader is saturated")

	close(release)
	waitCompleted(t, rl)
	waitCompleted(t, rl)
	require.NoError(t, rl.Shutdown())
	assert.False(t, rl.AddRequest(rr), "no requests after shutdown")
}

func TestResourceLoaderStreams(t *testing.T) {
	dir := t.TempDir()
	id := resources.NewResourceID("binary", "stream")
	writeResource(t, dir, id, "0123456789")

	rl, err := NewResourceLoader(ResourceLoaderConfig{DataDir: dir, Workers: 1})
	require.NoError(t, err)
	defer rl.Close()
	defer rl.Shutdown()

	s, err := rl.OpenStream(id.Type, id.Name)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, int64(10), s.Size())

	_, err = s.Seek(5, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(rest))

	require.NoError(t, rl.CloseStream(s))
	assert.ErrorIs(t, rl.CloseStream(s), core.ErrUnknownStream)

	_, err = rl.OpenStream(id.Type, resources.HashString("missing"))
	assert.Error(t, err)
}

func TestResourceLoaderBundleMode(t *testing.T) {
	id := resources.NewResourceID("binary", "packed")
	w := bundle.NewWriter()
	require.NoError(t, w.Add(id, 3, []byte("bundled bytes")))
	path := filepath.Join(t.TempDir(), "data.bundle")
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	rl, err := NewResourceLoader(ResourceLoaderConfig{BundlePath: path, Workers: 1, QueueSize: 2})
	require.NoError(t, err)
	assert.True(t, rl.Bundled())

	heap := resources.NewHeapAllocator()
	require.True(t, rl.AddRequest(ResourceRequest{
		Type: id.Type, Name: id.Name, Version: 3,
		Allocator:    heap,
		LoadFunction: resources.LoadBundle,
	}))
	rr := waitCompleted(t, rl)
	require.NoError(t, rr.Err)
	assert.Equal(t, []byte("bundled bytes"), rr.Data)
	assert.Zero(t, heap.Allocated(), "bundle loads alias the mapping")

	require.True(t, rl.AddRequest(ResourceRequest{
		Type: id.Type, Name: id.Name, Version: 4,
		Allocator:    heap,
		LoadFunction: resources.LoadBundle,
	}))
	rr = waitCompleted(t, rl)
	assert.Error(t, rr.Err, "version mismatch")

	s, err := rl.OpenStream(id.Type, id.Name)
	require.NoError(t, err)
	b, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "bundled bytes", string(b))
	require.NoError(t, rl.CloseStream(s))

	require.NoError(t, rl.Shutdown())
	require.NoError(t, rl.Close())
}
