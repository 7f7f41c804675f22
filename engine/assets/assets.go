package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

var ErrWatcherClosed = errors.New("asset watcher already closed")

type AssetInfo struct {
	Path     string
	ID       resources.ResourceID
	Modified time.Time
}

// AssetWatcher watches a data directory and collects the resources whose
// files change, so they can be reloaded between frames.
type AssetWatcher struct {
	dir   string
	dirty map[resources.ResourceID]AssetInfo

	mutex sync.Mutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetWatcher(dir string) (*AssetWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, err
	}
	aw := &AssetWatcher{
		dir:      dir,
		dirty:    make(map[resources.ResourceID]AssetInfo),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go aw.start()
	core.LogInfo("watching %s for changes", dir)
	return aw, nil
}

func (aw *AssetWatcher) start() {
	defer close(aw.stopped)
	for {
		select {
		case e, ok := <-aw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				aw.handleFileEvent(e.Name)
			}
		case err, ok := <-aw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-aw.done:
			return
		}
	}
}

// handleFileEvent marks the resource stored in path as dirty. Files whose
// name is not a resource id are ignored.
func (aw *AssetWatcher) handleFileEvent(path string) {
	id, err := resources.ParseResourceID(filepath.Base(path))
	if err != nil {
		return
	}
	info := AssetInfo{Path: path, ID: id, Modified: time.Now()}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}

	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	aw.dirty[id] = info
}

// Dirty returns the resources changed since the last Process.
func (aw *AssetWatcher) Dirty() []AssetInfo {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	out := make([]AssetInfo, 0, len(aw.dirty))
	for _, info := range aw.dirty {
		out = append(out, info)
	}
	return out
}

// Process reloads every dirty resource that is resident and clears the
// dirty set. It must run on the goroutine that owns r. It returns the
// number of resources reloaded.
func (aw *AssetWatcher) Process(r Reloader) int {
	aw.mutex.Lock()
	dirty := aw.dirty
	aw.dirty = make(map[resources.ResourceID]AssetInfo)
	aw.mutex.Unlock()

	reloaded := 0
	for id := range dirty {
		if !r.CanGet(id.Type, id.Name) {
			continue
		}
		if r.Reload(id.Type, id.Name) != nil {
			core.LogInfo("reloaded %s", id)
			reloaded++
		}
	}
	return reloaded
}

func (aw *AssetWatcher) Close() error {
	aw.mutex.Lock()
	if aw.isClosed {
		aw.mutex.Unlock()
		return ErrWatcherClosed
	}
	aw.isClosed = true
	aw.mutex.Unlock()

	close(aw.done)
	<-aw.stopped
	return aw.fsnotify.Close()
}
