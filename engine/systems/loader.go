package systems

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-resources/engine/containers"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
	"github.com/spaghettifunk/anima-resources/engine/resources/bundle"
)

// ResourceRequest describes one in-flight or completed load.
type ResourceRequest struct {
	// ID correlates the log lines of one request.
	ID          uuid.UUID
	PackageName resources.StringID
	Type        resources.StringID
	Name        resources.StringID
	// OnlineOrder is the position of the resource in its package.
	OnlineOrder uint32
	// Version is the format version registered for Type.
	Version      uint32
	Allocator    resources.Allocator
	LoadFunction resources.LoadFunc
	// Data is filled in by the loader.
	Data any
	// Err is set when the load failed.
	Err error
	// Reload requests replace a resource that already consumed its
	// package slot, so they skip package ordering.
	Reload bool
}

// IsSpurious reports whether rr stands for a cache hit rather than I/O.
func (rr *ResourceRequest) IsSpurious() bool {
	return rr.LoadFunction == nil
}

func (rr *ResourceRequest) ResourceID() resources.ResourceID {
	return resources.ResourceID{Type: rr.Type, Name: rr.Name}
}

// Loader is what the resource manager needs from a loader.
type Loader interface {
	// AddRequest queues a load. False means the loader is saturated and
	// the caller should retry later.
	AddRequest(rr ResourceRequest) bool
	// PopCompleted returns the oldest completed request.
	PopCompleted() (ResourceRequest, bool)
	// PushCompleted appends rr to the completion queue.
	PushCompleted(rr ResourceRequest)
	// Completed is signalled after a worker publishes a completion.
	Completed() <-chan struct{}
	OpenStream(typ, name resources.StringID) (resources.Stream, error)
	CloseStream(s resources.Stream) error
	// Bundled reports whether payloads come from a mapped bundle.
	Bundled() bool
}

/** @brief The configuration for the resource loader */
type ResourceLoaderConfig struct {
	/** @brief Directory holding one file per resource, named by resource id. */
	DataDir string
	/** @brief Bundle file to read from instead of DataDir, if set. */
	BundlePath string
	/** @brief Number of worker goroutines doing I/O. */
	Workers int
	/** @brief Number of requests that may wait for a worker before AddRequest rejects. */
	QueueSize int
}

// ResourceLoader performs I/O and type load functions on a worker pool
// and publishes finished requests on a completion queue.
type ResourceLoader struct {
	config  ResourceLoaderConfig
	jobs    *JobSystem
	bundle  *bundle.Bundle
	metrics *core.Metrics

	mu        sync.Mutex
	completed *containers.RingQueue[ResourceRequest]
	streams   map[resources.Stream]struct{}
	signal    chan struct{}
}

func NewResourceLoader(config ResourceLoaderConfig) (*ResourceLoader, error) {
	if config.BundlePath == "" && config.DataDir == "" {
		err := fmt.Errorf("func NewResourceLoader - either DataDir or BundlePath must be set")
		core.LogError(err.Error())
		return nil, err
	}

	var bnd *bundle.Bundle
	if config.BundlePath != "" {
		b, err := bundle.Open(config.BundlePath)
		if err != nil {
			core.LogError(err.Error())
			return nil, err
		}
		bnd = b
	} else if fi, err := os.Stat(config.DataDir); err != nil || !fi.IsDir() {
		err := fmt.Errorf("func NewResourceLoader - data dir '%s' is not a directory", config.DataDir)
		core.LogError(err.Error())
		return nil, err
	}

	js, err := NewJobSystem(config.Workers, config.QueueSize)
	if err != nil {
		if bnd != nil {
			_ = bnd.Close()
		}
		return nil, err
	}

	rl := &ResourceLoader{
		config:    config,
		jobs:      js,
		bundle:    bnd,
		metrics:   &core.Metrics{},
		completed: containers.NewRingQueue[ResourceRequest](64, true),
		streams:   make(map[resources.Stream]struct{}),
		signal:    make(chan struct{}, 1),
	}

	if bnd != nil {
		core.LogInfo("Resource loader initialized from bundle '%s' (%d entries, %d workers).", config.BundlePath, bnd.Len(), config.Workers)
	} else {
		core.LogInfo("Resource loader initialized with data dir '%s' (%d workers).", config.DataDir, config.Workers)
	}
	return rl, nil
}

func (rl *ResourceLoader) AddRequest(rr ResourceRequest) bool {
	accepted := rl.jobs.TrySubmit(JobTask{
		Run: func() error {
			rl.load(&rr)
			return nil
		},
	})
	if !accepted {
		core.LogDebug("resource loader saturated, request %s for %s rejected", rr.ID, rr.ResourceID())
	}
	return accepted
}

func (rl *ResourceLoader) load(rr *ResourceRequest) {
	f, err := rl.open(rr.ResourceID(), rr.Version)
	if err == nil {
		rr.Data, err = rr.LoadFunction(f, rr.Allocator)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		rr.Err = err
		rr.Data = nil
		rl.metrics.Failed.Add(1)
		core.LogError("request %s: failed to load %s: %s", rr.ID, rr.ResourceID(), err)
	} else {
		rl.metrics.Loaded.Add(1)
	}

	rl.PushCompleted(*rr)
	select {
	case rl.signal <- struct{}{}:
	default:
	}
}

func (rl *ResourceLoader) PopCompleted() (ResourceRequest, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rr, err := rl.completed.Dequeue()
	return rr, err == nil
}

func (rl *ResourceLoader) PushCompleted(rr ResourceRequest) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	// The queue grows, so this never fails.
	_ = rl.completed.Enqueue(rr)
}

func (rl *ResourceLoader) Completed() <-chan struct{} {
	return rl.signal
}

func (rl *ResourceLoader) Bundled() bool {
	return rl.bundle != nil
}

// Metrics returns the loader's I/O counters.
func (rl *ResourceLoader) Metrics() *core.Metrics {
	return rl.metrics
}

// Path returns the file a resource is read from in data dir mode.
func (rl *ResourceLoader) Path(id resources.ResourceID) string {
	return filepath.Join(rl.config.DataDir, id.String())
}

func (rl *ResourceLoader) OpenStream(typ, name resources.StringID) (resources.Stream, error) {
	id := resources.ResourceID{Type: typ, Name: name}
	s, err := rl.open(id, 0)
	if err != nil {
		return nil, err
	}
	rl.mu.Lock()
	rl.streams[s] = struct{}{}
	rl.mu.Unlock()
	return s, nil
}

func (rl *ResourceLoader) CloseStream(s resources.Stream) error {
	rl.mu.Lock()
	_, ok := rl.streams[s]
	delete(rl.streams, s)
	rl.mu.Unlock()
	if !ok {
		return core.ErrUnknownStream
	}
	return s.Close()
}

// open returns the payload of id. A non-zero version is checked against
// the version recorded in the bundle.
func (rl *ResourceLoader) open(id resources.ResourceID, version uint32) (stream, error) {
	if rl.bundle != nil {
		e, ok := rl.bundle.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("resource %s not in bundle: %w", id, os.ErrNotExist)
		}
		if version != 0 && e.Version != version {
			return nil, fmt.Errorf("resource %s: bundle has version %d, type expects %d", id, e.Version, version)
		}
		data := rl.bundle.Bytes(e)
		return &bundleStream{Reader: bytes.NewReader(data), id: id, data: data}, nil
	}

	f, err := os.Open(rl.Path(id))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileStream{File: f, id: id, size: fi.Size()}, nil
}

// Shutdown waits for in-flight loads, then closes open streams.
func (rl *ResourceLoader) Shutdown() error {
	if err := rl.jobs.Shutdown(); err != nil {
		return err
	}
	rl.mu.Lock()
	for s := range rl.streams {
		_ = s.Close()
	}
	rl.streams = make(map[resources.Stream]struct{})
	rl.mu.Unlock()
	return nil
}

// Close releases the bundle. Data aliasing it must be unloaded first.
func (rl *ResourceLoader) Close() error {
	if rl.bundle != nil {
		return rl.bundle.Close()
	}
	return nil
}

// stream is both a resources.File and a resources.Stream.
type stream interface {
	resources.File
	resources.Stream
}

type fileStream struct {
	*os.File
	id   resources.ResourceID
	size int64
}

func (f *fileStream) ID() resources.ResourceID { return f.id }
func (f *fileStream) Size() int64              { return f.size }
func (f *fileStream) Bytes() ([]byte, bool)    { return nil, false }

type bundleStream struct {
	*bytes.Reader
	id   resources.ResourceID
	data []byte
}

func (b *bundleStream) ID() resources.ResourceID { return b.id }
func (b *bundleStream) Bytes() ([]byte, bool)    { return b.data, true }
func (b *bundleStream) Close() error             { return nil }
