package systems

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-resources/engine/containers"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

/** @brief The configuration for the resource manager */
type ResourceManagerConfig struct {
	/** @brief Upper bound of queue passes per CompleteRequests call. */
	MaxPasses int
	/** @brief Start with autoload enabled. */
	Autoload bool
}

const DefaultMaxPasses = 16

type resourceData struct {
	packageName       resources.StringID
	references        uint32
	onlineSequenceNum uint32
	onlineOrder       uint32
	allocator         resources.Allocator
	handle            containers.Handle
}

// pendingLoad tracks a real request the loader accepted but the manager
// has not brought online yet.
type pendingLoad struct {
	references uint32
	// onlineSequenceNum carries a reloaded package's progress over to
	// the new instance.
	onlineSequenceNum uint32
	// tombstoned loads were unloaded while in flight; they are dropped
	// when they arrive.
	tombstoned bool
}

// ResourceManager owns the resident resources. Except for the loader's
// completion queue, it must only be used from one owner goroutine.
type ResourceManager struct {
	loader    Loader
	registry  *resources.TypeRegistry
	allocator *resources.HeapAllocator
	arena     *containers.Arena[any]

	resources map[resources.ResourceID]*resourceData
	pending   map[resources.ResourceID]*pendingLoad

	autoload  bool
	maxPasses int
	metrics   core.Metrics
}

func NewResourceManager(config ResourceManagerConfig, loader Loader) *ResourceManager {
	if config.MaxPasses <= 0 {
		config.MaxPasses = DefaultMaxPasses
	}
	return &ResourceManager{
		loader:    loader,
		registry:  resources.NewTypeRegistry(loader.Bundled()),
		allocator: resources.NewHeapAllocator(),
		arena:     containers.NewArena[any](256),
		resources: make(map[resources.ResourceID]*resourceData),
		pending:   make(map[resources.ResourceID]*pendingLoad),
		autoload:  config.Autoload,
		maxPasses: config.MaxPasses,
	}
}

// RegisterType records the operations of typ. Nil load/unload fall back
// to the plain file or bundle defaults, nil online/offline to no-ops.
func (rm *ResourceManager) RegisterType(typ resources.StringID, version uint32, funcs resources.TypeFuncs) bool {
	return rm.registry.Register(typ, version, funcs)
}

// RegisterLoader registers l as the operations of typ.
func (rm *ResourceManager) RegisterLoader(typ resources.StringID, version uint32, l resources.TypeLoader) bool {
	return rm.registry.RegisterLoader(typ, version, l)
}

// TryLoad requests a resource on behalf of a package. It returns false
// only when the loader is saturated; the caller retries later.
func (rm *ResourceManager) TryLoad(packageName, typ, name resources.StringID, onlineOrder uint32) bool {
	id := resources.ResourceID{Type: typ, Name: name}

	rd, resident := rm.resources[id]
	p, inFlight := rm.pending[id]
	if resident || inFlight {
		if resident {
			rd.references++
		} else {
			p.references++
			p.tombstoned = false
		}
		rm.metrics.Spurious.Add(1)
		rm.loader.PushCompleted(ResourceRequest{
			ID:          uuid.New(),
			PackageName: packageName,
			Type:        typ,
			Name:        name,
			OnlineOrder: onlineOrder,
		})
		return true
	}

	rr := rm.newRequest(packageName, typ, name, onlineOrder)
	if !rm.loader.AddRequest(rr) {
		rm.metrics.Rejected.Add(1)
		return false
	}
	rm.pending[id] = &pendingLoad{references: 1}
	rm.metrics.Requested.Add(1)
	core.LogDebug("request %s: loading %s (package %s, order %d)", rr.ID, id, packageName, onlineOrder)
	return true
}

func (rm *ResourceManager) newRequest(packageName, typ, name resources.StringID, onlineOrder uint32) ResourceRequest {
	td := rm.mustLookup(typ)
	return ResourceRequest{
		ID:           uuid.New(),
		PackageName:  packageName,
		Type:         typ,
		Name:         name,
		OnlineOrder:  onlineOrder,
		Version:      td.Version,
		Allocator:    rm.allocator,
		LoadFunction: td.Load,
	}
}

func (rm *ResourceManager) mustLookup(typ resources.StringID) resources.TypeData {
	td, ok := rm.registry.Lookup(typ)
	if !ok {
		err := fmt.Errorf("%w: %s", core.ErrTypeNotRegistered, resources.TypeName(typ))
		core.LogError(err.Error())
		panic(err)
	}
	return td
}

// Unload drops one reference. The last reference takes the resource
// offline and frees it. Unloading a resource that is still in flight
// drops the load when it arrives.
func (rm *ResourceManager) Unload(typ, name resources.StringID) {
	id := resources.ResourceID{Type: typ, Name: name}
	if rd, ok := rm.resources[id]; ok {
		rd.references--
		if rd.references == 0 {
			rm.destroy(id, rd)
		}
		return
	}
	if p, ok := rm.pending[id]; ok && !p.tombstoned {
		p.references--
		if p.references == 0 {
			p.tombstoned = true
			core.LogDebug("resource %s unloaded while in flight, dropping it on arrival", id)
		}
		return
	}
	err := fmt.Errorf("%w: unload %s", core.ErrNotLoaded, id)
	core.LogError(err.Error())
	panic(err)
}

func (rm *ResourceManager) destroy(id resources.ResourceID, rd *resourceData) {
	td := rm.mustLookup(id.Type)
	td.Offline(id.Name, rm)
	data, err := rm.arena.Release(rd.handle)
	if err != nil {
		core.LogError("resource %s: %s", id, err)
	} else {
		td.Unload(rd.allocator, data)
	}
	delete(rm.resources, id)
	rm.metrics.Offlined.Add(1)
	core.LogDebug("resource %s offline and unloaded", id)
}

// Reload replaces a resident resource by a fresh load of the same id and
// blocks until the new instance is online. The reference count carries
// over. It returns nil if the resource is not resident.
func (rm *ResourceManager) Reload(typ, name resources.StringID) any {
	id := resources.ResourceID{Type: typ, Name: name}
	rd, ok := rm.resources[id]
	if !ok {
		core.LogWarn("reload of %s ignored, resource is not loaded", id)
		return nil
	}
	references, sequence := rd.references, rd.onlineSequenceNum
	packageName, onlineOrder := rd.packageName, rd.onlineOrder
	rm.destroy(id, rd)

	rr := rm.newRequest(packageName, typ, name, onlineOrder)
	rr.Reload = true
	for !rm.loader.AddRequest(rr) {
		rm.metrics.Rejected.Add(1)
		rm.waitForProgress()
	}
	rm.metrics.Requested.Add(1)
	rm.pending[id] = &pendingLoad{references: references, onlineSequenceNum: sequence}
	core.LogDebug("request %s: reloading %s", rr.ID, id)

	return rm.waitResident(id)
}

// CanGet reports whether Get would succeed without blocking, or true
// when autoload is enabled.
func (rm *ResourceManager) CanGet(typ, name resources.StringID) bool {
	if rm.autoload {
		return true
	}
	_, ok := rm.resources[resources.ResourceID{Type: typ, Name: name}]
	return ok
}

// Get returns the data of a resource. With autoload enabled, a resource
// that is not resident is loaded first and Get blocks until it is online.
func (rm *ResourceManager) Get(typ, name resources.StringID) any {
	id := resources.ResourceID{Type: typ, Name: name}
	if !rm.CanGet(typ, name) {
		err := fmt.Errorf("%w: %s", core.ErrNotAvailable, id)
		core.LogError(err.Error())
		panic(err)
	}
	if rd, ok := rm.resources[id]; ok {
		data, _ := rm.arena.Get(rd.handle)
		return data
	}
	if _, ok := rm.pending[id]; !ok {
		for !rm.TryLoad(0, typ, name, 0) {
			rm.waitForProgress()
		}
	}
	return rm.waitResident(id)
}

// Handle returns a generation-checked handle to the data of a resident
// resource. The handle stops resolving once the resource is unloaded.
func (rm *ResourceManager) Handle(typ, name resources.StringID) (containers.Handle, bool) {
	rd, ok := rm.resources[resources.ResourceID{Type: typ, Name: name}]
	if !ok {
		return containers.InvalidHandle, false
	}
	return rd.handle, true
}

// Resolve returns the data behind h.
func (rm *ResourceManager) Resolve(h containers.Handle) (any, bool) {
	return rm.arena.Get(h)
}

func (rm *ResourceManager) OpenStream(typ, name resources.StringID) (resources.Stream, error) {
	return rm.loader.OpenStream(typ, name)
}

func (rm *ResourceManager) CloseStream(s resources.Stream) error {
	return rm.loader.CloseStream(s)
}

func (rm *ResourceManager) EnableAutoload(enable bool) {
	rm.autoload = enable
}

func (rm *ResourceManager) Autoload() bool {
	return rm.autoload
}

// bypassesOrdering reports whether resources of typ come online as soon
// as they arrive instead of in package order.
func bypassesOrdering(typ resources.StringID) bool {
	return typ == resources.TypePackage || typ == resources.TypeConfig
}

// waitResident blocks until id is online and returns its data.
func (rm *ResourceManager) waitResident(id resources.ResourceID) any {
	for {
		rm.CompleteRequests()
		if rd, ok := rm.resources[id]; ok {
			data, _ := rm.arena.Get(rd.handle)
			return data
		}
		if _, ok := rm.pending[id]; !ok {
			err := fmt.Errorf("%w: load of %s failed", core.ErrNotLoaded, id)
			core.LogError(err.Error())
			panic(err)
		}
		rm.waitForProgress()
	}
}

// waitForProgress blocks until a worker publishes a completion.
func (rm *ResourceManager) waitForProgress() {
	<-rm.loader.Completed()
}

// CompleteRequests drains the completion queue, bringing resources online.
// Package members only come online in the order their package declares;
// members that finished early are put back and retried on the next pass.
// It returns the number of requests consumed.
func (rm *ResourceManager) CompleteRequests() int {
	consumed := 0
	var deferred []ResourceRequest
	for pass := 0; pass < rm.maxPasses; pass++ {
		progress := 0
		deferred = deferred[:0]
		for {
			rr, ok := rm.loader.PopCompleted()
			if !ok {
				break
			}
			if rm.completeRequest(rr) {
				progress++
			} else {
				deferred = append(deferred, rr)
			}
		}
		for _, rr := range deferred {
			rm.loader.PushCompleted(rr)
		}
		rm.metrics.Requeued.Add(uint64(len(deferred)))
		consumed += progress
		if progress == 0 || len(deferred) == 0 {
			break
		}
	}
	return consumed
}

// completeRequest handles one completion. It returns false when rr has to
// wait for its turn.
func (rm *ResourceManager) completeRequest(rr ResourceRequest) bool {
	id := rr.ResourceID()

	if bypassesOrdering(rr.Type) || rm.autoload || rr.Reload {
		if !rr.IsSpurious() {
			rm.bringOnline(rr)
		}
		return true
	}

	pkgID := resources.ResourceID{Type: resources.TypePackage, Name: rr.PackageName}
	pkg, ok := rm.resources[pkgID]
	if _, inFlight := rm.pending[pkgID]; !ok && inFlight {
		// The package itself is still loading, or reloading.
		return false
	}
	if !ok {
		// Leftovers of a package that was unloaded before its members
		// arrived have nothing to order against.
		if p, inFlight := rm.pending[id]; rr.IsSpurious() || (inFlight && p.tombstoned) {
			if !rr.IsSpurious() {
				rm.bringOnline(rr)
			}
			return true
		}
		err := fmt.Errorf("%w: package %s of %s", core.ErrPackageNotLoaded, rr.PackageName, id)
		core.LogError(err.Error())
		panic(err)
	}

	if rr.OnlineOrder > pkg.onlineSequenceNum {
		return false
	}
	if rr.IsSpurious() {
		// A cache hit on a load that is still in flight counts once that
		// load is online.
		if _, inFlight := rm.pending[id]; inFlight {
			return false
		}
	}

	pkg.onlineSequenceNum++
	if !rr.IsSpurious() {
		rm.bringOnline(rr)
	}
	return true
}

func (rm *ResourceManager) bringOnline(rr ResourceRequest) {
	id := rr.ResourceID()
	p := rm.pending[id]
	delete(rm.pending, id)

	if rr.Err != nil {
		rm.metrics.Failed.Add(1)
		core.LogError("request %s: %s not brought online: %s", rr.ID, id, rr.Err)
		return
	}
	td := rm.mustLookup(rr.Type)
	if p == nil || p.tombstoned {
		td.Unload(rr.Allocator, rr.Data)
		core.LogDebug("request %s: dropped %s, it was unloaded while in flight", rr.ID, id)
		return
	}

	rm.resources[id] = &resourceData{
		packageName:       rr.PackageName,
		references:        p.references,
		onlineSequenceNum: p.onlineSequenceNum,
		onlineOrder:       rr.OnlineOrder,
		allocator:         rr.Allocator,
		handle:            rm.arena.Acquire(rr.Data),
	}
	td.Online(rr.Name, rm)
	rm.metrics.Onlined.Add(1)
	core.LogDebug("request %s: %s online", rr.ID, id)
}

// References returns the reference count of a resident resource.
func (rm *ResourceManager) References(typ, name resources.StringID) (uint32, bool) {
	rd, ok := rm.resources[resources.ResourceID{Type: typ, Name: name}]
	if !ok {
		return 0, false
	}
	return rd.references, true
}

// OnlineSequenceNum returns how many members of a resident package have
// come online so far.
func (rm *ResourceManager) OnlineSequenceNum(packageName resources.StringID) (uint32, bool) {
	rd, ok := rm.resources[resources.ResourceID{Type: resources.TypePackage, Name: packageName}]
	if !ok {
		return 0, false
	}
	return rd.onlineSequenceNum, true
}

// IsPending reports whether a load for the resource is in flight.
func (rm *ResourceManager) IsPending(typ, name resources.StringID) bool {
	_, ok := rm.pending[resources.ResourceID{Type: typ, Name: name}]
	return ok
}

// Len returns the number of resident resources.
func (rm *ResourceManager) Len() int {
	return len(rm.resources)
}

func (rm *ResourceManager) Allocator() *resources.HeapAllocator {
	return rm.allocator
}

func (rm *ResourceManager) Stats() core.MetricsSnapshot {
	return rm.metrics.Snapshot()
}

// Shutdown frees everything still resident and any completed load that
// was never brought online. The loader must be shut down first.
func (rm *ResourceManager) Shutdown() error {
	for {
		rr, ok := rm.loader.PopCompleted()
		if !ok {
			break
		}
		if rr.IsSpurious() || rr.Err != nil {
			continue
		}
		if td, ok := rm.registry.Lookup(rr.Type); ok {
			td.Unload(rr.Allocator, rr.Data)
		}
	}
	rm.pending = make(map[resources.ResourceID]*pendingLoad)

	// Members go before the packages that anchor them.
	for id, rd := range rm.resources {
		if id.Type != resources.TypePackage {
			rm.destroy(id, rd)
		}
	}
	for id, rd := range rm.resources {
		rm.destroy(id, rd)
	}
	core.LogInfo("Resource manager shut down.")
	return nil
}
