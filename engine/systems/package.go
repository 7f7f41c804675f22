package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

// ResourcePackage loads the members of a package resource in their
// declared order. Requests rejected by a saturated loader are retried on
// the next Update.
type ResourcePackage struct {
	name resources.StringID
	rm   *ResourceManager

	requested bool
	pkg       *resources.Package
	// next is the index of the next member to request.
	next int
	// ordered counts the requested members that come online in order.
	ordered uint32
}

func NewResourcePackage(name resources.StringID, rm *ResourceManager) *ResourcePackage {
	return &ResourcePackage{name: name, rm: rm}
}

func (rp *ResourcePackage) Name() resources.StringID {
	return rp.name
}

// Load starts loading the package. It never blocks.
func (rp *ResourcePackage) Load() {
	rp.Update()
}

// Update requests the members not requested yet. Call it once per frame
// until HasLoaded.
func (rp *ResourcePackage) Update() {
	if !rp.requested {
		rp.requested = rp.rm.TryLoad(rp.name, resources.TypePackage, rp.name, 0)
		if !rp.requested {
			return
		}
	}
	if rp.pkg == nil {
		if !rp.rm.CanGet(resources.TypePackage, rp.name) {
			return
		}
		pkg, ok := rp.rm.Get(resources.TypePackage, rp.name).(*resources.Package)
		if !ok {
			err := fmt.Errorf("resource %s is not a package", resources.ResourceID{Type: resources.TypePackage, Name: rp.name})
			core.LogError(err.Error())
			panic(err)
		}
		rp.pkg = pkg
	}
	for rp.next < rp.pkg.Len() {
		m := rp.pkg.Members[rp.next]
		// Configs and nested packages come online as soon as they arrive
		// and take no slot in the sequence.
		if bypassesOrdering(m.Type) {
			if !rp.rm.TryLoad(rp.name, m.Type, m.Name, 0) {
				return
			}
		} else {
			if !rp.rm.TryLoad(rp.name, m.Type, m.Name, rp.ordered) {
				return
			}
			rp.ordered++
		}
		rp.next++
	}
}

// Package returns the manifest once the package itself is online.
func (rp *ResourcePackage) Package() *resources.Package {
	return rp.pkg
}

// HasLoaded reports whether every member has been requested and brought
// online, or failed to load.
func (rp *ResourcePackage) HasLoaded() bool {
	if rp.pkg == nil || rp.next < rp.pkg.Len() {
		return false
	}
	for _, m := range rp.pkg.Members {
		if rp.rm.IsPending(m.Type, m.Name) {
			return false
		}
	}
	if rp.rm.Autoload() {
		return true
	}
	seq, ok := rp.rm.OnlineSequenceNum(rp.name)
	return ok && seq == rp.ordered
}

// Flush blocks until the whole package is online.
func (rp *ResourcePackage) Flush() {
	for {
		rp.Update()
		progress := rp.rm.CompleteRequests()
		if rp.HasLoaded() {
			return
		}
		if progress == 0 {
			rp.rm.waitForProgress()
		}
	}
}

// Unload releases the requested members, last first, then the package
// itself.
func (rp *ResourcePackage) Unload() {
	if rp.pkg != nil {
		for i := rp.next - 1; i >= 0; i-- {
			m := rp.pkg.Members[i]
			rp.rm.Unload(m.Type, m.Name)
		}
	}
	if rp.requested {
		rp.rm.Unload(resources.TypePackage, rp.name)
	}
	rp.requested = false
	rp.pkg = nil
	rp.next = 0
	rp.ordered = 0
}
