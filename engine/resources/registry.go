package resources

import (
	"fmt"
	"io"

	"github.com/spaghettifunk/anima-resources/engine/core"
)

// Manager is the view of the resource manager that online and offline
// callbacks get. It lets a resource resolve the resources it refers to.
type Manager interface {
	CanGet(typ, name StringID) bool
	Get(typ, name StringID) any
}

/** @brief Turns a payload into resident data. Runs on a loader worker. */
type LoadFunc func(f File, a Allocator) (any, error)

/** @brief Frees data produced by the matching LoadFunc. */
type UnloadFunc func(a Allocator, data any)

/** @brief Fix-up hook run on the owner goroutine when a resource goes online or offline. */
type OnlineFunc func(name StringID, m Manager)

// TypeFuncs are the four operations of a resource type. Any of them may
// be nil when registering; the registry fills in defaults.
type TypeFuncs struct {
	Load    LoadFunc
	Unload  UnloadFunc
	Online  OnlineFunc
	Offline OnlineFunc
}

// TypeLoader is the interface form of TypeFuncs, implemented per type.
type TypeLoader interface {
	Load(f File, a Allocator) (any, error)
	Unload(a Allocator, data any)
	Online(name StringID, m Manager)
	Offline(name StringID, m Manager)
}

// TypeData is what the registry records for a type.
type TypeData struct {
	Version uint32
	TypeFuncs
}

// TypeRegistry maps a type id to its operations. It is owned by one
// resource manager and only touched from the owner goroutine.
type TypeRegistry struct {
	types   map[StringID]TypeData
	bundled bool
}

// NewTypeRegistry creates an empty registry. When bundled is set, types
// registered without load/unload get the zero-copy bundle variants.
func NewTypeRegistry(bundled bool) *TypeRegistry {
	return &TypeRegistry{
		types:   make(map[StringID]TypeData),
		bundled: bundled,
	}
}

// Register records the operations for typ. It returns false if typ is
// already registered.
func (r *TypeRegistry) Register(typ StringID, version uint32, funcs TypeFuncs) bool {
	if _, ok := r.types[typ]; ok {
		core.LogError("resource type %s already registered and will not be registered again.", TypeName(typ))
		return false
	}
	if funcs.Load == nil {
		if r.bundled {
			funcs.Load = LoadBundle
		} else {
			funcs.Load = LoadFile
		}
	}
	if funcs.Unload == nil {
		if r.bundled {
			funcs.Unload = UnloadBundle
		} else {
			funcs.Unload = UnloadFile
		}
	}
	if funcs.Online == nil {
		funcs.Online = noopOnline
	}
	if funcs.Offline == nil {
		funcs.Offline = noopOnline
	}
	r.types[typ] = TypeData{Version: version, TypeFuncs: funcs}
	core.LogDebug("resource type %s registered (version %d).", TypeName(typ), version)
	return true
}

// RegisterLoader registers the methods of l as the operations for typ.
func (r *TypeRegistry) RegisterLoader(typ StringID, version uint32, l TypeLoader) bool {
	return r.Register(typ, version, TypeFuncs{
		Load:    l.Load,
		Unload:  l.Unload,
		Online:  l.Online,
		Offline: l.Offline,
	})
}

// Lookup returns the operations for typ.
func (r *TypeRegistry) Lookup(typ StringID) (TypeData, bool) {
	td, ok := r.types[typ]
	return td, ok
}

// Bundled reports whether defaults alias bundle memory.
func (r *TypeRegistry) Bundled() bool {
	return r.bundled
}

func noopOnline(StringID, Manager) {}

// LoadFile reads the whole payload into a buffer from a.
func LoadFile(f File, a Allocator) (any, error) {
	buf := a.Allocate(int(f.Size()))
	if _, err := io.ReadFull(f, buf); err != nil {
		a.Deallocate(buf)
		return nil, fmt.Errorf("read %s: %w", f.ID(), err)
	}
	return buf, nil
}

// UnloadFile returns a buffer produced by LoadFile to a.
func UnloadFile(a Allocator, data any) {
	if b, ok := data.([]byte); ok {
		a.Deallocate(b)
	}
}

// LoadBundle aliases the mapped bundle memory. It never allocates, so
// files without mapped bytes are rejected.
func LoadBundle(f File, a Allocator) (any, error) {
	if b, ok := f.Bytes(); ok {
		return b, nil
	}
	return nil, fmt.Errorf("load %s: %w", f.ID(), core.ErrNotMapped)
}

// UnloadBundle is a no-op; the bundle owns the memory.
func UnloadBundle(Allocator, any) {}
