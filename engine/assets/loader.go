package assets

import "github.com/spaghettifunk/anima-resources/engine/resources"

// Reloader brings a changed resource back from disk.
type Reloader interface {
	// CanGet reports whether the resource is resident.
	CanGet(typ, name resources.StringID) bool
	Reload(typ, name resources.StringID) any
}
