package systems

import (
	"go.uber.org/multierr"

	"github.com/spaghettifunk/anima-resources/engine/assets/loaders"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

type SystemManagerConfig struct {
	Loader  ResourceLoaderConfig
	Manager ResourceManagerConfig
}

type SystemManager struct {
	ResourceLoader  *ResourceLoader
	ResourceManager *ResourceManager
}

// builtinTypes lists the types every manager knows about, with the
// format version each one expects.
var builtinTypes = []struct {
	typ     resources.StringID
	version uint32
	loader  func() resources.TypeLoader
}{
	{resources.TypePackage, loaders.PackageVersion, func() resources.TypeLoader { return &loaders.PackageLoader{} }},
	{resources.TypeConfig, loaders.ConfigVersion, func() resources.TypeLoader { return &loaders.ConfigLoader{} }},
	{resources.TypeText, loaders.TextVersion, func() resources.TypeLoader { return &loaders.TextLoader{} }},
	{resources.TypeImage, loaders.ImageVersion, func() resources.TypeLoader { return &loaders.ImageLoader{} }},
	// Binary payloads use the default load/unload.
	{resources.TypeBinary, 1, nil},
}

// BuiltinTypeVersion returns the format version of a built-in type, or 0.
func BuiltinTypeVersion(typ resources.StringID) uint32 {
	for _, bt := range builtinTypes {
		if bt.typ == typ {
			return bt.version
		}
	}
	return 0
}

func NewSystemManager(config SystemManagerConfig) (*SystemManager, error) {
	rl, err := NewResourceLoader(config.Loader)
	if err != nil {
		return nil, err
	}
	rm := NewResourceManager(config.Manager, rl)
	for _, bt := range builtinTypes {
		if bt.loader == nil {
			rm.RegisterType(bt.typ, bt.version, resources.TypeFuncs{})
			continue
		}
		rm.RegisterLoader(bt.typ, bt.version, bt.loader())
	}
	return &SystemManager{
		ResourceLoader:  rl,
		ResourceManager: rm,
	}, nil
}

// Update drives the resource pipeline for one frame.
func (sm *SystemManager) Update() int {
	return sm.ResourceManager.CompleteRequests()
}

func (sm *SystemManager) Shutdown() error {
	// Loads in flight finish before the manager frees what they produced,
	// and the bundle stays mapped until nothing aliases it.
	err := sm.ResourceLoader.Shutdown()
	err = multierr.Append(err, sm.ResourceManager.Shutdown())
	return multierr.Append(err, sm.ResourceLoader.Close())
}
