package loaders

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

const PackageVersion uint32 = 1

// packageManifest is the on-disk form of a package:
//
//	[[resource]]
//	type = "image"
//	name = "textures/grass"
type packageManifest struct {
	Resources []struct {
		Type string `toml:"type"`
		Name string `toml:"name"`
	} `toml:"resource"`
}

// PackageLoader parses package manifests. Member names are hashed here,
// once, so the rest of the pipeline only deals with ids.
type PackageLoader struct{}

func (pl *PackageLoader) Load(f resources.File, a resources.Allocator) (any, error) {
	var m packageManifest
	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("package %s: %w", f.ID(), err)
	}
	pkg := &resources.Package{Members: make([]resources.ResourceID, 0, len(m.Resources))}
	for i, r := range m.Resources {
		if r.Type == "" || r.Name == "" {
			return nil, fmt.Errorf("package %s: resource #%d needs both type and name", f.ID(), i)
		}
		pkg.Members = append(pkg.Members, resources.NewResourceID(r.Type, r.Name))
	}
	return pkg, nil
}

func (pl *PackageLoader) Unload(a resources.Allocator, data any) {}

func (pl *PackageLoader) Online(name resources.StringID, m resources.Manager) {
	pkg, _ := m.Get(resources.TypePackage, name).(*resources.Package)
	core.LogDebug("package %s online with %d resources", name, pkg.Len())
}

func (pl *PackageLoader) Offline(name resources.StringID, m resources.Manager) {}
