package resources

// Package is the data of a package resource: the members it brings in,
// in the order they must come online. Earlier members never depend on
// later ones.
type Package struct {
	Members []ResourceID
}

// Len returns the number of members.
func (p *Package) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Members)
}
