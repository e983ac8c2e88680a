package domain

import (
	"golang.org/x/mod/semver"
)

// ModuleID splits a module identifier of the form "<name>-<semver>" into
// its product name and version. Identifiers may be partial: a bare product
// name has no version and resolves to the latest available instance.
type ModuleID struct {
	raw     string
	product string
	version string
}

// ParseModuleID parses id. The version starts at the first "-" that is
// followed by a digit; everything before it is the product name.
func ParseModuleID(id string) ModuleID {
	for i := 0; i+1 < len(id); i++ {
		if id[i] == '-' && id[i+1] >= '0' && id[i+1] <= '9' {
			return ModuleID{raw: id, product: id[:i], version: id[i+1:]}
		}
	}
	return ModuleID{raw: id, product: id}
}

func (m ModuleID) String() string { return m.raw }

// Product returns the version-agnostic module name.
func (m ModuleID) Product() string { return m.product }

// SemVer returns the version part, or "" for a partial id.
func (m ModuleID) SemVer() string { return m.version }

// HasSemVer reports whether the id carries a valid semantic version.
func (m ModuleID) HasSemVer() bool {
	return m.version != "" && semver.IsValid("v" + m.version)
}

// HasPreRelease reports whether the version carries a pre-release suffix.
func (m ModuleID) HasPreRelease() bool {
	return m.HasSemVer() && semver.Prerelease("v"+m.version) != ""
}

// Latest returns the candidate id with the same product and the highest
// version. When no candidate matches the product, the receiver's own id is
// returned unchanged.
func (m ModuleID) Latest(candidates []string) string {
	best := m.raw
	bestVer := ""
	if m.HasSemVer() {
		bestVer = "v" + m.version
	}
	for _, c := range candidates {
		cid := ParseModuleID(c)
		if cid.product != m.product || !cid.HasSemVer() {
			continue
		}
		v := "v" + cid.version
		if bestVer == "" || semver.Compare(v, bestVer) > 0 {
			best = c
			bestVer = v
		}
	}
	return best
}
