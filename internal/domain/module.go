package domain

import (
	"strconv"
	"strings"
)

// Reserved system interface names.
const (
	TenantInterface            = "_tenant"
	TenantPermissionsInterface = "_tenantPermissions"
)

// InterfaceReference names an interface a module requires, with the minimum
// version it can work against.
type InterfaceReference struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// RoutingEntry describes one route a module interface exposes.
type RoutingEntry struct {
	Methods     []string `json:"methods,omitempty"`
	Path        string   `json:"path,omitempty"`
	PathPattern string   `json:"pathPattern,omitempty"`
}

// Match reports whether the entry accepts the given path and method. An
// empty path matches on method alone; a "*" method matches everything.
func (re RoutingEntry) Match(path, method string) bool {
	methodOK := false
	for _, m := range re.Methods {
		if m == "*" || strings.EqualFold(m, method) {
			methodOK = true
			break
		}
	}
	if !methodOK {
		return false
	}
	if path == "" {
		return true
	}
	if re.Path != "" {
		return re.Path == path
	}
	if re.PathPattern != "" {
		return matchPattern(re.PathPattern, path)
	}
	return false
}

// matchPattern matches a path against a pattern where "{x}" matches one
// path segment and "*" matches the rest.
func matchPattern(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	cs := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range ps {
		if seg == "*" {
			return true
		}
		if i >= len(cs) {
			return false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != cs[i] {
			return false
		}
	}
	return len(ps) == len(cs)
}

// InterfaceDescriptor describes a named contract a module provides. Legacy
// descriptors carry no routing entries and no interface type.
type InterfaceDescriptor struct {
	ID             string         `json:"id"`
	Version        string         `json:"version"`
	InterfaceType  string         `json:"interfaceType,omitempty"`
	RoutingEntries []RoutingEntry `json:"handlers,omitempty"`
}

// IsSystem reports whether the interface is marked as a system interface.
func (d InterfaceDescriptor) IsSystem() bool {
	return d.InterfaceType == "system"
}

// IsType reports whether the interface is of the given type. An empty
// declared type counts as "proxy", the historical default.
func (d InterfaceDescriptor) IsType(t string) bool {
	declared := d.InterfaceType
	if declared == "" {
		declared = "proxy"
	}
	return declared == t
}

// Satisfies reports whether this provided interface covers the required
// reference: same id, same major version, minor at least as high.
func (d InterfaceDescriptor) Satisfies(ref InterfaceReference) bool {
	if d.ID != ref.ID {
		return false
	}
	pMaj, pMin := splitInterfaceVersion(d.Version)
	rMaj, rMin := splitInterfaceVersion(ref.Version)
	return pMaj == rMaj && pMin >= rMin
}

func splitInterfaceVersion(v string) (major, minor int) {
	parts := strings.SplitN(v, ".", 3)
	major, _ = strconv.Atoi(parts[0])
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}

// PermissionSet is one named permission a module defines, broadcast to the
// tenant's permissions module on enable.
type PermissionSet struct {
	PermissionName string   `json:"permissionName"`
	DisplayName    string   `json:"displayName,omitempty"`
	Description    string   `json:"description,omitempty"`
	SubPermissions []string `json:"subPermissions,omitempty"`
}

// ModuleDescriptor is the catalog's view of one module version. The id is
// fully qualified: "<name>-<semver>".
type ModuleDescriptor struct {
	ID             string                `json:"id"`
	Name           string                `json:"name,omitempty"`
	Provides       []InterfaceDescriptor `json:"provides,omitempty"`
	Requires       []InterfaceReference  `json:"requires,omitempty"`
	PermissionSets []PermissionSet       `json:"permissionSets,omitempty"`
}

// SystemInterface returns the provided system interface with the given
// name, or nil when the module does not declare it.
func (md *ModuleDescriptor) SystemInterface(name string) *InterfaceDescriptor {
	for i := range md.Provides {
		if md.Provides[i].ID == name && md.Provides[i].IsSystem() {
			return &md.Provides[i]
		}
	}
	return nil
}

// Product returns the version-agnostic module name.
func (md *ModuleDescriptor) Product() string {
	return ParseModuleID(md.ID).Product()
}
