// Package catalog provides the in-memory module catalog the control plane
// consumes: descriptor lookup, latest-version resolution, and the
// dependency/conflict predicates and graph walks used by install planning.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/neomorfeo/modgate/internal/domain"
)

// Compile-time check: Memory implements domain.ModuleCatalog.
var _ domain.ModuleCatalog = (*Memory)(nil)

// Memory holds module descriptors keyed by fully qualified id. Descriptors
// are immutable once registered.
type Memory struct {
	mu      sync.RWMutex
	modules map[string]*domain.ModuleDescriptor
}

// NewMemory creates a catalog pre-loaded with the given descriptors.
func NewMemory(mds ...*domain.ModuleDescriptor) *Memory {
	m := &Memory{modules: make(map[string]*domain.ModuleDescriptor, len(mds))}
	for _, md := range mds {
		m.modules[md.ID] = md
	}
	return m
}

// Register adds or replaces a descriptor.
func (m *Memory) Register(md *domain.ModuleDescriptor) {
	m.mu.Lock()
	m.modules[md.ID] = md
	m.mu.Unlock()
}

// Get returns the descriptor for an exact module id.
func (m *Memory) Get(_ context.Context, id string) (*domain.ModuleDescriptor, error) {
	m.mu.RLock()
	md, ok := m.modules[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.NotFoundf("module %s not found", id)
	}
	return md, nil
}

// GetLatest resolves a possibly partial id to the newest matching
// descriptor.
func (m *Memory) GetLatest(ctx context.Context, id string) (*domain.ModuleDescriptor, error) {
	mid := domain.ParseModuleID(id)
	if mid.HasSemVer() {
		return m.Get(ctx, id)
	}
	latest := mid.Latest(m.ids())
	return m.Get(ctx, latest)
}

// ModulesWithFilter returns all modules sorted by id, excluding pre-release
// versions unless preRelease is set.
func (m *Memory) ModulesWithFilter(_ context.Context, preRelease bool) ([]*domain.ModuleDescriptor, error) {
	m.mu.RLock()
	out := make([]*domain.ModuleDescriptor, 0, len(m.modules))
	for _, md := range m.modules {
		if !preRelease && domain.ParseModuleID(md.ID).HasPreRelease() {
			continue
		}
		out = append(out, md)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnabledModules returns descriptors for the tenant's enabled modules in
// insertion order.
func (m *Memory) EnabledModules(ctx context.Context, t *domain.Tenant) ([]*domain.ModuleDescriptor, error) {
	ids := t.ListModules()
	out := make([]*domain.ModuleDescriptor, 0, len(ids))
	for _, id := range ids {
		md, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, nil
}

// CheckAllDependencies verifies every requirement in mods is satisfied
// within mods. Returns "" when satisfied, else a diagnostic.
func (m *Memory) CheckAllDependencies(mods map[string]*domain.ModuleDescriptor) string {
	var msgs []string
	for _, id := range sortedKeys(mods) {
		md := mods[id]
		for _, req := range md.Requires {
			if providerIn(mods, req) == nil {
				msgs = append(msgs, fmt.Sprintf(
					"Missing dependency: %s requires %s %s", md.ID, req.ID, req.Version))
			}
		}
	}
	return strings.Join(msgs, ". ")
}

// CheckAllConflicts verifies no two modules in mods provide the same
// non-system interface. Returns "" when clean, else a diagnostic.
func (m *Memory) CheckAllConflicts(mods map[string]*domain.ModuleDescriptor) string {
	seen := make(map[string]string) // interface id → module id
	var msgs []string
	for _, id := range sortedKeys(mods) {
		md := mods[id]
		for _, prov := range md.Provides {
			if prov.IsSystem() {
				continue
			}
			if other, dup := seen[prov.ID]; dup {
				msgs = append(msgs, fmt.Sprintf(
					"Conflict: %s and %s both provide %s", other, md.ID, prov.ID))
				continue
			}
			seen[prov.ID] = md.ID
		}
	}
	return strings.Join(msgs, ". ")
}

// AddModuleDependencies appends the enables needed to bring md and its
// unmet dependencies into enabled, dependencies first. An older version of
// the same product already in enabled becomes the upgrade hint and leaves
// the projected set.
func (m *Memory) AddModuleDependencies(md *domain.ModuleDescriptor,
	available, enabled map[string]*domain.ModuleDescriptor, plan *domain.Plan) {

	if _, ok := enabled[md.ID]; ok {
		return
	}
	for _, req := range md.Requires {
		if providerIn(enabled, req) != nil {
			continue
		}
		dep := m.latestProvider(available, req)
		if dep == nil {
			continue // final dependency check reports the gap
		}
		m.AddModuleDependencies(dep, available, enabled, plan)
	}
	from := ""
	product := md.Product()
	for _, id := range sortedKeys(enabled) {
		if id != md.ID && domain.ParseModuleID(id).Product() == product {
			from = id
			delete(enabled, id)
			break
		}
	}
	enabled[md.ID] = md
	plan.Append(domain.TenantModuleAction{ID: md.ID, Action: domain.ActionEnable, From: from})
}

// RemoveModuleDependencies appends the disables needed to remove md,
// dependents first.
func (m *Memory) RemoveModuleDependencies(md *domain.ModuleDescriptor,
	enabled map[string]*domain.ModuleDescriptor, plan *domain.Plan) {

	if _, ok := enabled[md.ID]; !ok {
		return
	}
	delete(enabled, md.ID)
	for _, id := range sortedKeys(enabled) {
		dependent, ok := enabled[id]
		if !ok {
			continue // already removed by a nested walk
		}
		if m.dependsBroken(dependent, md, enabled) {
			m.RemoveModuleDependencies(dependent, enabled, plan)
		}
	}
	plan.Append(domain.TenantModuleAction{ID: md.ID, Action: domain.ActionDisable})
}

// dependsBroken reports whether removing removed leaves one of dependent's
// requirements unsatisfied by the remaining set.
func (m *Memory) dependsBroken(dependent, removed *domain.ModuleDescriptor,
	remaining map[string]*domain.ModuleDescriptor) bool {

	for _, req := range dependent.Requires {
		satisfiedByRemoved := false
		for _, prov := range removed.Provides {
			if prov.Satisfies(req) {
				satisfiedByRemoved = true
				break
			}
		}
		if satisfiedByRemoved && providerIn(remaining, req) == nil {
			return true
		}
	}
	return false
}

// latestProvider picks the newest module in available that satisfies req.
func (m *Memory) latestProvider(available map[string]*domain.ModuleDescriptor,
	req domain.InterfaceReference) *domain.ModuleDescriptor {

	var best *domain.ModuleDescriptor
	for _, id := range sortedKeys(available) {
		md := available[id]
		if !provides(md, req) {
			continue
		}
		if best == nil || domain.ParseModuleID(best.ID).Latest([]string{best.ID, md.ID}) == md.ID {
			best = md
		}
	}
	return best
}

func (m *Memory) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.modules)
}

func provides(md *domain.ModuleDescriptor, req domain.InterfaceReference) bool {
	for _, prov := range md.Provides {
		if prov.Satisfies(req) {
			return true
		}
	}
	return false
}

func providerIn(mods map[string]*domain.ModuleDescriptor, req domain.InterfaceReference) *domain.ModuleDescriptor {
	for _, id := range sortedKeys(mods) {
		if provides(mods[id], req) {
			return mods[id]
		}
	}
	return nil
}

func sortedKeys(mods map[string]*domain.ModuleDescriptor) []string {
	keys := make([]string, 0, len(mods))
	for id := range mods {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
