package domain

import "context"

// ModuleCatalog is the read-only module lookup the control plane consumes.
// The dependency and conflict predicates and the graph walks are catalog
// concerns; the control plane only drives them.
type ModuleCatalog interface {
	// Get returns the descriptor for an exact module id.
	Get(ctx context.Context, id string) (*ModuleDescriptor, error)
	// GetLatest resolves a possibly partial id to the newest matching
	// descriptor.
	GetLatest(ctx context.Context, id string) (*ModuleDescriptor, error)
	// ModulesWithFilter returns all known modules, including pre-release
	// versions only when preRelease is set.
	ModulesWithFilter(ctx context.Context, preRelease bool) ([]*ModuleDescriptor, error)
	// EnabledModules returns descriptors for the tenant's enabled set, in
	// insertion order.
	EnabledModules(ctx context.Context, t *Tenant) ([]*ModuleDescriptor, error)
	// CheckAllDependencies returns "" when every requirement in mods is
	// satisfied within mods, else a diagnostic.
	CheckAllDependencies(mods map[string]*ModuleDescriptor) string
	// CheckAllConflicts returns "" when no two modules in mods clash, else
	// a diagnostic.
	CheckAllConflicts(mods map[string]*ModuleDescriptor) string
	// AddModuleDependencies appends the enables needed to bring md and its
	// unmet dependencies into enabled, dependencies first, mutating enabled
	// to the projected state.
	AddModuleDependencies(md *ModuleDescriptor, available, enabled map[string]*ModuleDescriptor, plan *Plan)
	// RemoveModuleDependencies appends the disables needed to remove md,
	// dependents first, mutating enabled to the projected state.
	RemoveModuleDependencies(md *ModuleDescriptor, enabled map[string]*ModuleDescriptor, plan *Plan)
}

// ModuleProxy invokes HTTP endpoints on module instances on behalf of a
// tenant and provisions instances on demand.
type ModuleProxy interface {
	CallSystemInterface(ctx context.Context, tenantID, moduleID, path string, body []byte) error
	AutoDeploy(ctx context.Context, md *ModuleDescriptor) error
	AutoUndeploy(ctx context.Context, md *ModuleDescriptor) error
}

// TenantStore is the durable shadow of the tenant registry. All registry
// mutations go store-first; a memory entry implies a durable entry when a
// store is configured.
type TenantStore interface {
	Insert(ctx context.Context, t *Tenant) error
	UpdateDescriptor(ctx context.Context, td TenantDescriptor) error
	UpdateModules(ctx context.Context, id string, enabled []ModuleActivation) error
	// Delete removes the record; a KindNotFound failure means it was not
	// there.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Tenant, error)
}

// Event identifies a lifecycle occurrence emitted by the control plane.
type Event string

const (
	EventTenantCreated  Event = "tenant.created"
	EventTenantUpdated  Event = "tenant.updated"
	EventTenantDeleted  Event = "tenant.deleted"
	EventModuleEnabled  Event = "module.enabled"
	EventModuleDisabled Event = "module.disabled"
)

// EventPublisher emits lifecycle events. ModuleID is empty for
// tenant-level events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, tenantID, moduleID string) error
}

// StepValidator checks that a change event is legal from the current step
// and returns the step it leads to.
type StepValidator interface {
	Apply(ctx context.Context, current ChangeStep, event ChangeEvent) (ChangeStep, error)
}
