package domain

import "time"

// TenantDescriptor holds the human-facing fields of a tenant.
type TenantDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ModuleActivation records one enabled module and when it was enabled.
type ModuleActivation struct {
	ModuleID  string
	EnabledAt time.Time
}

// Tenant is an isolation boundary that enables a curated set of modules.
// The enabled set keeps insertion order; permission backfill and provider
// scans depend on it. All state transitions are pure; persistence and
// publication happen in the registry.
type Tenant struct {
	Descriptor TenantDescriptor
	enabled    []ModuleActivation
}

// NewTenant creates a tenant with an empty enabled set.
func NewTenant(td TenantDescriptor) *Tenant {
	return &Tenant{Descriptor: td}
}

// NewTenantWithModules creates a tenant with a pre-populated enabled set,
// used when rehydrating from the store or replacing a descriptor.
func NewTenantWithModules(td TenantDescriptor, enabled []ModuleActivation) *Tenant {
	t := &Tenant{Descriptor: td}
	t.enabled = append(t.enabled, enabled...)
	return t
}

// ID returns the tenant identifier.
func (t *Tenant) ID() string { return t.Descriptor.ID }

// EnableModule inserts the module with the current timestamp. Re-enabling
// an already-enabled id refreshes its timestamp in place.
func (t *Tenant) EnableModule(moduleID string) {
	now := time.Now().UTC()
	for i := range t.enabled {
		if t.enabled[i].ModuleID == moduleID {
			t.enabled[i].EnabledAt = now
			return
		}
	}
	t.enabled = append(t.enabled, ModuleActivation{ModuleID: moduleID, EnabledAt: now})
}

// DisableModule removes the module by exact id.
func (t *Tenant) DisableModule(moduleID string) {
	for i := range t.enabled {
		if t.enabled[i].ModuleID == moduleID {
			t.enabled = append(t.enabled[:i], t.enabled[i+1:]...)
			return
		}
	}
}

// IsEnabled reports whether the exact module id is enabled.
func (t *Tenant) IsEnabled(moduleID string) bool {
	for i := range t.enabled {
		if t.enabled[i].ModuleID == moduleID {
			return true
		}
	}
	return false
}

// ListModules returns the enabled module ids in insertion order.
func (t *Tenant) ListModules() []string {
	out := make([]string, len(t.enabled))
	for i, a := range t.enabled {
		out[i] = a.ModuleID
	}
	return out
}

// Activations returns a copy of the enabled set with timestamps, in
// insertion order.
func (t *Tenant) Activations() []ModuleActivation {
	out := make([]ModuleActivation, len(t.enabled))
	copy(out, t.enabled)
	return out
}

// Clone returns a deep copy. The registry hands out clones so external
// callers never share mutable state with the published record.
func (t *Tenant) Clone() *Tenant {
	return NewTenantWithModules(t.Descriptor, t.enabled)
}
