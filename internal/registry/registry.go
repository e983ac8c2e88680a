// Package registry holds the process-wide tenant map and keeps it in sync
// with the durable store. All mutation goes store-first, memory-second, so
// a memory entry always implies a durable entry when a store is configured.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/neomorfeo/modgate/internal/domain"
)

// Registry is a concurrency-safe mapping tenantID → Tenant. It exclusively
// owns the published Tenant values; readers receive clones.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
	store   domain.TenantStore
	local   bool
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLocalOnly forces a process-local map even when the deployment runs
// clustered. Single-node semantics are identical; the node simply stops
// sharing tenants with its peers.
func WithLocalOnly() Option {
	return func(r *Registry) { r.local = true }
}

// LocalOnly reports whether the registry was forced to a process-local map.
func (r *Registry) LocalOnly() bool { return r.local }

// New creates a registry. store may be nil, in which case state lives only
// in memory.
func New(store domain.TenantStore, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		tenants: make(map[string]*domain.Tenant),
		store:   store,
		logger:  logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add inserts a new tenant. A duplicate id is a user error. When a store is
// configured the insert goes to the store first; on store failure memory is
// untouched.
func (r *Registry) Add(ctx context.Context, t *domain.Tenant) error {
	id := t.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tenants[id]; exists {
		return domain.UserErrorf("Duplicate tenant id %s", id)
	}
	if r.store != nil {
		if err := r.store.Insert(ctx, t); err != nil {
			r.logger.Warn("adding tenant to store failed", "tenant", id, "error", err)
			return err
		}
	}
	r.tenants[id] = t.Clone()
	return nil
}

// Get returns a clone of the tenant, or a not-found failure.
func (r *Registry) Get(_ context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	t, ok := r.tenants[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NotFoundf("tenant %s not found", id)
	}
	return t.Clone(), nil
}

// Put unconditionally replaces the in-memory record. Callers use it only
// after a prior store update has succeeded.
func (r *Registry) Put(_ context.Context, t *domain.Tenant) {
	r.publish(t)
}

// Remove deletes the tenant. The store delete is attempted first; a
// not-found from the store is tolerated and the memory entry is still
// removed. Returns whether the entry existed in memory.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil && !domain.IsNotFound(err) {
			r.logger.Warn("deleting tenant from store failed", "tenant", id, "error", err)
			return false, domain.InternalWrap("deleting tenant "+id, err)
		}
	}
	r.mu.Lock()
	_, existed := r.tenants[id]
	delete(r.tenants, id)
	r.mu.Unlock()
	return existed, nil
}

// Keys returns a sorted snapshot of the current tenant ids.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// UpdateDescriptor replaces the tenant's descriptor while preserving its
// enabled set; a fresh record with an empty set is created when the tenant
// did not exist. Store-first.
func (r *Registry) UpdateDescriptor(ctx context.Context, td domain.TenantDescriptor) error {
	var t *domain.Tenant
	existing, err := r.Get(ctx, td.ID)
	switch {
	case err == nil:
		t = domain.NewTenantWithModules(td, existing.Activations())
	case domain.IsNotFound(err):
		t = domain.NewTenant(td)
	default:
		return domain.InternalWrap("reading tenant "+td.ID, err)
	}
	if r.store != nil {
		if err := r.store.UpdateDescriptor(ctx, td); err != nil {
			r.logger.Warn("updating tenant descriptor in store failed", "tenant", td.ID, "error", err)
			return domain.InternalWrap("updating descriptor for "+td.ID, err)
		}
	}
	r.publish(t)
	return nil
}

// UpdateModules commits a tenant's enabled set: store first, then publish.
func (r *Registry) UpdateModules(ctx context.Context, t *domain.Tenant) error {
	if r.store != nil {
		if err := r.store.UpdateModules(ctx, t.ID(), t.Activations()); err != nil {
			return err
		}
	}
	r.publish(t)
	return nil
}

// List returns the descriptors of all tenants sorted by id. The keys are a
// snapshot; a value read may reflect state newer than the snapshot.
func (r *Registry) List(ctx context.Context) ([]domain.TenantDescriptor, error) {
	keys := r.Keys()
	out := make([]domain.TenantDescriptor, 0, len(keys))
	for _, id := range keys {
		t, err := r.Get(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue // removed between snapshot and read
			}
			return nil, domain.InternalWrap("listing tenants", err)
		}
		out = append(out, t.Descriptor)
	}
	return out, nil
}

// ModuleUser returns the id of the first tenant (in key order) that has the
// module enabled, and whether any does.
func (r *Registry) ModuleUser(moduleID string) (string, bool) {
	for _, id := range r.Keys() {
		r.mu.RLock()
		t, ok := r.tenants[id]
		inUse := ok && t.IsEnabled(moduleID)
		r.mu.RUnlock()
		if inUse {
			return id, true
		}
	}
	return "", false
}

// Load performs the one-shot startup load from the store into memory. When
// the map is already populated another node has done the work; when no
// store is configured the registry starts empty. Loaded records go to
// memory only, without a store round-trip. Insert failures are aggregated
// into a single internal failure.
func (r *Registry) Load(ctx context.Context) error {
	if len(r.Keys()) > 0 {
		r.logger.Info("not loading tenants, map already populated")
		return nil
	}
	if r.store == nil {
		r.logger.Info("no storage to load tenants from, starting empty")
		return nil
	}
	records, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	var failed []string
	for _, t := range records {
		if t.ID() == "" {
			failed = append(failed, "(empty id)")
			continue
		}
		r.publish(t)
	}
	if len(failed) > 0 {
		return domain.Internalf("loading tenants: bad records %v", failed)
	}
	r.logger.Info("all tenants loaded", "count", len(records))
	return nil
}

func (r *Registry) publish(t *domain.Tenant) {
	c := t.Clone()
	r.mu.Lock()
	r.tenants[c.ID()] = c
	r.mu.Unlock()
}
