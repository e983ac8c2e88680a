package app_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/neomorfeo/modgate/internal/adapter/fsm"
	"github.com/neomorfeo/modgate/internal/app"
	"github.com/neomorfeo/modgate/internal/catalog"
	"github.com/neomorfeo/modgate/internal/domain"
	"github.com/neomorfeo/modgate/internal/registry"
)

// --- Fakes ---

// proxyCall records one outbound proxy invocation.
type proxyCall struct {
	op       string // "system", "deploy", "undeploy"
	tenantID string
	moduleID string
	path     string
	body     map[string]any
}

// fakeProxy records every call and can be told to fail a specific path.
type fakeProxy struct {
	calls    []proxyCall
	failPath string
	failOp   string
}

func (p *fakeProxy) CallSystemInterface(_ context.Context, tenantID, moduleID, path string, body []byte) error {
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	p.calls = append(p.calls, proxyCall{
		op: "system", tenantID: tenantID, moduleID: moduleID, path: path, body: decoded,
	})
	if p.failPath != "" && p.failPath == path {
		return domain.Internalf("system interface %s failed", path)
	}
	return nil
}

func (p *fakeProxy) AutoDeploy(_ context.Context, md *domain.ModuleDescriptor) error {
	p.calls = append(p.calls, proxyCall{op: "deploy", moduleID: md.ID})
	if p.failOp == "deploy" {
		return domain.Internalf("deploy of %s failed", md.ID)
	}
	return nil
}

func (p *fakeProxy) AutoUndeploy(_ context.Context, md *domain.ModuleDescriptor) error {
	p.calls = append(p.calls, proxyCall{op: "undeploy", moduleID: md.ID})
	if p.failOp == "undeploy" {
		return domain.Internalf("undeploy of %s failed", md.ID)
	}
	return nil
}

// systemCalls returns only the system-interface invocations.
func (p *fakeProxy) systemCalls() []proxyCall {
	var out []proxyCall
	for _, c := range p.calls {
		if c.op == "system" {
			out = append(out, c)
		}
	}
	return out
}

// fakePublisher records published lifecycle events.
type fakePublisher struct {
	events []string // "<event> <tenant> <module>"
}

func (p *fakePublisher) Publish(_ context.Context, event domain.Event, tenantID, moduleID string) error {
	p.events = append(p.events, string(event)+" "+tenantID+" "+moduleID)
	return nil
}

// fakeStore is a minimal in-memory TenantStore used to observe store-first
// commit ordering.
type fakeStore struct {
	tenants map[string][]domain.ModuleActivation
	fail    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tenants: make(map[string][]domain.ModuleActivation)}
}

func (s *fakeStore) Insert(_ context.Context, t *domain.Tenant) error {
	s.tenants[t.ID()] = t.Activations()
	return nil
}

func (s *fakeStore) UpdateDescriptor(_ context.Context, td domain.TenantDescriptor) error {
	if _, ok := s.tenants[td.ID]; !ok {
		s.tenants[td.ID] = nil
	}
	return nil
}

func (s *fakeStore) UpdateModules(_ context.Context, id string, enabled []domain.ModuleActivation) error {
	if s.fail {
		return domain.Internalf("store down")
	}
	s.tenants[id] = enabled
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := s.tenants[id]; !ok {
		return domain.NotFoundf("tenant %s not found", id)
	}
	delete(s.tenants, id)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]*domain.Tenant, error) {
	return nil, nil
}

func (s *fakeStore) enabledIDs(id string) []string {
	out := make([]string, 0, len(s.tenants[id]))
	for _, a := range s.tenants[id] {
		out = append(out, a.ModuleID)
	}
	return out
}

// --- Descriptor builders ---

func mod(id string) *domain.ModuleDescriptor {
	return &domain.ModuleDescriptor{ID: id}
}

func withTenantInterface(md *domain.ModuleDescriptor, path string) *domain.ModuleDescriptor {
	md.Provides = append(md.Provides, domain.InterfaceDescriptor{
		ID:            domain.TenantInterface,
		Version:       "1.0",
		InterfaceType: "system",
		RoutingEntries: []domain.RoutingEntry{
			{Methods: []string{"POST"}, Path: path},
		},
	})
	return md
}

func withLegacyTenantInterface(md *domain.ModuleDescriptor) *domain.ModuleDescriptor {
	md.Provides = append(md.Provides, domain.InterfaceDescriptor{
		ID:      domain.TenantInterface,
		Version: "1.0",
	})
	return md
}

func withPermsInterface(md *domain.ModuleDescriptor, path string) *domain.ModuleDescriptor {
	md.Provides = append(md.Provides, domain.InterfaceDescriptor{
		ID:            domain.TenantPermissionsInterface,
		Version:       "1.0",
		InterfaceType: "system",
		RoutingEntries: []domain.RoutingEntry{
			{Methods: []string{"POST"}, Path: path},
		},
	})
	return md
}

func withRequires(md *domain.ModuleDescriptor, refs ...domain.InterfaceReference) *domain.ModuleDescriptor {
	md.Requires = append(md.Requires, refs...)
	return md
}

func withProvides(md *domain.ModuleDescriptor, id, version string) *domain.ModuleDescriptor {
	md.Provides = append(md.Provides, domain.InterfaceDescriptor{ID: id, Version: version})
	return md
}

// --- Harness ---

type harness struct {
	registry  *registry.Registry
	catalog   *catalog.Memory
	proxy     *fakeProxy
	store     *fakeStore
	publisher *fakePublisher
	service   *app.TenantService
}

func newHarness(t *testing.T, mods ...*domain.ModuleDescriptor) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newFakeStore()
	reg := registry.New(store, logger)
	cat := catalog.NewMemory(mods...)
	px := &fakeProxy{}
	pub := &fakePublisher{}
	svc := app.NewTenantService(reg, cat, px, fsm.New(), pub, logger)
	return &harness{
		registry:  reg,
		catalog:   cat,
		proxy:     px,
		store:     store,
		publisher: pub,
		service:   svc,
	}
}

// addTenant inserts a tenant with the given modules already enabled,
// bypassing the change pipeline.
func (h *harness) addTenant(t *testing.T, id string, enabled ...string) {
	t.Helper()
	tenant := domain.NewTenant(domain.TenantDescriptor{ID: id})
	for _, mid := range enabled {
		tenant.EnableModule(mid)
	}
	if err := h.registry.Add(context.Background(), tenant); err != nil {
		t.Fatalf("adding tenant %s: %v", id, err)
	}
}

func (h *harness) enabledModules(t *testing.T, id string) []string {
	t.Helper()
	tenant, err := h.registry.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("getting tenant %s: %v", id, err)
	}
	return tenant.ListModules()
}
