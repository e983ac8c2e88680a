package registry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/neomorfeo/modgate/internal/domain"
	"github.com/neomorfeo/modgate/internal/registry"
)

// fakeStore is an in-memory TenantStore that can be told to fail.
type fakeStore struct {
	tenants map[string]*domain.Tenant
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tenants: make(map[string]*domain.Tenant)}
}

func (s *fakeStore) Insert(_ context.Context, t *domain.Tenant) error {
	if s.failAll {
		return domain.Internalf("store down")
	}
	s.tenants[t.ID()] = t.Clone()
	return nil
}

func (s *fakeStore) UpdateDescriptor(_ context.Context, td domain.TenantDescriptor) error {
	if s.failAll {
		return domain.Internalf("store down")
	}
	if existing, ok := s.tenants[td.ID]; ok {
		s.tenants[td.ID] = domain.NewTenantWithModules(td, existing.Activations())
	} else {
		s.tenants[td.ID] = domain.NewTenant(td)
	}
	return nil
}

func (s *fakeStore) UpdateModules(_ context.Context, id string, enabled []domain.ModuleActivation) error {
	if s.failAll {
		return domain.Internalf("store down")
	}
	existing, ok := s.tenants[id]
	if !ok {
		return domain.NotFoundf("tenant %s not found", id)
	}
	s.tenants[id] = domain.NewTenantWithModules(existing.Descriptor, enabled)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if s.failAll {
		return domain.Internalf("store down")
	}
	if _, ok := s.tenants[id]; !ok {
		return domain.NotFoundf("tenant %s not found", id)
	}
	delete(s.tenants, id)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]*domain.Tenant, error) {
	if s.failAll {
		return nil, domain.Internalf("store down")
	}
	out := make([]*domain.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t.Clone())
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdd_And_Get(t *testing.T) {
	store := newFakeStore()
	reg := registry.New(store, testLogger())
	ctx := context.Background()

	tenant := domain.NewTenant(domain.TenantDescriptor{ID: "t1", Name: "One"})
	if err := reg.Add(ctx, tenant); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := reg.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Descriptor.Name != "One" {
		t.Errorf("Name = %q, want %q", got.Descriptor.Name, "One")
	}

	// Store-first: the record is durable too.
	if _, ok := store.tenants["t1"]; !ok {
		t.Error("Add should write through to the store")
	}
}

func TestAdd_Duplicate(t *testing.T) {
	reg := registry.New(nil, testLogger())
	ctx := context.Background()

	if err := reg.Add(ctx, domain.NewTenant(domain.TenantDescriptor{ID: "t1"})); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	err := reg.Add(ctx, domain.NewTenant(domain.TenantDescriptor{ID: "t1"}))
	if domain.KindOf(err) != domain.KindUser {
		t.Errorf("duplicate Add kind = %q, want %q", domain.KindOf(err), domain.KindUser)
	}
}

func TestAdd_StoreFailureLeavesMemoryUntouched(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	reg := registry.New(store, testLogger())
	ctx := context.Background()

	err := reg.Add(ctx, domain.NewTenant(domain.TenantDescriptor{ID: "t1"}))
	if err == nil {
		t.Fatal("Add should fail when the store fails")
	}
	if _, err := reg.Get(ctx, "t1"); !domain.IsNotFound(err) {
		t.Error("memory must stay untouched on store failure")
	}
}

func TestGet_NotFound(t *testing.T) {
	reg := registry.New(nil, testLogger())
	if _, err := reg.Get(context.Background(), "nope"); !domain.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestGet_ReturnsClone(t *testing.T) {
	reg := registry.New(nil, testLogger())
	ctx := context.Background()

	tenant := domain.NewTenant(domain.TenantDescriptor{ID: "t1"})
	tenant.EnableModule("mod-a-1.0.0")
	if err := reg.Add(ctx, tenant); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, _ := reg.Get(ctx, "t1")
	got.DisableModule("mod-a-1.0.0")

	again, _ := reg.Get(ctx, "t1")
	if !again.IsEnabled("mod-a-1.0.0") {
		t.Error("mutating a Get result must not affect the registry")
	}
}

func TestRemove(t *testing.T) {
	store := newFakeStore()
	reg := registry.New(store, testLogger())
	ctx := context.Background()

	if err := reg.Add(ctx, domain.NewTenant(domain.TenantDescriptor{ID: "t1"})); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	existed, err := reg.Remove(ctx, "t1")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !existed {
		t.Error("Remove should report the entry existed")
	}
	if _, err := reg.Get(ctx, "t1"); !domain.IsNotFound(err) {
		t.Error("tenant should be gone from memory")
	}
	if _, ok := store.tenants["t1"]; ok {
		t.Error("tenant should be gone from the store")
	}
}

func TestRemove_ToleratesStoreNotFound(t *testing.T) {
	store := newFakeStore()
	reg := registry.New(store, testLogger())
	ctx := context.Background()

	// Present in memory only (simulates a lost store record).
	reg.Put(ctx, domain.NewTenant(domain.TenantDescriptor{ID: "t1"}))

	existed, err := reg.Remove(ctx, "t1")
	if err != nil {
		t.Fatalf("Remove should tolerate store not-found: %v", err)
	}
	if !existed {
		t.Error("memory entry should still be removed")
	}
}

func TestUpdateDescriptor_PreservesEnabled(t *testing.T) {
	store := newFakeStore()
	reg := registry.New(store, testLogger())
	ctx := context.Background()

	tenant := domain.NewTenant(domain.TenantDescriptor{ID: "t1", Name: "Old"})
	tenant.EnableModule("mod-a-1.0.0")
	if err := reg.Add(ctx, tenant); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	td := domain.TenantDescriptor{ID: "t1", Name: "New"}
	if err := reg.UpdateDescriptor(ctx, td); err != nil {
		t.Fatalf("UpdateDescriptor failed: %v", err)
	}

	got, _ := reg.Get(ctx, "t1")
	if got.Descriptor.Name != "New" {
		t.Errorf("Name = %q, want %q", got.Descriptor.Name, "New")
	}
	if !got.IsEnabled("mod-a-1.0.0") {
		t.Error("enabled set must survive a descriptor update")
	}
}

func TestUpdateDescriptor_CreatesWhenAbsent(t *testing.T) {
	reg := registry.New(nil, testLogger())
	ctx := context.Background()

	if err := reg.UpdateDescriptor(ctx, domain.TenantDescriptor{ID: "t1", Name: "Fresh"}); err != nil {
		t.Fatalf("UpdateDescriptor failed: %v", err)
	}
	got, err := reg.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.ListModules()) != 0 {
		t.Error("fresh record should have an empty enabled set")
	}
}

func TestKeys_And_List_Sorted(t *testing.T) {
	reg := registry.New(nil, testLogger())
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Add(ctx, domain.NewTenant(domain.TenantDescriptor{ID: id})); err != nil {
			t.Fatalf("Add %s failed: %v", id, err)
		}
	}

	wantKeys := []string{"alpha", "mid", "zeta"}
	if got := reg.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("Keys = %v, want %v", got, wantKeys)
	}

	tds, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for i, td := range tds {
		if td.ID != wantKeys[i] {
			t.Errorf("List[%d].ID = %q, want %q", i, td.ID, wantKeys[i])
		}
	}
}

func TestModuleUser(t *testing.T) {
	reg := registry.New(nil, testLogger())
	ctx := context.Background()

	t1 := domain.NewTenant(domain.TenantDescriptor{ID: "t1"})
	t2 := domain.NewTenant(domain.TenantDescriptor{ID: "t2"})
	t2.EnableModule("mod-a-1.0.0")
	if err := reg.Add(ctx, t1); err != nil {
		t.Fatalf("Add t1: %v", err)
	}
	if err := reg.Add(ctx, t2); err != nil {
		t.Fatalf("Add t2: %v", err)
	}

	user, inUse := reg.ModuleUser("mod-a-1.0.0")
	if !inUse || user != "t2" {
		t.Errorf("ModuleUser = (%q, %v), want (t2, true)", user, inUse)
	}
	if _, inUse := reg.ModuleUser("mod-b-1.0.0"); inUse {
		t.Error("unused module should report not in use")
	}
}

func TestLoad_FromStore(t *testing.T) {
	store := newFakeStore()
	seed := domain.NewTenant(domain.TenantDescriptor{ID: "t1"})
	seed.EnableModule("mod-a-1.0.0")
	if err := store.Insert(context.Background(), seed); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	reg := registry.New(store, testLogger())
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := reg.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get after Load failed: %v", err)
	}
	if !got.IsEnabled("mod-a-1.0.0") {
		t.Error("loaded tenant should keep its enabled set")
	}
}

func TestLoad_AlreadyPopulatedShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.failAll = true // a store read would fail loudly

	reg := registry.New(store, testLogger())
	reg.Put(context.Background(), domain.NewTenant(domain.TenantDescriptor{ID: "t1"}))

	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load should short-circuit when populated: %v", err)
	}
}

func TestLoad_NoStoreStartsEmpty(t *testing.T) {
	reg := registry.New(nil, testLogger())
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load without store failed: %v", err)
	}
	if len(reg.Keys()) != 0 {
		t.Error("registry should start empty without a store")
	}
}

func TestLoad_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	reg := registry.New(store, testLogger())

	err := reg.Load(context.Background())
	if err == nil {
		t.Fatal("Load should surface store failures")
	}
	var e *domain.Error
	if !errors.As(err, &e) {
		t.Errorf("expected tagged error, got %v", err)
	}
}
