// Package app orchestrates tenant lifecycle operations: tenant CRUD, the
// module change engine, install planning, and install orchestration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neomorfeo/modgate/internal/domain"
	"github.com/neomorfeo/modgate/internal/registry"
)

// TenantService is the public surface of the tenant lifecycle manager.
type TenantService struct {
	registry     *registry.Registry
	catalog      domain.ModuleCatalog
	publisher    domain.EventPublisher
	engine       *ChangeEngine
	orchestrator *InstallOrchestrator
	logger       *slog.Logger
}

// NewTenantService wires the service with its adapters and builds the
// engine, planner, and orchestrator on top of them.
func NewTenantService(reg *registry.Registry, catalog domain.ModuleCatalog,
	proxy domain.ModuleProxy, steps domain.StepValidator,
	publisher domain.EventPublisher, logger *slog.Logger) *TenantService {

	engine := NewChangeEngine(reg, catalog, proxy, steps, publisher, logger)
	planner := NewInstallPlanner(catalog, logger)
	orchestrator := NewInstallOrchestrator(reg, planner, engine, proxy, logger)
	return &TenantService{
		registry:     reg,
		catalog:      catalog,
		publisher:    publisher,
		engine:       engine,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Insert creates a new tenant from its descriptor and publishes a creation
// event. Returns the tenant id.
func (s *TenantService) Insert(ctx context.Context, td domain.TenantDescriptor) (string, error) {
	if td.ID == "" {
		return "", domain.UserErrorf("tenant id must not be empty")
	}
	t := domain.NewTenant(td)
	if err := s.registry.Add(ctx, t); err != nil {
		return "", err
	}
	if err := s.publisher.Publish(ctx, domain.EventTenantCreated, td.ID, ""); err != nil {
		return "", fmt.Errorf("publishing tenant created event: %w", err)
	}
	return td.ID, nil
}

// UpdateDescriptor replaces a tenant's descriptor, preserving its enabled
// modules.
func (s *TenantService) UpdateDescriptor(ctx context.Context, td domain.TenantDescriptor) error {
	if td.ID == "" {
		return domain.UserErrorf("tenant id must not be empty")
	}
	if err := s.registry.UpdateDescriptor(ctx, td); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, domain.EventTenantUpdated, td.ID, ""); err != nil {
		return fmt.Errorf("publishing tenant updated event: %w", err)
	}
	return nil
}

// Get returns a tenant by id.
func (s *TenantService) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.registry.Get(ctx, id)
}

// List returns all tenant descriptors sorted by id.
func (s *TenantService) List(ctx context.Context) ([]domain.TenantDescriptor, error) {
	return s.registry.List(ctx)
}

// Delete removes a tenant. Returns whether it existed.
func (s *TenantService) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := s.registry.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if existed {
		if err := s.publisher.Publish(ctx, domain.EventTenantDeleted, id, ""); err != nil {
			return true, fmt.Errorf("publishing tenant deleted event: %w", err)
		}
	}
	return existed, nil
}

// ListModules returns the tenant's enabled module ids, sorted.
func (s *TenantService) ListModules(ctx context.Context, id string) ([]string, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mods := t.ListModules()
	sort.Strings(mods)
	return mods, nil
}

// ListInterfaces returns the interfaces provided by the tenant's enabled
// modules. With full, every provided descriptor is returned; otherwise
// interfaces are deduplicated by id and reduced to id and version. An
// interfaceType of "" matches all types.
func (s *TenantService) ListInterfaces(ctx context.Context, id string, full bool, interfaceType string) ([]domain.InterfaceDescriptor, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mods, err := s.catalog.EnabledModules(ctx, t)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []domain.InterfaceDescriptor
	for _, md := range mods {
		for _, prov := range md.Provides {
			if interfaceType != "" && !prov.IsType(interfaceType) {
				continue
			}
			if full {
				out = append(out, prov)
				continue
			}
			if !seen[prov.ID] {
				seen[prov.ID] = true
				out = append(out, domain.InterfaceDescriptor{ID: prov.ID, Version: prov.Version})
			}
		}
	}
	return out, nil
}

// ListModulesFromInterface returns the tenant's enabled modules that
// provide the named interface.
func (s *TenantService) ListModulesFromInterface(ctx context.Context, id, interfaceName, interfaceType string) ([]*domain.ModuleDescriptor, error) {
	t, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mods, err := s.catalog.EnabledModules(ctx, t)
	if err != nil {
		return nil, err
	}
	var out []*domain.ModuleDescriptor
	for _, md := range mods {
		for _, prov := range md.Provides {
			if prov.ID != interfaceName {
				continue
			}
			if interfaceType != "" && !prov.IsType(interfaceType) {
				continue
			}
			out = append(out, md)
			break
		}
	}
	return out, nil
}

// EnableAndDisable runs one module transition for the tenant: enable
// moduleTo and/or disable moduleFrom. Returns the enabled module id, or ""
// for a pure disable.
func (s *TenantService) EnableAndDisable(ctx context.Context, tenantID, moduleFrom, moduleTo string) (string, error) {
	return s.engine.EnableAndDisable(ctx, tenantID, moduleFrom, moduleTo)
}

// InstallUpgrade plans and executes an install/upgrade request. A nil
// action list upgrades everything to the latest available version.
func (s *TenantService) InstallUpgrade(ctx context.Context, tenantID string,
	actions []domain.TenantModuleAction, opts domain.InstallOptions) ([]domain.TenantModuleAction, error) {

	return s.orchestrator.InstallUpgrade(ctx, tenantID, actions, opts)
}

// GetModuleUser succeeds when no tenant has the module enabled; otherwise
// it fails with the in-use kind carrying the first user's tenant id.
func (s *TenantService) GetModuleUser(_ context.Context, moduleID string) error {
	if tenantID, inUse := s.registry.ModuleUser(moduleID); inUse {
		return domain.InUse(tenantID)
	}
	return nil
}

// Load performs the one-shot startup load of tenants from the store.
func (s *TenantService) Load(ctx context.Context) error {
	return s.registry.Load(ctx)
}
