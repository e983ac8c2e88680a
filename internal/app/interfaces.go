package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/modgate/internal/domain"
)

// legacyTenantPath is where old-fashioned tenant interfaces are reached
// when the descriptor declares no routing entries.
const legacyTenantPath = "/_/tenant"

// tenantInterfacePath resolves the POST path of a module's _tenant
// interface. Only version 1.0 is accepted. Modern descriptors mark the
// interface as a system interface and carry a routing entry with a POST
// path or path pattern; legacy descriptors fall back to /_/tenant. A
// module without a _tenant interface yields a not-found failure, which
// callers route to skip logic.
func tenantInterfacePath(logger *slog.Logger, md *domain.ModuleDescriptor) (string, error) {
	for i := range md.Provides {
		if md.Provides[i].ID == domain.TenantInterface {
			return tenantInterfacePath1(logger, md, &md.Provides[i])
		}
	}
	return "", domain.NotFoundf("no %s interface found for %s", domain.TenantInterface, md.ID)
}

func tenantInterfacePath1(logger *slog.Logger, md *domain.ModuleDescriptor, pi *domain.InterfaceDescriptor) (string, error) {
	if pi.Version != "1.0" {
		return "", domain.UserErrorf("Interface %s must be version 1.0", domain.TenantInterface)
	}
	if pi.IsSystem() {
		for _, re := range pi.RoutingEntries {
			if !re.Match("", http.MethodPost) {
				continue
			}
			if re.Path != "" {
				return re.Path, nil
			}
			if re.PathPattern != "" {
				return re.PathPattern, nil
			}
		}
	}
	logger.Warn("module uses old-fashioned tenant interface, falling back",
		"module", md.ID, "path", legacyTenantPath)
	return legacyTenantPath, nil
}

// permissionsPostPath resolves the POST path of a module's
// _tenantPermissions interface. An interface with routing entries but no
// usable POST path is a user error.
func permissionsPostPath(permsMod *domain.ModuleDescriptor) (string, error) {
	permInt := permsMod.SystemInterface(domain.TenantPermissionsInterface)
	if permInt == nil {
		return "", domain.NotFoundf("no %s interface in %s", domain.TenantPermissionsInterface, permsMod.ID)
	}
	path := ""
	for _, re := range permInt.RoutingEntries {
		if !re.Match("", http.MethodPost) {
			continue
		}
		path = re.Path
		if path == "" {
			path = re.PathPattern
		}
	}
	if path == "" {
		return "", domain.UserErrorf(
			"Bad %s interface in module %s. No path to POST to",
			domain.TenantPermissionsInterface, permsMod.ID)
	}
	return path, nil
}

// findPermissionsProvider scans the tenant's enabled modules in insertion
// order and returns the first one declaring a _tenantPermissions system
// interface.
func findPermissionsProvider(ctx context.Context, catalog domain.ModuleCatalog, t *domain.Tenant) (*domain.ModuleDescriptor, error) {
	for _, mid := range t.ListModules() {
		md, err := catalog.Get(ctx, mid)
		if err != nil {
			return nil, err
		}
		if md.SystemInterface(domain.TenantPermissionsInterface) != nil {
			return md, nil
		}
	}
	return nil, domain.NotFoundf("no module provides %s", domain.TenantPermissionsInterface)
}
