package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/neomorfeo/modgate/internal/domain"
	"github.com/neomorfeo/modgate/internal/registry"
)

// ChangeEngine drives one module transition (tenant, mdFrom?, mdTo?)
// through its fixed step sequence: dependency check, tenant-init call,
// permission broadcast, commit. Steps are strictly sequential; the first
// failure terminates the transition and leaves durable state untouched.
// External side effects of completed steps are never rolled back.
//
// Concurrent transitions on the same tenant are not serialized here;
// callers that need that must serialize at the public boundary.
type ChangeEngine struct {
	registry  *registry.Registry
	catalog   domain.ModuleCatalog
	proxy     domain.ModuleProxy
	steps     domain.StepValidator
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewChangeEngine creates an engine with the given collaborators.
func NewChangeEngine(reg *registry.Registry, catalog domain.ModuleCatalog,
	proxy domain.ModuleProxy, steps domain.StepValidator,
	publisher domain.EventPublisher, logger *slog.Logger) *ChangeEngine {

	return &ChangeEngine{
		registry:  reg,
		catalog:   catalog,
		proxy:     proxy,
		steps:     steps,
		publisher: publisher,
		logger:    logger,
	}
}

// tenantInitRequest is the body POSTed to a module's _tenant interface.
type tenantInitRequest struct {
	ModuleTo   string `json:"module_to"`
	ModuleFrom string `json:"module_from,omitempty"`
}

// permissionsRequest is the body POSTed to a _tenantPermissions interface.
type permissionsRequest struct {
	ModuleID string                 `json:"moduleId"`
	Perms    []domain.PermissionSet `json:"perms"`
}

// EnableAndDisable enables moduleTo and/or disables moduleFrom for the
// tenant. Either id may be empty, not both. moduleTo may be partial and is
// resolved to the latest matching version. Returns the id of the enabled
// module, or "" for a pure disable.
func (e *ChangeEngine) EnableAndDisable(ctx context.Context, tenantID, moduleFrom, moduleTo string) (string, error) {
	if moduleFrom == "" && moduleTo == "" {
		return "", domain.UserErrorf("nothing to enable or disable")
	}
	t, err := e.registry.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}

	step := domain.StepStart
	var mdFrom, mdTo *domain.ModuleDescriptor
	if moduleTo != "" {
		if mdTo, err = e.catalog.GetLatest(ctx, moduleTo); err != nil {
			return "", err
		}
	}
	if moduleFrom != "" {
		if mdFrom, err = e.catalog.Get(ctx, moduleFrom); err != nil {
			return "", err
		}
	}
	if step, err = e.steps.Apply(ctx, step, domain.EventResolve); err != nil {
		return "", err
	}

	if err = e.checkDependencies(ctx, t, mdFrom, mdTo); err != nil {
		e.logger.Debug("dependency check failed", "tenant", tenantID, "error", err)
		return "", err
	}
	if step, err = e.steps.Apply(ctx, step, domain.EventCheckDeps); err != nil {
		return "", err
	}

	if err = e.apply(ctx, t, mdFrom, mdTo, step); err != nil {
		return "", err
	}
	if mdTo != nil {
		return mdTo.ID, nil
	}
	return "", nil
}

// Apply runs the side-effecting half of a transition against an already
// validated pair of descriptors, as the orchestrator does for each planned
// action. The tenant record is mutated in place on commit.
func (e *ChangeEngine) Apply(ctx context.Context, t *domain.Tenant, mdFrom, mdTo *domain.ModuleDescriptor) error {
	return e.apply(ctx, t, mdFrom, mdTo, domain.StepChecked)
}

// checkDependencies validates the projected enabled set current ∪ {mdTo}
// ∖ {mdFrom} against the catalog's conflict and dependency predicates.
func (e *ChangeEngine) checkDependencies(ctx context.Context, t *domain.Tenant, mdFrom, mdTo *domain.ModuleDescriptor) error {
	enabled, err := e.catalog.EnabledModules(ctx, t)
	if err != nil {
		return err
	}
	mods := make(map[string]*domain.ModuleDescriptor, len(enabled)+1)
	for _, md := range enabled {
		mods[md.ID] = md
	}
	if mdFrom != nil {
		delete(mods, mdFrom.ID)
	}
	if mdTo != nil {
		if _, already := mods[mdTo.ID]; already {
			return domain.UserErrorf("Module %s already provided", mdTo.ID)
		}
		mods[mdTo.ID] = mdTo
	}
	conflicts := e.catalog.CheckAllConflicts(mods)
	deps := e.catalog.CheckAllDependencies(mods)
	if conflicts == "" && deps == "" {
		return nil
	}
	return domain.UserErrorf("%s", strings.TrimSpace(conflicts+" "+deps))
}

// apply runs TENANT_INIT, PERMISSIONS, and COMMIT from the given step.
func (e *ChangeEngine) apply(ctx context.Context, t *domain.Tenant, mdFrom, mdTo *domain.ModuleDescriptor, step domain.ChangeStep) error {
	if mdTo == nil {
		// Pure disable: straight to commit.
		if _, err := e.steps.Apply(ctx, step, domain.EventCommit); err != nil {
			return err
		}
		return e.commit(ctx, t, mdFrom.ID, "")
	}

	if err := e.tenantInit(ctx, t, mdFrom, mdTo); err != nil {
		return err
	}
	step, err := e.steps.Apply(ctx, step, domain.EventTenantInit)
	if err != nil {
		return err
	}

	if step, err = e.broadcastPermissions(ctx, t, mdTo, step); err != nil {
		// No rollback: the module stays tenant-initialized without being
		// recorded as enabled. Left for operator reconciliation.
		e.logger.Warn("permissions broadcast failed after tenant init",
			"tenant", t.ID(), "module", mdTo.ID, "error", err)
		return err
	}

	if _, err = e.steps.Apply(ctx, step, domain.EventCommit); err != nil {
		return err
	}
	from := ""
	if mdFrom != nil {
		from = mdFrom.ID
	}
	return e.commit(ctx, t, from, mdTo.ID)
}

// tenantInit POSTs the module_to/module_from body to mdTo's _tenant
// interface. A module without the interface skips the call.
func (e *ChangeEngine) tenantInit(ctx context.Context, t *domain.Tenant, mdFrom, mdTo *domain.ModuleDescriptor) error {
	path, err := tenantInterfacePath(e.logger, mdTo)
	if err != nil {
		if domain.IsNotFound(err) {
			e.logger.Debug("module has no tenant init support", "module", mdTo.ID)
			return nil
		}
		return err
	}
	req := tenantInitRequest{ModuleTo: mdTo.ID}
	if mdFrom != nil {
		req.ModuleFrom = mdFrom.ID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.InternalWrap("encoding tenant init request", err)
	}
	return e.proxy.CallSystemInterface(ctx, t.ID(), mdTo.ID, path, body)
}

// broadcastPermissions picks the tenant's permissions module and pushes
// permission sets to it. When mdTo itself is the first permissions
// provider, every already-enabled module is backfilled first, in insertion
// order, then mdTo broadcasts its own. When no provider exists at all the
// stage is skipped silently.
func (e *ChangeEngine) broadcastPermissions(ctx context.Context, t *domain.Tenant, mdTo *domain.ModuleDescriptor, step domain.ChangeStep) (domain.ChangeStep, error) {
	permsMod, err := findPermissionsProvider(ctx, e.catalog, t)
	if err != nil {
		if !domain.IsNotFound(err) {
			return step, err
		}
		if mdTo.SystemInterface(domain.TenantPermissionsInterface) == nil {
			e.logger.Debug("no permissions module, carrying on without it", "tenant", t.ID())
			return step, nil
		}
		// The new module brings the first permissions surface: reload the
		// permissions of everything already enabled, then its own.
		for _, mid := range t.ListModules() {
			md, err := e.catalog.Get(ctx, mid)
			if err != nil {
				return step, err
			}
			if err := e.tenantPerms(ctx, t, md, mdTo); err != nil {
				return step, err
			}
		}
		if err := e.tenantPerms(ctx, t, mdTo, mdTo); err != nil {
			return step, err
		}
		return e.steps.Apply(ctx, step, domain.EventBroadcastPerms)
	}

	if mdTo.SystemInterface(domain.TenantPermissionsInterface) != nil {
		// The module brings its own permissions surface, which overrides
		// the tenant's current provider.
		permsMod = mdTo
	}
	if err := e.tenantPerms(ctx, t, mdTo, permsMod); err != nil {
		return step, err
	}
	return e.steps.Apply(ctx, step, domain.EventBroadcastPerms)
}

// tenantPerms POSTs target's permission sets to host's _tenantPermissions
// endpoint.
func (e *ChangeEngine) tenantPerms(ctx context.Context, t *domain.Tenant, target, host *domain.ModuleDescriptor) error {
	path, err := permissionsPostPath(host)
	if err != nil {
		return err
	}
	body, err := json.Marshal(permissionsRequest{ModuleID: target.ID, Perms: target.PermissionSets})
	if err != nil {
		return domain.InternalWrap("encoding permissions request", err)
	}
	e.logger.Debug("loading permissions", "module", target.ID, "via", host.ID, "tenant", t.ID())
	return e.proxy.CallSystemInterface(ctx, t.ID(), host.ID, path, body)
}

// commit mutates the tenant record and publishes it: disable first, then
// enable, store-first, memory-second.
func (e *ChangeEngine) commit(ctx context.Context, t *domain.Tenant, moduleFrom, moduleTo string) error {
	if moduleFrom != "" {
		t.DisableModule(moduleFrom)
	}
	if moduleTo != "" {
		t.EnableModule(moduleTo)
	}
	if err := e.registry.UpdateModules(ctx, t); err != nil {
		return err
	}
	if moduleFrom != "" {
		if err := e.publisher.Publish(ctx, domain.EventModuleDisabled, t.ID(), moduleFrom); err != nil {
			return domain.InternalWrap("publishing module disabled event", err)
		}
	}
	if moduleTo != "" {
		if err := e.publisher.Publish(ctx, domain.EventModuleEnabled, t.ID(), moduleTo); err != nil {
			return domain.InternalWrap("publishing module enabled event", err)
		}
	}
	return nil
}
