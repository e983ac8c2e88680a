package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/modgate/internal/domain"
	"github.com/neomorfeo/modgate/internal/registry"
)

// InstallOrchestrator executes an install/upgrade plan in three strict
// phases: auto-deploy new instances, apply each transition through the
// change engine, and auto-undeploy instances no tenant uses anymore. Each
// phase walks the plan in order; the first failure aborts the whole
// operation with no rollback of completed steps.
type InstallOrchestrator struct {
	registry *registry.Registry
	planner  *InstallPlanner
	engine   *ChangeEngine
	proxy    domain.ModuleProxy
	logger   *slog.Logger
}

// NewInstallOrchestrator creates an orchestrator with the given
// collaborators.
func NewInstallOrchestrator(reg *registry.Registry, planner *InstallPlanner,
	engine *ChangeEngine, proxy domain.ModuleProxy, logger *slog.Logger) *InstallOrchestrator {

	return &InstallOrchestrator{
		registry: reg,
		planner:  planner,
		engine:   engine,
		proxy:    proxy,
		logger:   logger,
	}
}

// InstallUpgrade plans and executes the requested actions for the tenant.
// A nil request means "upgrade everything to latest". With
// options.Simulate the computed plan is returned without touching any
// state. The returned actions are the authoritative plan.
func (o *InstallOrchestrator) InstallUpgrade(ctx context.Context, tenantID string,
	requested []domain.TenantModuleAction, opts domain.InstallOptions) ([]domain.TenantModuleAction, error) {

	t, err := o.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, available, err := o.planner.Plan(ctx, t, requested, opts)
	if err != nil {
		return nil, err
	}
	if opts.Simulate {
		return plan.Actions(), nil
	}

	if opts.Deploy {
		if err := o.deployPhase(ctx, plan, available); err != nil {
			return nil, err
		}
	}
	if err := o.applyPhase(ctx, t, plan, available); err != nil {
		return nil, err
	}
	if opts.Deploy {
		if err := o.undeployPhase(ctx, plan, available); err != nil {
			return nil, err
		}
	}
	return plan.Actions(), nil
}

// deployPhase provisions an instance for every module being enabled or
// confirmed up to date.
func (o *InstallOrchestrator) deployPhase(ctx context.Context, plan *domain.Plan,
	available map[string]*domain.ModuleDescriptor) error {

	for _, a := range plan.Actions() {
		if a.Action != domain.ActionEnable && a.Action != domain.ActionUpToDate {
			continue
		}
		md := available[a.ID]
		if md == nil {
			return domain.Internalf("planned module %s missing from catalog snapshot", a.ID)
		}
		if err := o.proxy.AutoDeploy(ctx, md); err != nil {
			return err
		}
	}
	return nil
}

// applyPhase runs each planned transition through the change engine. The
// tenant record mutates in place as commits land, so later actions see the
// projected state of earlier ones.
func (o *InstallOrchestrator) applyPhase(ctx context.Context, t *domain.Tenant,
	plan *domain.Plan, available map[string]*domain.ModuleDescriptor) error {

	for _, a := range plan.Actions() {
		var mdFrom, mdTo *domain.ModuleDescriptor
		switch a.Action {
		case domain.ActionEnable:
			if a.From != "" {
				mdFrom = available[a.From]
			}
			mdTo = available[a.ID]
		case domain.ActionDisable:
			mdFrom = available[a.ID]
		}
		if mdFrom == nil && mdTo == nil {
			continue // uptodate: nothing to do
		}
		if err := o.engine.Apply(ctx, t, mdFrom, mdTo); err != nil {
			return err
		}
	}
	return nil
}

// undeployPhase removes instances of modules that left the tenant, unless
// some other tenant still enables them.
func (o *InstallOrchestrator) undeployPhase(ctx context.Context, plan *domain.Plan,
	available map[string]*domain.ModuleDescriptor) error {

	for _, a := range plan.Actions() {
		var md *domain.ModuleDescriptor
		switch a.Action {
		case domain.ActionEnable:
			if a.From != "" {
				md = available[a.From]
			}
		case domain.ActionDisable:
			md = available[a.ID]
		}
		if md == nil {
			continue
		}
		if user, inUse := o.registry.ModuleUser(md.ID); inUse {
			o.logger.Debug("skipping undeploy, module still in use", "module", md.ID, "tenant", user)
			continue
		}
		if err := o.proxy.AutoUndeploy(ctx, md); err != nil {
			return err
		}
	}
	return nil
}
