package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/modgate/internal/domain"
)

// InstallPlanner turns a list of requested module actions (or a nil
// "upgrade everything" request) into a fully expanded, dependency-closed
// plan. The computed plan replaces the request as the authoritative output.
type InstallPlanner struct {
	catalog domain.ModuleCatalog
	logger  *slog.Logger
}

// NewInstallPlanner creates a planner over the given catalog.
func NewInstallPlanner(catalog domain.ModuleCatalog, logger *slog.Logger) *InstallPlanner {
	return &InstallPlanner{catalog: catalog, logger: logger}
}

// Plan resolves requested actions against the tenant's state and the
// catalog. It returns the plan plus the available-module snapshot it was
// computed from, so the orchestrator executes against the same view.
func (p *InstallPlanner) Plan(ctx context.Context, t *domain.Tenant,
	requested []domain.TenantModuleAction, opts domain.InstallOptions) (*domain.Plan, map[string]*domain.ModuleDescriptor, error) {

	available, err := p.catalog.ModulesWithFilter(ctx, opts.PreRelease)
	if err != nil {
		return nil, nil, err
	}
	modsAvailable := make(map[string]*domain.ModuleDescriptor, len(available))
	modsEnabled := make(map[string]*domain.ModuleDescriptor)
	for _, md := range available {
		modsAvailable[md.ID] = md
		if t.IsEnabled(md.ID) {
			modsEnabled[md.ID] = md
		}
	}

	if requested == nil {
		requested = p.upgradeActions(t, modsAvailable, modsEnabled)
	}

	plan := &domain.Plan{}
	for _, action := range requested {
		if err := p.planAction(action, modsAvailable, modsEnabled, plan); err != nil {
			return nil, nil, err
		}
	}

	if diag := p.catalog.CheckAllDependencies(modsEnabled); diag != "" {
		p.logger.Warn("install plan violates dependencies", "tenant", t.ID(), "diagnostic", diag)
		return nil, nil, domain.UserErrorf("%s", diag)
	}
	return plan, modsAvailable, nil
}

// upgradeActions marks every enabled module that has a newer available
// version for install, in the tenant's enable order.
func (p *InstallPlanner) upgradeActions(t *domain.Tenant,
	modsAvailable, modsEnabled map[string]*domain.ModuleDescriptor) []domain.TenantModuleAction {

	availableIDs := make([]string, 0, len(modsAvailable))
	for id := range modsAvailable {
		availableIDs = append(availableIDs, id)
	}
	var out []domain.TenantModuleAction
	for _, fID := range t.ListModules() {
		if _, ok := modsEnabled[fID]; !ok {
			continue
		}
		uID := domain.ParseModuleID(fID).Latest(availableIDs)
		if uID != fID {
			p.logger.Info("upgrade available", "tenant", t.ID(), "from", fID, "to", uID)
			out = append(out, domain.TenantModuleAction{ID: uID, Action: domain.ActionEnable, From: fID})
		}
	}
	return out
}

func (p *InstallPlanner) planAction(action domain.TenantModuleAction,
	modsAvailable, modsEnabled map[string]*domain.ModuleDescriptor, plan *domain.Plan) error {

	switch action.Action {
	case domain.ActionEnable:
		return p.planEnable(action.ID, modsAvailable, modsEnabled, plan)
	case domain.ActionUpToDate:
		return p.planUpToDate(action.ID, modsEnabled)
	case domain.ActionDisable:
		return p.planDisable(action.ID, modsAvailable, modsEnabled, plan)
	default:
		return domain.Internalf("Not implemented: action = %s", action.Action)
	}
}

func (p *InstallPlanner) planEnable(id string,
	modsAvailable, modsEnabled map[string]*domain.ModuleDescriptor, plan *domain.Plan) error {

	mid := domain.ParseModuleID(id)
	if !mid.HasSemVer() {
		id = mid.Latest(keysOf(modsAvailable))
	}
	md, ok := modsAvailable[id]
	if !ok {
		return domain.NotFoundf("%s", id)
	}
	if _, enabled := modsEnabled[id]; enabled {
		if !plan.Contains(id) {
			plan.Append(domain.TenantModuleAction{ID: id, Action: domain.ActionUpToDate})
		}
		return nil
	}
	p.catalog.AddModuleDependencies(md, modsAvailable, modsEnabled, plan)
	return nil
}

func (p *InstallPlanner) planUpToDate(id string, modsEnabled map[string]*domain.ModuleDescriptor) error {
	if _, ok := modsEnabled[id]; !ok {
		return domain.NotFoundf("%s", id)
	}
	return nil
}

func (p *InstallPlanner) planDisable(id string,
	modsAvailable, modsEnabled map[string]*domain.ModuleDescriptor, plan *domain.Plan) error {

	mid := domain.ParseModuleID(id)
	if !mid.HasSemVer() {
		id = mid.Latest(keysOf(modsEnabled))
	}
	if _, ok := modsEnabled[id]; !ok {
		return domain.NotFoundf("%s", id)
	}
	md := modsAvailable[id]
	if md == nil {
		md = modsEnabled[id]
	}
	p.catalog.RemoveModuleDependencies(md, modsEnabled, plan)
	return nil
}

func keysOf(mods map[string]*domain.ModuleDescriptor) []string {
	out := make([]string, 0, len(mods))
	for id := range mods {
		out = append(out, id)
	}
	return out
}
