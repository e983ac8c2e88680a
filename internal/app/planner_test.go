package app_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/neomorfeo/modgate/internal/domain"
)

// plans through the service with simulate so only the planner runs.
func simulatePlan(t *testing.T, h *harness, tenantID string, actions []domain.TenantModuleAction, preRelease bool) []domain.TenantModuleAction {
	t.Helper()
	plan, err := h.service.InstallUpgrade(context.Background(), tenantID, actions,
		domain.InstallOptions{Simulate: true, PreRelease: preRelease})
	if err != nil {
		t.Fatalf("planning failed: %v", err)
	}
	return plan
}

func TestPlan_FreshInstallWithDependency(t *testing.T) {
	modB := withProvides(mod("mod-b-1.0.0"), "store", "1.0")
	modA := withRequires(mod("mod-a-1.0.0"), domain.InterfaceReference{ID: "store", Version: "1.0"})
	h := newHarness(t, modA, modB)
	h.addTenant(t, "t1")

	plan := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionEnable},
	}, false)

	want := []domain.TenantModuleAction{
		{ID: "mod-b-1.0.0", Action: domain.ActionEnable},
		{ID: "mod-a-1.0.0", Action: domain.ActionEnable},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("plan = %v, want %v", plan, want)
	}
}

func TestPlan_UpgradeCase(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"), mod("mod-a-1.1.0"))
	h.addTenant(t, "t1", "mod-a-1.0.0")

	plan := simulatePlan(t, h, "t1", nil, false)

	want := []domain.TenantModuleAction{
		{ID: "mod-a-1.1.0", Action: domain.ActionEnable, From: "mod-a-1.0.0"},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("plan = %v, want %v", plan, want)
	}
}

func TestPlan_UpgradeCase_NothingToDo(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"))
	h.addTenant(t, "t1", "mod-a-1.0.0")

	plan := simulatePlan(t, h, "t1", nil, false)
	if len(plan) != 0 {
		t.Errorf("plan = %v, want empty when everything is latest", plan)
	}
}

func TestPlan_DisableAppendsDependentsFirst(t *testing.T) {
	modB := withProvides(mod("mod-b-1.0.0"), "store", "1.0")
	modA := withRequires(mod("mod-a-1.0.0"), domain.InterfaceReference{ID: "store", Version: "1.0"})
	h := newHarness(t, modA, modB)
	h.addTenant(t, "t1", "mod-b-1.0.0", "mod-a-1.0.0")

	plan := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-b-1.0.0", Action: domain.ActionDisable},
	}, false)

	want := []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionDisable},
		{ID: "mod-b-1.0.0", Action: domain.ActionDisable},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("plan = %v, want %v", plan, want)
	}
}

func TestPlan_EnableAlreadyEnabledBecomesUpToDate(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"))
	h.addTenant(t, "t1", "mod-a-1.0.0")

	plan := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionEnable},
	}, false)

	want := []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionUpToDate},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("plan = %v, want %v", plan, want)
	}
}

func TestPlan_PartialIDResolvesLatest(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"), mod("mod-a-2.0.0"))
	h.addTenant(t, "t1")

	plan := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-a", Action: domain.ActionEnable},
	}, false)

	if len(plan) != 1 || plan[0].ID != "mod-a-2.0.0" {
		t.Errorf("plan = %v, want enable of mod-a-2.0.0", plan)
	}
}

func TestPlan_PreReleaseFilter(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"), mod("mod-a-2.0.0-rc.1"))
	h.addTenant(t, "t1")

	stable := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-a", Action: domain.ActionEnable},
	}, false)
	if stable[0].ID != "mod-a-1.0.0" {
		t.Errorf("stable resolution = %q, want mod-a-1.0.0", stable[0].ID)
	}

	pre := simulatePlan(t, h, "t1", []domain.TenantModuleAction{
		{ID: "mod-a", Action: domain.ActionEnable},
	}, true)
	if pre[0].ID != "mod-a-2.0.0-rc.1" {
		t.Errorf("preRelease resolution = %q, want mod-a-2.0.0-rc.1", pre[0].ID)
	}
}

func TestPlan_EnableUnknownModule(t *testing.T) {
	h := newHarness(t)
	h.addTenant(t, "t1")

	_, err := h.service.InstallUpgrade(context.Background(), "t1", []domain.TenantModuleAction{
		{ID: "mod-ghost-1.0.0", Action: domain.ActionEnable},
	}, domain.InstallOptions{Simulate: true})
	if !domain.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestPlan_UpToDateNotEnabled(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"))
	h.addTenant(t, "t1")

	_, err := h.service.InstallUpgrade(context.Background(), "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionUpToDate},
	}, domain.InstallOptions{Simulate: true})
	if !domain.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestPlan_DisableNotEnabled(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"))
	h.addTenant(t, "t1")

	_, err := h.service.InstallUpgrade(context.Background(), "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionDisable},
	}, domain.InstallOptions{Simulate: true})
	if !domain.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestPlan_UnknownActionIsInternal(t *testing.T) {
	h := newHarness(t, mod("mod-a-1.0.0"))
	h.addTenant(t, "t1")

	_, err := h.service.InstallUpgrade(context.Background(), "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: "explode"},
	}, domain.InstallOptions{Simulate: true})
	if domain.KindOf(err) != domain.KindInternal {
		t.Errorf("kind = %q, want internal, err = %v", domain.KindOf(err), err)
	}
}

func TestPlan_FinalDependencyCheck(t *testing.T) {
	// Disabling the provider while its dependent stays enabled is caught by
	// the final projected-set validation even if the walk misses it: here
	// we enable a module whose dependency cannot be satisfied at all.
	modA := withRequires(mod("mod-a-1.0.0"), domain.InterfaceReference{ID: "nowhere", Version: "1.0"})
	h := newHarness(t, modA)
	h.addTenant(t, "t1")

	_, err := h.service.InstallUpgrade(context.Background(), "t1", []domain.TenantModuleAction{
		{ID: "mod-a-1.0.0", Action: domain.ActionEnable},
	}, domain.InstallOptions{Simulate: true})
	if domain.KindOf(err) != domain.KindUser {
		t.Errorf("kind = %q, want user error, err = %v", domain.KindOf(err), err)
	}
}
