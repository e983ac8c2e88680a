package domain_test

import (
	"testing"

	"github.com/neomorfeo/modgate/internal/domain"
)

func TestRoutingEntry_Match(t *testing.T) {
	re := domain.RoutingEntry{Methods: []string{"POST"}, Path: "/_/tenant"}

	if !re.Match("", "POST") {
		t.Error("empty path should match on method alone")
	}
	if !re.Match("/_/tenant", "POST") {
		t.Error("exact path + method should match")
	}
	if re.Match("", "GET") {
		t.Error("GET should not match a POST-only entry")
	}

	wild := domain.RoutingEntry{Methods: []string{"*"}, PathPattern: "/perms/{id}"}
	if !wild.Match("/perms/abc", "DELETE") {
		t.Error("wildcard method with pattern should match")
	}
	if wild.Match("/other/abc", "POST") {
		t.Error("pattern should not match a different prefix")
	}
}

func TestSystemInterface(t *testing.T) {
	md := &domain.ModuleDescriptor{
		ID: "mod-perms-1.0.0",
		Provides: []domain.InterfaceDescriptor{
			{ID: "perms", Version: "1.0", InterfaceType: "proxy"},
			{ID: domain.TenantPermissionsInterface, Version: "1.0", InterfaceType: "system"},
		},
	}

	if md.SystemInterface(domain.TenantPermissionsInterface) == nil {
		t.Error("system interface should be found")
	}
	// A proxy interface with the right name is not a system interface.
	if md.SystemInterface("perms") != nil {
		t.Error("proxy interface must not be reported as system")
	}
	if md.SystemInterface("_tenant") != nil {
		t.Error("absent interface must be nil")
	}
}

func TestSatisfies(t *testing.T) {
	prov := domain.InterfaceDescriptor{ID: "users", Version: "2.3"}

	cases := []struct {
		ref  domain.InterfaceReference
		want bool
	}{
		{domain.InterfaceReference{ID: "users", Version: "2.0"}, true},
		{domain.InterfaceReference{ID: "users", Version: "2.3"}, true},
		{domain.InterfaceReference{ID: "users", Version: "2.4"}, false},
		{domain.InterfaceReference{ID: "users", Version: "1.0"}, false},
		{domain.InterfaceReference{ID: "users", Version: "3.0"}, false},
		{domain.InterfaceReference{ID: "other", Version: "2.0"}, false},
	}

	for _, tc := range cases {
		if got := prov.Satisfies(tc.ref); got != tc.want {
			t.Errorf("Satisfies(%+v) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestIsType_DefaultsToProxy(t *testing.T) {
	legacy := domain.InterfaceDescriptor{ID: "old", Version: "1.0"}
	if !legacy.IsType("proxy") {
		t.Error("undeclared interface type should count as proxy")
	}
	if legacy.IsType("system") {
		t.Error("undeclared interface type is not system")
	}
}
