package domain_test

import (
	"testing"

	"github.com/neomorfeo/modgate/internal/domain"
)

func TestParseModuleID(t *testing.T) {
	cases := []struct {
		id      string
		product string
		semver  string
		hasSem  bool
	}{
		{"mod-users-1.0.0", "mod-users", "1.0.0", true},
		{"mod-users", "mod-users", "", false},
		{"auth-2.1.3-alpha.1", "auth", "2.1.3-alpha.1", true},
		{"mod-2fa-helper", "mod", "2fa-helper", false},
		{"plain", "plain", "", false},
	}

	for _, tc := range cases {
		mid := domain.ParseModuleID(tc.id)
		if mid.Product() != tc.product {
			t.Errorf("ParseModuleID(%q).Product() = %q, want %q", tc.id, mid.Product(), tc.product)
		}
		if mid.SemVer() != tc.semver {
			t.Errorf("ParseModuleID(%q).SemVer() = %q, want %q", tc.id, mid.SemVer(), tc.semver)
		}
		if mid.HasSemVer() != tc.hasSem {
			t.Errorf("ParseModuleID(%q).HasSemVer() = %v, want %v", tc.id, mid.HasSemVer(), tc.hasSem)
		}
	}
}

func TestLatest(t *testing.T) {
	candidates := []string{
		"mod-users-1.0.0",
		"mod-users-1.2.0",
		"mod-users-1.10.0",
		"mod-auth-9.0.0",
	}

	cases := []struct {
		id   string
		want string
	}{
		{"mod-users", "mod-users-1.10.0"},
		{"mod-users-1.0.0", "mod-users-1.10.0"},
		{"mod-auth", "mod-auth-9.0.0"},
		{"mod-unknown", "mod-unknown"},
	}

	for _, tc := range cases {
		if got := domain.ParseModuleID(tc.id).Latest(candidates); got != tc.want {
			t.Errorf("Latest(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestHasPreRelease(t *testing.T) {
	if !domain.ParseModuleID("mod-a-1.0.0-rc.1").HasPreRelease() {
		t.Error("1.0.0-rc.1 should be pre-release")
	}
	if domain.ParseModuleID("mod-a-1.0.0").HasPreRelease() {
		t.Error("1.0.0 should not be pre-release")
	}
}
