package policy

import (
	"context"
	"testing"
)

func TestPolicyExactMatch(t *testing.T) {
	eng := NewEngine(Set{"test": {
		Name:  "test",
		Rules: map[string]PathRule{"api/sites": {Capabilities: []string{CapRead}}},
	}})
	ctx := context.Background()

	if !eng.IsAllowed(ctx, []string{"test"}, CapRead, "/api/sites") {
		t.Error("expected read to be allowed on exact match")
	}
	if eng.IsAllowed(ctx, []string{"test"}, CapWrite, "/api/sites") {
		t.Error("expected write to be denied")
	}
}

func TestPolicySingleWildcard(t *testing.T) {
	eng := NewEngine(Set{"test": {
		Name:  "test",
		Rules: map[string]PathRule{"api/sites/*": {Capabilities: []string{CapWrite}}},
	}})
	ctx := context.Background()

	cases := []struct {
		path    string
		allowed bool
	}{
		{"/api/sites/add", true},
		{"/api/sites/delete", true},
		{"/api/sites/add/extra", false},
		{"/api/sites", false},
		{"/api/pricing/add", false},
	}
	for _, tc := range cases {
		got := eng.IsAllowed(ctx, []string{"test"}, CapWrite, tc.path)
		if got != tc.allowed {
			t.Errorf("path=%q: expected allowed=%v got %v", tc.path, tc.allowed, got)
		}
	}
}

func TestPolicyGlobStar(t *testing.T) {
	eng := NewEngine(Set{"test": {
		Name:  "test",
		Rules: map[string]PathRule{"api/downloads/**": {Capabilities: []string{CapRead}}},
	}})
	ctx := context.Background()

	for _, p := range []string{"/api/downloads", "/api/downloads/retry", "/api/downloads/a/b"} {
		if !eng.IsAllowed(ctx, []string{"test"}, CapRead, p) {
			t.Errorf("expected read allowed on %q", p)
		}
	}
	if eng.IsAllowed(ctx, []string{"test"}, CapRead, "/api/downloadsx") {
		t.Error("prefix must stop at a segment boundary")
	}
	if eng.IsAllowed(ctx, []string{"test"}, CapRead, "/api/users") {
		t.Error("users path should not be allowed")
	}
}

func TestUnknownPolicyIgnored(t *testing.T) {
	eng := NewEngine(Builtin())
	if eng.IsAllowed(context.Background(), []string{"ghost"}, CapRead, "/api/sites") {
		t.Error("unknown policy must not grant anything")
	}
}

func TestBuiltinAdmin(t *testing.T) {
	eng := NewEngine(Builtin())
	ctx := context.Background()

	for _, p := range []string{"/api/users", "/api/credit/subscribe", "/api/sites/add", "/api/pricing/delete"} {
		for _, c := range []string{CapRead, CapWrite} {
			if !eng.IsAllowed(ctx, []string{"admin"}, c, p) {
				t.Errorf("admin should have %s on %s", c, p)
			}
		}
	}
}

func TestBuiltinUser(t *testing.T) {
	eng := NewEngine(Builtin())
	ctx := context.Background()

	cases := []struct {
		method  string
		path    string
		allowed bool
	}{
		{"GET", "/api/user", true},
		{"GET", "/api/sites", true},
		{"GET", "/api/pricing", true},
		{"GET", "/api/credit/history", true},
		{"GET", "/api/downloads", true},
		{"POST", "/api/downloads", true},
		{"POST", "/api/downloads/retry", true},
		{"POST", "/api/auth/logout", true},
		{"GET", "/api/users", false},
		{"GET", "/api/credit/analytics", false},
		{"POST", "/api/credit/subscribe", false},
		{"POST", "/api/sites/add", false},
		{"POST", "/api/pricing/edit", false},
		{"POST", "/api/user", false},
	}
	for _, tc := range cases {
		got := eng.IsAllowed(ctx, []string{"user"}, CapabilityFor(tc.method), tc.path)
		if got != tc.allowed {
			t.Errorf("%s %s: expected allowed=%v got %v", tc.method, tc.path, tc.allowed, got)
		}
	}
}

func TestMultiplePolicies(t *testing.T) {
	set := Set{
		"reader": {Name: "reader", Rules: map[string]PathRule{"api/*": {Capabilities: []string{CapRead}}}},
		"writer": {Name: "writer", Rules: map[string]PathRule{"api/sites/add": {Capabilities: []string{CapWrite}}}},
	}
	eng := NewEngine(set)
	ctx := context.Background()

	if !eng.IsAllowed(ctx, []string{"reader", "writer"}, CapWrite, "/api/sites/add") {
		t.Error("write should be allowed via writer policy")
	}
	if !eng.IsAllowed(ctx, []string{"reader", "writer"}, CapRead, "/api/pricing") {
		t.Error("read should be allowed via reader policy")
	}
	if eng.IsAllowed(ctx, []string{"reader"}, CapWrite, "/api/sites/add") {
		t.Error("write should not be allowed with only reader policy")
	}
}
