package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc", "abc", false},
		{"padded", "Bearer   abc  ", "abc", false},
		{"missing", "", "", true},
		{"basic", "Basic abc", "", true},
		{"blank", "Bearer   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://slate.test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractBearerToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	tokens := []TokenConfig{
		{Token: "viewer", Scopes: []string{ScopeJobsRO, " "}},
		{Token: "launcher", Scopes: []string{ScopeActionsRW}},
	}

	p, ok := Authenticate("root", "root", tokens)
	if !ok || !HasAnyScope(p, ScopeEventsRO) {
		t.Fatal("api key should authenticate with every scope")
	}

	p, ok = Authenticate("viewer", "root", tokens)
	if !ok || p.Name != "tokens[0]" {
		t.Fatalf("viewer token: %+v, %v", p, ok)
	}
	if !HasAnyScope(p, ScopeJobsRO) || HasAnyScope(p, ScopeActionsRO) {
		t.Errorf("viewer scopes = %v", p.Scopes)
	}
	if p.Scopes[""] {
		t.Error("blank scope kept")
	}

	p, ok = Authenticate("launcher", "", tokens)
	if !ok || !HasAnyScope(p, ScopeActionsRO) {
		t.Error("actions:rw should imply actions:ro")
	}

	if _, ok := Authenticate("", "", tokens); ok {
		t.Error("empty token authenticated against empty api key")
	}
	if _, ok := Authenticate("nope", "root", tokens); ok {
		t.Error("unknown token authenticated")
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("principal found in empty context")
	}
	ctx := WithPrincipal(context.Background(), Principal{Name: "tokens[0]"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Name != "tokens[0]" {
		t.Fatalf("PrincipalFromContext() = %v, %v", p, ok)
	}
	if !HasAnyScope(p) {
		t.Error("no required scopes should always pass")
	}
}

func TestKnown(t *testing.T) {
	for _, s := range []string{ScopeAll, ScopeActionsRW, " jobs:ro "} {
		if !Known(s) {
			t.Errorf("Known(%q) = false", s)
		}
	}
	if Known("admin") {
		t.Error("Known(admin) = true")
	}
}
