// Package auth authenticates bearer tokens for the HTTP API and checks
// their scopes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Scopes understood by the HTTP API. A "rw" scope implies its "ro" twin.
const (
	ScopeAll       = "*"
	ScopeActionsRO = "actions:ro"
	ScopeActionsRW = "actions:rw"
	ScopeJobsRO    = "jobs:ro"
	ScopeJobsRW    = "jobs:rw"
	ScopeEventsRO  = "events:ro"
)

var implied = map[string]string{
	ScopeActionsRW: ScopeActionsRO,
	ScopeJobsRW:    ScopeJobsRO,
}

// Known reports whether scope is one the API understands.
func Known(scope string) bool {
	switch strings.TrimSpace(scope) {
	case ScopeAll, ScopeActionsRO, ScopeActionsRW, ScopeJobsRO, ScopeJobsRW, ScopeEventsRO:
		return true
	}
	return false
}

// TokenConfig is a bearer token with a set of scopes.
type TokenConfig struct {
	Token  string
	Scopes []string
}

// Principal is an authenticated caller. Name identifies which credential
// matched ("api_key" or "tokens[N]") and is safe to log.
type Principal struct {
	Name   string
	Scopes map[string]bool
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

var (
	errNoHeader    = errors.New("missing Authorization header")
	errNotBearer   = errors.New("invalid Authorization header format")
	errEmptyBearer = errors.New("missing API key")
)

// ExtractBearerToken reads the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errNoHeader
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return "", errNotBearer
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errEmptyBearer
	}
	return token, nil
}

// Authenticate matches a presented bearer token against the API key, which
// grants every scope, and then the configured tokens.
func Authenticate(presented, apiKey string, tokens []TokenConfig) (Principal, bool) {
	if secretEqual(presented, apiKey) {
		return Principal{Name: "api_key", Scopes: map[string]bool{ScopeAll: true}}, true
	}
	for i, t := range tokens {
		if secretEqual(presented, t.Token) {
			return Principal{Name: fmt.Sprintf("tokens[%d]", i), Scopes: expand(t.Scopes)}, true
		}
	}
	return Principal{}, false
}

// secretEqual never matches an empty secret.
func secretEqual(a, b string) bool {
	if a == "" || b == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func expand(scopes []string) map[string]bool {
	out := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out[s] = true
		if ro, ok := implied[s]; ok {
			out[ro] = true
		}
	}
	return out
}

// HasAnyScope reports whether p holds "*" or one of required. No required
// scopes always passes.
func HasAnyScope(p Principal, required ...string) bool {
	if len(required) == 0 || p.Scopes[ScopeAll] {
		return true
	}
	for _, s := range required {
		if p.Scopes[s] {
			return true
		}
	}
	return false
}
