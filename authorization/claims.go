package authorization

import (
	"context"
	"strings"
)

// Claims is the verified identity of the caller, e.g. the payload of a
// bearer token. A nil Claims means the caller is unauthenticated.
type Claims map[string]any

// Lookup resolves a dotted path such as "org.id" into nested claim maps.
func (c Claims) Lookup(path string) (any, bool) {
	if c == nil {
		return nil, false
	}
	var cur any = map[string]any(c)
	for _, key := range strings.Split(path, ".") {
		var (
			v  any
			ok bool
		)
		switch m := cur.(type) {
		case map[string]any:
			v, ok = m[key]
		case Claims:
			v, ok = m[key]
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Authenticated reports whether the claims belong to an authenticated caller.
func (c Claims) Authenticated() bool {
	return c != nil
}

// claimsCtxKey is the context key for storing the caller's claims.
type claimsCtxKey struct{}

// NewContext returns a new context with the claims attached.
func NewContext(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// FromContext retrieves the claims from the context.
// Returns nil if no claims are present.
func FromContext(ctx context.Context) Claims {
	c, _ := ctx.Value(claimsCtxKey{}).(Claims)
	return c
}
