package authorization

import (
	"fmt"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/querylanguage"
)

// Authorizer applies authorization rules on behalf of one caller. It is
// created per request and never shared between callers.
type Authorizer struct {
	claims Claims
}

// New returns an Authorizer for the given claims. Nil claims describe an
// unauthenticated caller.
func New(claims Claims) *Authorizer {
	return &Authorizer{claims: claims}
}

// Claims returns the caller's claims.
func (a *Authorizer) Claims() Claims {
	return a.claims
}

// rule resolves one rule. Undecided rules are false at rule level.
func (a *Authorizer) rule(r *Rule, input map[string]any) querylanguage.P {
	if r.RequireAuthentication && !a.claims.Authenticated() {
		return querylanguage.False
	}
	p := Resolve(r.Where, a.claims, input)
	if p == querylanguage.Unknown {
		return querylanguage.False
	}
	return p
}

// Filter returns the predicate the filter rules for op place on matched
// nodes. It returns nil when no rule narrows the match and
// querylanguage.False when nothing may match.
func (a *Authorizer) Filter(rules []*Rule, op Operation) querylanguage.P {
	var ps []querylanguage.P
	for _, r := range rules {
		if r.Mode != Filter || !r.Applies(op, Before|After) {
			continue
		}
		switch p := a.rule(r, nil); p {
		case querylanguage.False:
			return querylanguage.False
		case querylanguage.True:
		default:
			ps = append(ps, p)
		}
	}
	return querylanguage.All(ps...)
}

// Validate checks the validate rules for op at the given position. Rules
// decided from the claims alone, or from input for create mutations, fail
// with an AuthorizationDeniedError. Whatever depends on stored data is
// returned as a residual predicate that must hold on the node, or nil if
// nothing remains to check.
func (a *Authorizer) Validate(target string, rules []*Rule, op Operation, when When, input map[string]any) (querylanguage.P, error) {
	var ps []querylanguage.P
	for i, r := range rules {
		if r.Mode != Validate || !r.Applies(op, when) {
			continue
		}
		switch p := a.rule(r, input); p {
		case querylanguage.False:
			return nil, neoql.NewAuthorizationDeniedError(target, string(op), a.reason(r, i))
		case querylanguage.True:
		default:
			ps = append(ps, p)
		}
	}
	return querylanguage.All(ps...), nil
}

func (a *Authorizer) reason(r *Rule, i int) string {
	if r.RequireAuthentication && !a.claims.Authenticated() {
		return "authentication required"
	}
	return fmt.Sprintf("rule %d not satisfied", i)
}
