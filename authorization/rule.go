package authorization

import (
	"fmt"
	"slices"

	"github.com/syssam/neoql/querylanguage"
)

// Operation is the kind of access a rule guards.
type Operation string

// Operations.
const (
	Read      Operation = "READ"
	Aggregate Operation = "AGGREGATE"
	Create    Operation = "CREATE"
	Update    Operation = "UPDATE"
	Delete    Operation = "DELETE"
)

// Operations lists every operation in declaration order.
var Operations = []Operation{Read, Aggregate, Create, Update, Delete}

// Mode selects how a rule is enforced.
type Mode int

// Rule modes.
const (
	// Filter rules narrow the matched set.
	Filter Mode = iota
	// Validate rules reject the request.
	Validate
)

// String returns the directive argument name of the mode.
func (m Mode) String() string {
	if m == Validate {
		return "validate"
	}
	return "filter"
}

// When is the set of positions a validate rule is checked at.
type When uint8

// Validation positions.
const (
	Before When = 1 << iota
	After
)

// Rule is one authorization rule of a type or field.
type Rule struct {
	Operations            []Operation
	Mode                  Mode
	When                  When
	RequireAuthentication bool
	// Where is the predicate over node fields and claims. Nil matches.
	Where querylanguage.P
}

// Applies reports whether the rule guards op at the given position. Filter
// rules ignore the position.
func (r *Rule) Applies(op Operation, when When) bool {
	if !slices.Contains(r.Operations, op) {
		return false
	}
	return r.Mode == Filter || r.When&when != 0
}

// RuleError reports a rule object that cannot be parsed.
type RuleError struct {
	Path string
	Msg  string
	Err  error
}

// Error returns the error string.
func (e *RuleError) Error() string {
	s := "authorization: " + e.Path + ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error.
func (e *RuleError) Unwrap() error { return e.Err }

// ParseRules parses the filter and validate arguments of an @authorization
// directive. caseInsensitive gates the caseInsensitive operator in rule
// predicates.
func ParseRules(args querylanguage.Object, caseInsensitive bool) ([]*Rule, error) {
	var rules []*Rule
	for _, kv := range args {
		var mode Mode
		switch kv.Key {
		case "filter":
			mode = Filter
		case "validate":
			mode = Validate
		default:
			return nil, &RuleError{Path: kv.Key, Msg: "unknown argument"}
		}
		for i, v := range querylanguage.AsList(kv.Value) {
			path := fmt.Sprintf("%s[%d]", kv.Key, i)
			o, ok := querylanguage.AsObject(v)
			if !ok {
				return nil, &RuleError{Path: path, Msg: "expected a rule object"}
			}
			r, err := parseRule(o, mode, caseInsensitive, path)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func parseRule(o querylanguage.Object, mode Mode, caseInsensitive bool, path string) (*Rule, error) {
	r := &Rule{
		Operations:            Operations,
		Mode:                  mode,
		When:                  Before | After,
		RequireAuthentication: true,
	}
	for _, kv := range o {
		switch kv.Key {
		case "operations":
			ops, err := parseOperations(kv.Value)
			if err != nil {
				return nil, &RuleError{Path: path + ".operations", Msg: err.Error()}
			}
			r.Operations = ops
		case "requireAuthentication":
			b, ok := kv.Value.(bool)
			if !ok {
				return nil, &RuleError{Path: path + ".requireAuthentication", Msg: "expected a boolean"}
			}
			r.RequireAuthentication = b
		case "when":
			if mode != Validate {
				return nil, &RuleError{Path: path + ".when", Msg: "only validate rules take a position"}
			}
			w, err := parseWhen(kv.Value)
			if err != nil {
				return nil, &RuleError{Path: path + ".when", Msg: err.Error()}
			}
			r.When = w
		case "where":
			where, ok := querylanguage.AsObject(kv.Value)
			if !ok {
				return nil, &RuleError{Path: path + ".where", Msg: "expected an object"}
			}
			p, err := parseWhere(where, caseInsensitive)
			if err != nil {
				return nil, &RuleError{Path: path + ".where", Msg: "invalid predicate", Err: err}
			}
			r.Where = p
		default:
			return nil, &RuleError{Path: path + "." + kv.Key, Msg: "unknown rule field"}
		}
	}
	return r, nil
}

func parseOperations(v any) ([]Operation, error) {
	var ops []Operation
	for _, x := range querylanguage.AsList(v) {
		s, _ := x.(string)
		op := Operation(s)
		if !slices.Contains(Operations, op) {
			return nil, fmt.Errorf("unknown operation %v", x)
		}
		if !slices.Contains(ops, op) {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no operations")
	}
	return ops, nil
}

func parseWhen(v any) (When, error) {
	var w When
	for _, x := range querylanguage.AsList(v) {
		switch x {
		case "BEFORE":
			w |= Before
		case "AFTER":
			w |= After
		default:
			return 0, fmt.Errorf("unknown position %v", x)
		}
	}
	if w == 0 {
		return 0, fmt.Errorf("no positions")
	}
	return w, nil
}

// parseWhere parses a rule predicate. Its keys are node, jwt and the
// logical combinators.
func parseWhere(o querylanguage.Object, caseInsensitive bool) (querylanguage.P, error) {
	var ps []querylanguage.P
	for _, kv := range o {
		var (
			p   querylanguage.P
			err error
		)
		switch kv.Key {
		case "node", "jwt":
			obj, ok := querylanguage.AsObject(kv.Value)
			if !ok {
				return nil, fmt.Errorf("%s: expected an object", kv.Key)
			}
			opts := []querylanguage.WhereOption{querylanguage.WithClaimRefs(), querylanguage.WithCaseInsensitive(caseInsensitive)}
			if kv.Key == "jwt" {
				opts = append(opts, querylanguage.WithClaimFields())
			}
			p, err = querylanguage.ParseWhere(obj, opts...)
		case querylanguage.KeyAnd, querylanguage.KeyOr:
			var xs []querylanguage.P
			for _, v := range querylanguage.AsList(kv.Value) {
				obj, ok := querylanguage.AsObject(v)
				if !ok {
					return nil, fmt.Errorf("%s: expected an object", kv.Key)
				}
				x, err := parseWhere(obj, caseInsensitive)
				if err != nil {
					return nil, err
				}
				if x == nil {
					x = querylanguage.True
				}
				xs = append(xs, x)
			}
			if kv.Key == querylanguage.KeyAnd {
				p = querylanguage.All(xs...)
			} else if p = querylanguage.Any(xs...); p == nil {
				p = querylanguage.False
			}
		case querylanguage.KeyNot:
			obj, ok := querylanguage.AsObject(kv.Value)
			if !ok {
				return nil, fmt.Errorf("NOT: expected an object")
			}
			x, err := parseWhere(obj, caseInsensitive)
			if err != nil {
				return nil, err
			}
			if x == nil {
				x = querylanguage.True
			}
			p = querylanguage.Not(x)
		default:
			return nil, fmt.Errorf("unknown key %q", kv.Key)
		}
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return querylanguage.All(ps...), nil
}
