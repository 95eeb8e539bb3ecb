package querylanguage

import (
	"fmt"
	"strings"
)

// WhereError reports a where input that does not describe a predicate.
type WhereError struct {
	Path string // Dotted path of the offending key
	Msg  string
}

// Error returns the error string.
func (e *WhereError) Error() string {
	if e.Path == "" {
		return "querylanguage: " + e.Msg
	}
	return "querylanguage: " + e.Path + ": " + e.Msg
}

// IsWhereError reports whether err is a *WhereError.
func IsWhereError(err error) bool {
	_, ok := err.(*WhereError)
	return ok
}

// Where input keys.
const (
	KeyAnd             = "AND"
	KeyOr              = "OR"
	KeyNot             = "NOT"
	KeyCaseInsensitive = "caseInsensitive"
)

// Quantifiers of relationship filters.
var quantifiers = map[string]func(string, ...P) P{
	"some":   HasEdgeWith,
	"none":   HasNoEdgeWith,
	"all":    AllEdgesWith,
	"single": SingleEdgeWith,
}

// ClaimPrefix marks a string value as a reference into the caller's claims.
const ClaimPrefix = "$jwt."

type whereConfig struct {
	claimRefs       bool
	claimFields     bool
	caseInsensitive bool
}

// WhereOption configures ParseWhere.
type WhereOption func(*whereConfig)

// WithClaimRefs makes string values of the form "$jwt.<path>" claim operands.
func WithClaimRefs() WhereOption {
	return func(c *whereConfig) { c.claimRefs = true }
}

// WithClaimFields makes keys name claims instead of node fields. It is used
// for the jwt part of authorization rules.
func WithClaimFields() WhereOption {
	return func(c *whereConfig) { c.claimFields = true }
}

// WithCaseInsensitive enables the caseInsensitive operator object.
func WithCaseInsensitive(enabled bool) WhereOption {
	return func(c *whereConfig) { c.caseInsensitive = enabled }
}

// ParseWhere converts a where input object into a predicate. It returns
// nil when the input places no restriction.
//
//	{title: {eq: "x"}, actors: {some: {name: {startsWith: "K"}}}, NOT: {year: {lt: 2000}}}
//
// parses into
//
//	title == "x" && has_edge(actors, has_prefix(name, "K")) && !(year < 2000)
func ParseWhere(where Object, opts ...WhereOption) (P, error) {
	cfg := &whereConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.object(where, "")
}

func (c *whereConfig) object(where Object, path string) (P, error) {
	var ps []P
	for _, kv := range where {
		p, err := c.entry(kv, join(path, kv.Key))
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return All(ps...), nil
}

func (c *whereConfig) entry(kv KeyValue, path string) (P, error) {
	switch kv.Key {
	case KeyAnd, KeyOr:
		var ps []P
		for i, v := range AsList(kv.Value) {
			obj, ok := AsObject(v)
			if !ok {
				return nil, &WhereError{Path: fmt.Sprintf("%s[%d]", path, i), Msg: "expected an object"}
			}
			p, err := c.object(obj, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			if p == nil {
				p = True
			}
			ps = append(ps, p)
		}
		if kv.Key == KeyAnd {
			return All(ps...), nil
		}
		if len(ps) == 0 {
			return False, nil
		}
		return Any(ps...), nil
	case KeyNot:
		obj, ok := AsObject(kv.Value)
		if !ok {
			return nil, &WhereError{Path: path, Msg: "expected an object"}
		}
		p, err := c.object(obj, path)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return False, nil
		}
		return Not(p), nil
	}
	ops, ok := AsObject(kv.Value)
	if !ok || len(ops) == 0 {
		return nil, &WhereError{Path: path, Msg: "expected an operator object"}
	}
	if _, ok := quantifiers[ops[0].Key]; ok {
		return c.edge(kv.Key, ops, path)
	}
	var subject Expr = F(kv.Key)
	if c.claimFields {
		subject = C(kv.Key)
	}
	var ps []P
	for _, op := range ops {
		p, err := c.operator(subject, op, join(path, op.Key))
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return All(ps...), nil
}

func (c *whereConfig) edge(name string, ops Object, path string) (P, error) {
	if c.claimFields {
		return nil, &WhereError{Path: path, Msg: "claims have no relationships"}
	}
	var ps []P
	for _, op := range ops {
		quantify, ok := quantifiers[op.Key]
		if !ok {
			return nil, &WhereError{Path: join(path, op.Key), Msg: "relationship filters only accept some, none, all and single"}
		}
		obj, ok := AsObject(op.Value)
		if !ok {
			return nil, &WhereError{Path: join(path, op.Key), Msg: "expected an object"}
		}
		inner, err := c.object(obj, join(path, op.Key))
		if err != nil {
			return nil, err
		}
		ps = append(ps, quantify(name, inner))
	}
	return All(ps...), nil
}

func (c *whereConfig) operator(subject Expr, op KeyValue, path string) (P, error) {
	switch op.Key {
	case "eq":
		return EQ(subject, c.operand(op.Value)), nil
	case "lt":
		return LT(subject, c.operand(op.Value)), nil
	case "lte":
		return LTE(subject, c.operand(op.Value)), nil
	case "gt":
		return GT(subject, c.operand(op.Value)), nil
	case "gte":
		return GTE(subject, c.operand(op.Value)), nil
	case "in":
		list, err := c.list(op.Value, path)
		if err != nil {
			return nil, err
		}
		return In(subject, list), nil
	case "contains":
		return c.call(FuncContains, subject, op.Value, path)
	case "startsWith":
		return c.call(FuncHasPrefix, subject, op.Value, path)
	case "endsWith":
		return c.call(FuncHasSuffix, subject, op.Value, path)
	case "matches":
		return c.call(FuncMatches, subject, op.Value, path)
	case "includes":
		return Call(FuncIncludes, subject, c.operand(op.Value)), nil
	case KeyCaseInsensitive:
		if !c.caseInsensitive {
			return nil, &WhereError{Path: path, Msg: "case-insensitive comparison is not enabled"}
		}
		return c.folded(subject, op.Value, path)
	default:
		return nil, &WhereError{Path: path, Msg: fmt.Sprintf("unknown operator %q", op.Key)}
	}
}

var foldFuncs = map[string]Func{
	"eq":         FuncEqualFold,
	"in":         FuncInFold,
	"contains":   FuncContainsFold,
	"startsWith": FuncHasPrefixFold,
	"endsWith":   FuncHasSuffixFold,
}

func (c *whereConfig) folded(subject Expr, v any, path string) (P, error) {
	ops, ok := AsObject(v)
	if !ok {
		return nil, &WhereError{Path: path, Msg: "expected an operator object"}
	}
	var ps []P
	for _, op := range ops {
		f, ok := foldFuncs[op.Key]
		if !ok {
			return nil, &WhereError{Path: join(path, op.Key), Msg: fmt.Sprintf("unknown case-insensitive operator %q", op.Key)}
		}
		if f == FuncInFold {
			list, err := c.list(op.Value, join(path, op.Key))
			if err != nil {
				return nil, err
			}
			ps = append(ps, Call(f, subject, list))
			continue
		}
		p, err := c.call(f, subject, op.Value, join(path, op.Key))
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return All(ps...), nil
}

// call builds a string function predicate. Its argument must be a string or
// a claim reference.
func (c *whereConfig) call(f Func, subject Expr, v any, path string) (P, error) {
	x := c.operand(v)
	if val, ok := x.(*Value); ok {
		if _, ok := val.V.(string); !ok {
			return nil, &WhereError{Path: path, Msg: "expected a string"}
		}
	}
	return Call(f, subject, x), nil
}

func (c *whereConfig) list(v any, path string) (Expr, error) {
	switch x := c.operand(v).(type) {
	case *Claim:
		return x, nil
	case *Value:
		if x.V == nil {
			return nil, &WhereError{Path: path, Msg: "expected a list"}
		}
	}
	vs := AsList(v)
	l := &ListExpr{X: make([]Expr, len(vs))}
	for i := range vs {
		l.X[i] = c.operand(vs[i])
	}
	return l, nil
}

func (c *whereConfig) operand(v any) Expr {
	if s, ok := v.(string); ok && c.claimRefs && strings.HasPrefix(s, ClaimPrefix) {
		return C(strings.TrimPrefix(s, ClaimPrefix))
	}
	if l, ok := v.([]any); ok {
		return &Value{V: l}
	}
	return &Value{V: Plain(v)}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
