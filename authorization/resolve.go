package authorization

import (
	"reflect"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syssam/neoql/querylanguage"
)

// Resolve substitutes the caller's claims into p and folds every part of it
// that no longer depends on the database. The result is a querylanguage.Bool
// when p is fully decided, or a residual predicate over node fields and
// edges.
//
// Resolution is three-valued: a comparison against a missing claim is
// Unknown, NOT Unknown is Unknown, False AND Unknown is False and True OR
// Unknown is True. Residual Unknown operands render as null.
//
// If input is non-nil, node fields are read from it instead of staying
// symbolic. This is how create mutations are checked before anything is
// written.
func Resolve(p querylanguage.P, claims Claims, input map[string]any) querylanguage.P {
	r := &resolver{claims: claims, input: input, caser: cases.Fold()}
	return r.resolve(p)
}

type resolver struct {
	claims Claims
	input  map[string]any
	caser  cases.Caser
}

func (r *resolver) resolve(p querylanguage.P) querylanguage.P {
	switch p := p.(type) {
	case nil:
		return querylanguage.True
	case querylanguage.Bool:
		return p
	case *querylanguage.UnaryExpr:
		x := r.resolve(p.X.(querylanguage.P))
		if b, ok := x.(querylanguage.Bool); ok {
			return b.Negate()
		}
		return querylanguage.Not(x)
	case *querylanguage.BinaryExpr:
		switch p.Op {
		case querylanguage.OpAnd:
			return r.and([]querylanguage.Expr{p.X, p.Y})
		case querylanguage.OpOr:
			return r.or([]querylanguage.Expr{p.X, p.Y})
		}
		return r.compare(p.Op, p.X, p.Y)
	case *querylanguage.NaryExpr:
		if p.Op == querylanguage.OpOr {
			return r.or(p.Xs)
		}
		return r.and(p.Xs)
	case *querylanguage.CallExpr:
		if p.Func.Quantifier() {
			return r.edge(p)
		}
		return r.call(p)
	default:
		return querylanguage.Unknown
	}
}

func (r *resolver) and(xs []querylanguage.Expr) querylanguage.P {
	var (
		residual []querylanguage.P
		unknown  bool
	)
	for _, x := range xs {
		switch v := r.resolve(x.(querylanguage.P)); v {
		case querylanguage.False:
			return querylanguage.False
		case querylanguage.True:
		case querylanguage.Unknown:
			unknown = true
		default:
			residual = append(residual, v)
		}
	}
	return fold(residual, unknown, querylanguage.True, querylanguage.All)
}

func (r *resolver) or(xs []querylanguage.Expr) querylanguage.P {
	var (
		residual []querylanguage.P
		unknown  bool
	)
	for _, x := range xs {
		switch v := r.resolve(x.(querylanguage.P)); v {
		case querylanguage.True:
			return querylanguage.True
		case querylanguage.False:
		case querylanguage.Unknown:
			unknown = true
		default:
			residual = append(residual, v)
		}
	}
	return fold(residual, unknown, querylanguage.False, querylanguage.Any)
}

func fold(residual []querylanguage.P, unknown bool, identity querylanguage.Bool, combine func(...querylanguage.P) querylanguage.P) querylanguage.P {
	switch {
	case len(residual) == 0 && unknown:
		return querylanguage.Unknown
	case len(residual) == 0:
		return identity
	case unknown:
		return combine(append(residual, querylanguage.Unknown)...)
	default:
		return combine(residual...)
	}
}

func (r *resolver) edge(p *querylanguage.CallExpr) querylanguage.P {
	if len(p.Args) < 2 {
		return p
	}
	inner := r.resolve(p.Args[1].(querylanguage.P))
	switch inner {
	case querylanguage.False:
		switch p.Func {
		case querylanguage.FuncHasEdge, querylanguage.FuncSingleEdge:
			return querylanguage.False
		case querylanguage.FuncHasNoEdge:
			return querylanguage.True
		}
	case querylanguage.True:
		return querylanguage.Call(p.Func, p.Args[0])
	}
	return querylanguage.Call(p.Func, p.Args[0], inner)
}

// state of a resolved operand.
type state int

const (
	static   state = iota // value known at compile time
	symbolic              // depends on the matched node
	missing               // references an absent claim
)

func (r *resolver) operand(x querylanguage.Expr) (querylanguage.Expr, any, state) {
	switch x := x.(type) {
	case *querylanguage.Value:
		return x, x.V, static
	case *querylanguage.Claim:
		v, ok := r.claims.Lookup(x.Path)
		if !ok {
			return x, nil, missing
		}
		v = normalize(v)
		return &querylanguage.Value{V: v}, v, static
	case *querylanguage.Field:
		if r.input == nil {
			return x, nil, symbolic
		}
		v := r.input[x.Name]
		return &querylanguage.Value{V: v}, v, static
	case *querylanguage.ListExpr:
		var (
			out  = &querylanguage.ListExpr{X: make([]querylanguage.Expr, len(x.X))}
			vals = make([]any, len(x.X))
			st   = static
		)
		for i := range x.X {
			e, v, s := r.operand(x.X[i])
			if s == missing {
				return x, nil, missing
			}
			if s == symbolic {
				st = symbolic
			}
			out.X[i], vals[i] = e, v
		}
		if st == static {
			return &querylanguage.Value{V: vals}, vals, static
		}
		return out, nil, symbolic
	default:
		return x, nil, symbolic
	}
}

func (r *resolver) compare(op querylanguage.Op, x, y querylanguage.Expr) querylanguage.P {
	ex, vx, sx := r.operand(x)
	ey, vy, sy := r.operand(y)
	switch {
	case sx == missing || sy == missing:
		return querylanguage.Unknown
	case sx == static && sy == static:
		return evalOp(op, vx, vy)
	default:
		return &querylanguage.BinaryExpr{Op: op, X: ex, Y: ey}
	}
}

func (r *resolver) call(p *querylanguage.CallExpr) querylanguage.P {
	args := make([]querylanguage.Expr, len(p.Args))
	vals := make([]any, len(p.Args))
	st := static
	for i := range p.Args {
		e, v, s := r.operand(p.Args[i])
		switch s {
		case missing:
			return querylanguage.Unknown
		case symbolic:
			st = symbolic
		}
		args[i], vals[i] = e, v
	}
	if st == symbolic || len(vals) != 2 {
		return querylanguage.Call(p.Func, args...)
	}
	return r.evalFunc(p.Func, vals[0], vals[1])
}

func truth(b bool) querylanguage.Bool {
	if b {
		return querylanguage.True
	}
	return querylanguage.False
}

func evalOp(op querylanguage.Op, x, y any) querylanguage.Bool {
	switch op {
	case querylanguage.OpEQ:
		return truth(equal(x, y))
	case querylanguage.OpNEQ:
		return truth(!equal(x, y))
	case querylanguage.OpIn, querylanguage.OpNotIn:
		list, ok := y.([]any)
		if !ok {
			return querylanguage.Unknown
		}
		in := slices.ContainsFunc(list, func(v any) bool { return equal(x, v) })
		return truth(in == (op == querylanguage.OpIn))
	}
	c, ok := order(x, y)
	if !ok {
		return querylanguage.Unknown
	}
	switch op {
	case querylanguage.OpGT:
		return truth(c > 0)
	case querylanguage.OpGTE:
		return truth(c >= 0)
	case querylanguage.OpLT:
		return truth(c < 0)
	case querylanguage.OpLTE:
		return truth(c <= 0)
	default:
		return querylanguage.Unknown
	}
}

func (r *resolver) evalFunc(f querylanguage.Func, x, y any) querylanguage.Bool {
	switch f {
	case querylanguage.FuncIncludes:
		list, ok := x.([]any)
		if !ok {
			return querylanguage.Unknown
		}
		return truth(slices.ContainsFunc(list, func(v any) bool { return equal(v, y) }))
	case querylanguage.FuncInFold:
		list, ok := y.([]any)
		s, sok := x.(string)
		if !ok || !sok {
			return querylanguage.Unknown
		}
		return truth(slices.ContainsFunc(list, func(v any) bool {
			t, ok := v.(string)
			return ok && r.caser.String(s) == r.caser.String(t)
		}))
	}
	s, ok1 := x.(string)
	t, ok2 := y.(string)
	if !ok1 || !ok2 {
		return querylanguage.Unknown
	}
	if f.Folded() {
		s, t = r.caser.String(s), r.caser.String(t)
	}
	switch f {
	case querylanguage.FuncEqualFold:
		return truth(s == t)
	case querylanguage.FuncContains, querylanguage.FuncContainsFold:
		return truth(strings.Contains(s, t))
	case querylanguage.FuncHasPrefix, querylanguage.FuncHasPrefixFold:
		return truth(strings.HasPrefix(s, t))
	case querylanguage.FuncHasSuffix, querylanguage.FuncHasSuffixFold:
		return truth(strings.HasSuffix(s, t))
	case querylanguage.FuncMatches:
		re, err := regexp.Compile("^(?:" + t + ")$")
		if err != nil {
			return querylanguage.Unknown
		}
		return truth(re.MatchString(s))
	default:
		return querylanguage.Unknown
	}
}

// normalize turns typed string lists set by Go callers into the []any
// shape decoded tokens have.
func normalize(v any) any {
	if l, ok := v.([]string); ok {
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func equal(x, y any) bool {
	if a, ok := number(x); ok {
		b, ok := number(y)
		return ok && a == b
	}
	if a, ok := x.([]any); ok {
		b, ok := y.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !equal(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(x, y)
}

func order(x, y any) (int, bool) {
	if a, ok := number(x); ok {
		b, ok := number(y)
		if !ok {
			return 0, false
		}
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	}
	a, ok1 := x.(string)
	b, ok2 := y.(string)
	if !ok1 || !ok2 {
		return 0, false
	}
	return strings.Compare(a, b), true
}
