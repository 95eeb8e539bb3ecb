package compiler

import (
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

// level is one step of the traversal: a variable bound to the nodes, or
// result maps, of one type.
type level struct {
	c    *compilation
	node *cypher.Variable
	typ  *schema.Type
	path string
	// pre holds subqueries that must run before the level is filtered or
	// sorted, and slots the values they bind by field name. bound lists the
	// slots in binding order.
	pre   []cypher.Clause
	slots map[string]*cypher.Variable
	bound []*cypher.Variable
}

func (c *compilation) level(node *cypher.Variable, typ *schema.Type, path string) *level {
	return &level{c: c, node: node, typ: typ, path: path, slots: make(map[string]*cypher.Variable)}
}

// where returns the filter rules of op for the level's type ANDed with the
// where argument. It returns nil when nothing narrows the match.
func (lv *level) where(args querylanguage.Object, op authorization.Operation) (cypher.Expr, error) {
	p, err := lv.predicate(args, op)
	if err != nil {
		return nil, err
	}
	return lv.expr(p)
}

func (lv *level) predicate(args querylanguage.Object, op authorization.Operation) (querylanguage.P, error) {
	var ps []querylanguage.P
	if f := lv.c.auth.Filter(lv.typ.Rules, op); f != nil {
		ps = append(ps, f)
	}
	obj, err := object(args, "where", lv.path)
	if err != nil {
		return nil, err
	}
	if obj != nil {
		p, err := querylanguage.ParseWhere(obj, querylanguage.WithCaseInsensitive(lv.c.schema.Features.CaseInsensitive))
		if err != nil {
			e := invalid(lv.path, "where", "malformed filter")
			e.Cause = err
			return nil, e
		}
		ps = append(ps, p)
	}
	return querylanguage.All(ps...), nil
}

// expr translates a predicate over the level's fields into Cypher. Unknown
// truth values render as null, which no WHERE clause accepts.
func (lv *level) expr(p querylanguage.Expr) (cypher.Expr, error) {
	switch p := p.(type) {
	case nil:
		return nil, nil
	case querylanguage.Bool:
		switch p {
		case querylanguage.True:
			return cypher.Lit(true), nil
		case querylanguage.False:
			return cypher.Lit(false), nil
		default:
			return cypher.Null, nil
		}
	case *querylanguage.UnaryExpr:
		x, err := lv.expr(p.X)
		if err != nil {
			return nil, err
		}
		return cypher.Not(x), nil
	case *querylanguage.BinaryExpr:
		switch p.Op {
		case querylanguage.OpAnd, querylanguage.OpOr:
			return lv.logical(p.Op, []querylanguage.Expr{p.X, p.Y})
		}
		return lv.compare(p.Op, p.X, p.Y)
	case *querylanguage.NaryExpr:
		return lv.logical(p.Op, p.Xs)
	case *querylanguage.CallExpr:
		if p.Func.Quantifier() {
			return lv.edge(p)
		}
		return lv.call(p)
	default:
		return nil, invalid(lv.path, "where", "unexpected expression %s", p)
	}
}

func (lv *level) logical(op querylanguage.Op, xs []querylanguage.Expr) (cypher.Expr, error) {
	out := make([]cypher.Expr, len(xs))
	for i, x := range xs {
		e, err := lv.expr(x)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	if op == querylanguage.OpOr {
		return cypher.Or(out...), nil
	}
	return cypher.And(out...), nil
}

func isNil(x querylanguage.Expr) bool {
	v, ok := x.(*querylanguage.Value)
	return ok && v.V == nil
}

func (lv *level) compare(op querylanguage.Op, x, y querylanguage.Expr) (cypher.Expr, error) {
	l, err := lv.operand(x)
	if err != nil {
		return nil, err
	}
	switch {
	case op == querylanguage.OpEQ && isNil(y):
		return cypher.IsNull(l), nil
	case op == querylanguage.OpNEQ && isNil(y):
		return cypher.IsNotNull(l), nil
	}
	r, err := lv.operand(y)
	if err != nil {
		return nil, err
	}
	switch op {
	case querylanguage.OpEQ:
		return cypher.Eq(l, r), nil
	case querylanguage.OpNEQ:
		return cypher.Neq(l, r), nil
	case querylanguage.OpGT:
		return cypher.Gt(l, r), nil
	case querylanguage.OpGTE:
		return cypher.Gte(l, r), nil
	case querylanguage.OpLT:
		return cypher.Lt(l, r), nil
	case querylanguage.OpLTE:
		return cypher.Lte(l, r), nil
	case querylanguage.OpIn:
		return cypher.InList(l, r), nil
	case querylanguage.OpNotIn:
		return cypher.Not(cypher.InList(l, r)), nil
	default:
		return nil, invalid(lv.path, "where", "unexpected operator %s", op)
	}
}

func (lv *level) call(p *querylanguage.CallExpr) (cypher.Expr, error) {
	if len(p.Args) != 2 {
		return nil, invalid(lv.path, "where", "%s expects two arguments", p.Func)
	}
	l, err := lv.operand(p.Args[0])
	if err != nil {
		return nil, err
	}
	r, err := lv.operand(p.Args[1])
	if err != nil {
		return nil, err
	}
	if p.Func.Folded() {
		l = cypher.ToLower(l)
		if p.Func == querylanguage.FuncInFold {
			v := cypher.NewVariable()
			r = &cypher.Comprehension{Var: v, List: r, Map: cypher.ToLower(v)}
		} else {
			r = cypher.ToLower(r)
		}
	}
	switch p.Func {
	case querylanguage.FuncEqualFold:
		return cypher.Eq(l, r), nil
	case querylanguage.FuncInFold:
		return cypher.InList(l, r), nil
	case querylanguage.FuncContains, querylanguage.FuncContainsFold:
		return cypher.Contains(l, r), nil
	case querylanguage.FuncHasPrefix, querylanguage.FuncHasPrefixFold:
		return cypher.StartsWith(l, r), nil
	case querylanguage.FuncHasSuffix, querylanguage.FuncHasSuffixFold:
		return cypher.EndsWith(l, r), nil
	case querylanguage.FuncMatches:
		return cypher.Matches(l, r), nil
	case querylanguage.FuncIncludes:
		return cypher.InList(r, l), nil
	default:
		return nil, invalid(lv.path, "where", "unexpected function %s", p.Func)
	}
}

// operand translates a field reference or a value. Values become
// parameters; claims left unresolved render as null.
func (lv *level) operand(x querylanguage.Expr) (cypher.Expr, error) {
	switch x := x.(type) {
	case *querylanguage.Field:
		return lv.field(x.Name, "where")
	case *querylanguage.Value:
		return cypher.NewParam(querylanguage.Plain(x.V)), nil
	case *querylanguage.ListExpr:
		vals := make([]any, 0, len(x.X))
		for _, e := range x.X {
			v, ok := e.(*querylanguage.Value)
			if !ok {
				return lv.list(x)
			}
			vals = append(vals, querylanguage.Plain(v.V))
		}
		return cypher.NewParam(vals), nil
	case *querylanguage.Claim, querylanguage.Bool:
		return cypher.Null, nil
	default:
		return nil, invalid(lv.path, "where", "unexpected operand %s", x)
	}
}

func (lv *level) list(x *querylanguage.ListExpr) (cypher.Expr, error) {
	xs := make([]cypher.Expr, len(x.X))
	for i, e := range x.X {
		o, err := lv.operand(e)
		if err != nil {
			return nil, err
		}
		xs[i] = o
	}
	return cypher.List(xs...), nil
}

// field returns the value of a scalar field for filtering or sorting.
// Custom statement fields are folded in or materialized into lv.pre
// depending on their sortable mode.
func (lv *level) field(name, arg string) (cypher.Expr, error) {
	f, ok := lv.typ.Field(name)
	if !ok {
		return nil, invalid(lv.path, arg, "unknown field %q on %s", name, lv.typ.Name)
	}
	if _, ok := lv.c.schema.Types[f.TypeName()]; ok {
		return nil, invalid(lv.path, arg, "field %q is not a scalar", name)
	}
	switch r := f.Resolver.(type) {
	case *schema.CustomStatement:
		if f.IsList() {
			return nil, invalid(lv.path, arg, "field %q is a list", name)
		}
		if f.Sortable != nil && f.Sortable.ByValue {
			return lv.inline(f, r)
		}
		return lv.materialize(f, r)
	case *schema.Relationship:
		return nil, invalid(lv.path, arg, "field %q is a relationship", name)
	default:
		return cypher.Prop(lv.node, f.Property()), nil
	}
}

// materialize runs the custom statement of f once before the level is
// filtered or sorted and returns the variable holding its value.
func (lv *level) materialize(f *schema.Field, cs *schema.CustomStatement) (cypher.Expr, error) {
	if slot, ok := lv.slots[f.Name]; ok {
		return slot, nil
	}
	call, slot, err := lv.custom(f, cs, nil, join(lv.path, f.Name))
	if err != nil {
		return nil, err
	}
	lv.pre = append(lv.pre, call)
	lv.slots[f.Name] = slot
	lv.bound = append(lv.bound, slot)
	return slot, nil
}

// edge translates a relationship quantifier into pattern subqueries. The
// read filter rules of the related type apply to the related nodes.
func (lv *level) edge(p *querylanguage.CallExpr) (cypher.Expr, error) {
	e, ok := p.Args[0].(*querylanguage.Edge)
	if !ok {
		return nil, invalid(lv.path, "where", "unexpected quantifier argument %s", p.Args[0])
	}
	f, ok := lv.typ.Field(e.Name)
	if !ok {
		return nil, invalid(lv.path, "where", "unknown field %q on %s", e.Name, lv.typ.Name)
	}
	rel, ok := f.Relationship()
	if !ok {
		return nil, invalid(lv.path, "where", "field %q is not a relationship", e.Name)
	}
	target := lv.c.schema.Types[f.TypeName()]
	var inner querylanguage.P
	if len(p.Args) > 1 {
		inner, _ = p.Args[1].(querylanguage.P)
	}
	filter := lv.c.auth.Filter(target.Rules, authorization.Read)
	match := func(where querylanguage.P) (cypher.Clause, error) {
		child := lv.c.level(cypher.NewNode(), target, join(lv.path, e.Name))
		cond, err := child.expr(where)
		if err != nil {
			return nil, err
		}
		if len(child.pre) > 0 {
			return nil, invalid(child.path, "where", "custom fields of related nodes must be sortable by value to be filtered")
		}
		return &cypher.Match{
			Pattern: cypher.Node(lv.node).Related(rel.Type, rel.Direction, child.node, target.Labels...),
			Where:   cond,
		}, nil
	}
	switch p.Func {
	case querylanguage.FuncHasEdge, querylanguage.FuncHasNoEdge:
		m, err := match(querylanguage.All(filter, inner))
		if err != nil {
			return nil, err
		}
		if p.Func == querylanguage.FuncHasNoEdge {
			return cypher.Not(cypher.Exists(m)), nil
		}
		return cypher.Exists(m), nil
	case querylanguage.FuncSingleEdge:
		m, err := match(querylanguage.All(filter, inner))
		if err != nil {
			return nil, err
		}
		return cypher.Eq(cypher.CountOf(m), cypher.Lit(1)), nil
	case querylanguage.FuncAllEdges:
		some, err := match(filter)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return cypher.Exists(some), nil
		}
		violating, err := match(querylanguage.All(filter, querylanguage.Not(inner)))
		if err != nil {
			return nil, err
		}
		return cypher.And(cypher.Exists(some), cypher.Not(cypher.Exists(violating))), nil
	default:
		return nil, invalid(lv.path, "where", "unexpected quantifier %s", p.Func)
	}
}
