package compiler

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

// edge anchors a level on the relationship it is reached through.
type edge struct {
	from *cypher.Variable
	rel  *schema.Relationship
	// rv binds the relationship when it is counted.
	rv *cypher.Variable
}

// rootList compiles a list field of Query:
//
//	MATCH (this0:Movie)
//	WHERE this0.title = $param0
//	WITH this0
//	ORDER BY this0.title ASC
//	LIMIT $param1
//	RETURN collect(this0 { .title })
func (c *compilation) rootList(t *schema.Type, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	args, err := c.args(f, path)
	if err != nil {
		return nil, nil, err
	}
	body, proj, err := c.level(cypher.NewNode(), t, path).nodes(nil, args, f.SelectionSet, true)
	if err != nil {
		return nil, nil, err
	}
	return body, cypher.Collect(proj), nil
}

// nodes compiles the match, the page and the projection of the level's
// nodes. It returns the clauses and the projection of one node.
func (lv *level) nodes(e *edge, args querylanguage.Object, set ast.SelectionSet, paged bool) ([]cypher.Clause, cypher.Expr, error) {
	if len(set) == 0 {
		return nil, nil, unsupported(lv.path, "selection of %s is empty", lv.typ.Name)
	}
	body, err := lv.match(e, args, authorization.Read)
	if err != nil {
		return nil, nil, err
	}
	if paged {
		offset, err := count(args, "offset", lv.path)
		if err != nil {
			return nil, nil, err
		}
		requested, err := count(args, "limit", lv.path)
		if err != nil {
			return nil, nil, err
		}
		order, err := lv.order(args)
		if err != nil {
			return nil, nil, err
		}
		skip := 0
		if offset != nil {
			skip = *offset
		}
		body = append(body, lv.window(order, skip, lv.c.limit(lv.typ, requested))...)
	}
	nested, proj, err := lv.project(set)
	if err != nil {
		return nil, nil, err
	}
	return append(body, nested...), proj, nil
}

func (lv *level) pattern(e *edge) *cypher.Pattern {
	switch {
	case e == nil:
		return cypher.Node(lv.node, lv.typ.Labels...)
	case e.rv != nil:
		return cypher.Node(e.from).RelatedAs(e.rv, e.rel.Type, e.rel.Direction, lv.node, lv.typ.Labels...)
	default:
		return cypher.Node(e.from).Related(e.rel.Type, e.rel.Direction, lv.node, lv.typ.Labels...)
	}
}

// match returns the clauses binding the level's nodes, narrowed by the
// filter rules of op and the where argument and checked against the
// validate rules of op.
func (lv *level) match(e *edge, args querylanguage.Object, op authorization.Operation) ([]cypher.Clause, error) {
	cond, err := lv.where(args, op)
	if err != nil {
		return nil, err
	}
	m := &cypher.Match{Pattern: lv.pattern(e)}
	body := []cypher.Clause{m}
	if pre := lv.flush(); len(pre) > 0 {
		body = append(body, pre...)
		if cond != nil {
			body = append(body, &cypher.With{Star: true, Where: cond})
		}
	} else {
		m.Where = cond
	}
	checks, err := lv.validate(op, authorization.Before, nil)
	if err != nil {
		return nil, err
	}
	return append(body, checks...), nil
}

// flush returns the pending subqueries of the level and clears them.
func (lv *level) flush() []cypher.Clause {
	pre := lv.pre
	lv.pre = nil
	return pre
}

// validate returns the clauses checking the validate rules of op at the
// given position. It fails when the rules are decided against the caller.
func (lv *level) validate(op authorization.Operation, when authorization.When, input map[string]any) ([]cypher.Clause, error) {
	p, err := lv.c.auth.Validate(lv.typ.Name, lv.typ.Rules, op, when, input)
	if err != nil || p == nil {
		return nil, err
	}
	return lv.assert(p)
}

// assert returns the clauses aborting the statement on rows where p does
// not hold. Rows where p is null abort too.
func (lv *level) assert(p querylanguage.P) ([]cypher.Clause, error) {
	x, err := lv.expr(p)
	if err != nil {
		return nil, err
	}
	return append(lv.flush(), &cypher.With{Star: true, Where: forbidden(x)}), nil
}

func forbidden(x cypher.Expr) cypher.Expr {
	return cypher.Fn("apoc.util.validatePredicate",
		cypher.Not(cypher.Fn("coalesce", x, cypher.Lit(false))),
		cypher.Lit(dialect.ForbiddenMarker),
		cypher.Raw("[0]"),
	)
}

// order reads the sort argument, a list of { field: ASC | DESC } objects.
// Keys of connection sorts are wrapped in { node: ... }.
func (lv *level) order(args querylanguage.Object) ([]cypher.Order, error) {
	v, _ := args.Get("sort")
	return lv.sortKeys(v)
}

func (lv *level) sortKeys(v any) ([]cypher.Order, error) {
	var keys []cypher.Order
	for _, item := range querylanguage.AsList(v) {
		obj, ok := querylanguage.AsObject(item)
		if !ok {
			return nil, invalid(lv.path, "sort", "expected a list of input objects")
		}
		for _, kv := range obj {
			if inner, ok := kv.Value.(querylanguage.Object); ok && kv.Key == "node" {
				more, err := lv.sortKeys(inner)
				if err != nil {
					return nil, err
				}
				keys = append(keys, more...)
				continue
			}
			dir, _ := kv.Value.(string)
			if dir != "ASC" && dir != "DESC" {
				return nil, invalid(lv.path, "sort", "field %q: expected ASC or DESC", kv.Key)
			}
			x, err := lv.field(kv.Key, "sort")
			if err != nil {
				return nil, err
			}
			keys = append(keys, cypher.Order{Expr: x, Desc: dir == "DESC"})
		}
	}
	return keys, nil
}

// window returns the clauses sorting and slicing the level's rows. Pending
// subqueries run first so sort keys can read their slots.
func (lv *level) window(order []cypher.Order, offset int, limit *int) []cypher.Clause {
	clauses := lv.flush()
	if len(order) == 0 && offset == 0 && limit == nil {
		return clauses
	}
	w := &cypher.With{Items: lv.carry(), OrderBy: order}
	if offset > 0 {
		w.Skip = cypher.NewParam(int64(offset))
	}
	if limit != nil {
		w.Limit = cypher.NewParam(int64(*limit))
	}
	return append(clauses, w)
}

// carry returns the items passing the level's node and slots on.
func (lv *level) carry() []cypher.Item {
	items := []cypher.Item{cypher.Pass(lv.node)}
	for _, v := range lv.bound {
		items = append(items, cypher.Pass(v))
	}
	return items
}

// limit returns the page size of t for the requested size, or nil when
// pages of t are unbounded.
func (c *compilation) limit(t *schema.Type, requested *int) *int {
	if t.Limit != nil {
		return t.Limit.Clamp(requested)
	}
	p := c.schema.Features.Pagination
	n := requested
	if n == nil && p.DefaultLimit > 0 {
		n = &p.DefaultLimit
	}
	if p.MaxLimit > 0 && (n == nil || *n > p.MaxLimit) {
		n = &p.MaxLimit
	}
	return n
}

// project compiles a selection on the level's nodes into the subqueries it
// needs and the map projection of one node.
func (lv *level) project(set ast.SelectionSet) ([]cypher.Clause, cypher.Expr, error) {
	fields, err := lv.c.collect(set, lv.typ.Name)
	if err != nil {
		return nil, nil, err
	}
	var (
		proj   = cypher.Project(lv.node)
		checks []cypher.Clause
		calls  []cypher.Clause
	)
	for _, f := range fields {
		name, path := alias(f), join(lv.path, alias(f))
		if f.Name == "__typename" {
			proj.Set(name, cypher.Lit(lv.typ.Name))
			continue
		}
		sf, ok := lv.typ.Field(f.Name)
		if !ok {
			call, slot, err := lv.derived(f, path)
			if err != nil {
				return nil, nil, err
			}
			calls = append(calls, call)
			proj.Set(name, slot)
			continue
		}
		value, call, err := lv.value(sf, f, path)
		if err != nil {
			return nil, nil, err
		}
		if call != nil {
			calls = append(calls, call)
		}
		guarded, check, err := lv.guard(sf, value)
		if err != nil {
			return nil, nil, err
		}
		checks = append(checks, check...)
		if _, plain := sf.Resolver.(*schema.Plain); plain && len(sf.Rules) == 0 && name == sf.Property() {
			proj.Prop(name)
			continue
		}
		proj.Set(name, guarded)
	}
	clauses := append(checks, lv.flush()...)
	return append(clauses, calls...), proj, nil
}

// value returns the expression reading one selected field of a node and
// the subquery binding it, if any.
func (lv *level) value(sf *schema.Field, f *ast.Field, path string) (cypher.Expr, cypher.Clause, error) {
	switch r := sf.Resolver.(type) {
	case *schema.Relationship:
		return lv.related(sf, r, f, path)
	case *schema.CustomStatement:
		if slot, ok := lv.slots[sf.Name]; ok && len(f.Arguments) == 0 && len(f.SelectionSet) == 0 {
			return slot, nil, nil
		}
		call, slot, err := lv.custom(sf, r, f, path)
		if err != nil {
			return nil, nil, err
		}
		return slot, call, nil
	default:
		if _, ok := lv.c.schema.Types[sf.TypeName()]; ok {
			return nil, nil, unsupported(path, "field %q of type %s has neither a relationship nor a statement", sf.Name, sf.TypeName())
		}
		if len(f.SelectionSet) > 0 {
			return nil, nil, unsupported(path, "field %q is a scalar", sf.Name)
		}
		if len(f.Arguments) > 0 {
			return nil, nil, unsupported(path, "field %q takes no arguments", sf.Name)
		}
		return cypher.Prop(lv.node, sf.Property()), nil, nil
	}
}

// guard applies the read rules of a field to its value. Filter rules null
// the value where they fail; validate rules abort the statement.
func (lv *level) guard(f *schema.Field, x cypher.Expr) (cypher.Expr, []cypher.Clause, error) {
	if len(f.Rules) == 0 {
		return x, nil, nil
	}
	p, err := lv.c.auth.Validate(lv.typ.Name+"."+f.Name, f.Rules, authorization.Read, authorization.Before, nil)
	if err != nil {
		return nil, nil, err
	}
	var checks []cypher.Clause
	if p != nil {
		if checks, err = lv.assert(p); err != nil {
			return nil, nil, err
		}
	}
	switch filter := lv.c.auth.Filter(f.Rules, authorization.Read); filter {
	case nil:
		return x, checks, nil
	case querylanguage.False:
		return cypher.Null, checks, nil
	default:
		cond, err := lv.expr(filter)
		if err != nil {
			return nil, nil, err
		}
		return cypher.Case(cond, x, cypher.Null), checks, nil
	}
}

// related compiles a relationship field into a subquery on the parent
// node:
//
//	CALL {
//	    WITH this0
//	    MATCH (this0)<-[:ACTED_IN]-(this1:Actor)
//	    RETURN collect(this1 { .name }) AS var2
//	}
func (lv *level) related(sf *schema.Field, rel *schema.Relationship, f *ast.Field, path string) (cypher.Expr, cypher.Clause, error) {
	args, err := lv.c.args(f, path)
	if err != nil {
		return nil, nil, err
	}
	child := lv.c.level(cypher.NewNode(), lv.c.schema.Types[sf.TypeName()], path)
	body, proj, err := child.nodes(&edge{from: lv.node, rel: rel}, args, f.SelectionSet, sf.IsList())
	if err != nil {
		return nil, nil, err
	}
	result := cypher.Collect(proj)
	if !sf.IsList() {
		result = cypher.Head(result)
	}
	slot := cypher.NewVariable()
	body = append(body, &cypher.Return{Items: []cypher.Item{cypher.As(result, slot)}})
	return slot, &cypher.Call{Import: []*cypher.Variable{lv.node}, Body: body}, nil
}

// derived compiles the <field>Connection and <field>Aggregate fields each
// relationship field implies.
func (lv *level) derived(f *ast.Field, path string) (cypher.Clause, *cypher.Variable, error) {
	for _, suffix := range []string{"Connection", "Aggregate"} {
		base, ok := strings.CutSuffix(f.Name, suffix)
		if !ok {
			continue
		}
		sf, ok := lv.typ.Field(base)
		if !ok {
			continue
		}
		rel, ok := sf.Relationship()
		if !ok {
			continue
		}
		var (
			child  = lv.c.level(cypher.NewNode(), lv.c.schema.Types[sf.TypeName()], path)
			e      = &edge{from: lv.node, rel: rel}
			body   []cypher.Clause
			result cypher.Expr
			err    error
		)
		if suffix == "Connection" {
			body, result, err = child.connection(e, f)
		} else {
			body, result, err = child.aggregateField(e, f)
		}
		if err != nil {
			return nil, nil, err
		}
		slot := cypher.NewVariable()
		body = append(body, &cypher.Return{Items: []cypher.Item{cypher.As(result, slot)}})
		return &cypher.Call{Import: []*cypher.Variable{lv.node}, Body: body}, slot, nil
	}
	return nil, nil, unsupported(path, "unknown field %q on %s", f.Name, lv.typ.Name)
}
