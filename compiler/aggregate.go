package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
)

// aggregateField compiles an aggregate field over the level's nodes:
//
//	MATCH (this0:Movie)
//	RETURN { count: count(DISTINCT this0), title: { shortest: ... } } AS var1
func (lv *level) aggregateField(e *edge, f *ast.Field) ([]cypher.Clause, cypher.Expr, error) {
	args, err := lv.c.args(f, lv.path)
	if err != nil {
		return nil, nil, err
	}
	m, err := lv.aggregate(e, f.SelectionSet, lv.path)
	if err != nil {
		return nil, nil, err
	}
	body, err := lv.match(e, args, authorization.Aggregate)
	if err != nil {
		return nil, nil, err
	}
	return body, m, nil
}

// aggregate compiles an aggregate selection into a map of aggregating
// expressions over the level's nodes. Counting edges binds the
// relationship variable of e.
func (lv *level) aggregate(e *edge, set ast.SelectionSet, path string) (*cypher.Map, error) {
	fields, err := lv.c.collect(set, "")
	if err != nil {
		return nil, err
	}
	m := cypher.NewMap()
	for _, f := range fields {
		name, fpath := alias(f), join(path, alias(f))
		switch {
		case f.Name == "__typename":
			m.Set(name, cypher.Lit(lv.typ.Name+"AggregateSelection"))
		case f.Name == "count" && len(f.SelectionSet) == 0:
			m.Set(name, cypher.FnDistinct("count", lv.node))
		case f.Name == "count":
			x, err := lv.counts(e, f, fpath)
			if err != nil {
				return nil, err
			}
			m.Set(name, x)
		default:
			x, err := lv.stats(f, fpath)
			if err != nil {
				return nil, err
			}
			m.Set(name, x)
		}
	}
	return m, nil
}

// counts compiles count { nodes edges }.
func (lv *level) counts(e *edge, f *ast.Field, path string) (cypher.Expr, error) {
	fields, err := lv.c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, err
	}
	m := cypher.NewMap()
	for _, cf := range fields {
		switch name := alias(cf); cf.Name {
		case "nodes":
			m.Set(name, cypher.FnDistinct("count", lv.node))
		case "edges":
			if e == nil {
				return nil, unsupported(join(path, name), "edges are only counted on relationship aggregates")
			}
			if e.rv == nil {
				e.rv = cypher.NewVariable()
			}
			m.Set(name, cypher.FnDistinct("count", e.rv))
		default:
			return nil, unsupported(join(path, name), "unknown count field %q", cf.Name)
		}
	}
	return m, nil
}

var (
	numeric = map[string]bool{"Int": true, "Float": true, "BigInt": true}
	textual = map[string]bool{"String": true, "ID": true}
)

// stats compiles the statistics selected on one scalar field. Numbers have
// min, max, average and sum; strings have shortest and longest.
func (lv *level) stats(f *ast.Field, path string) (cypher.Expr, error) {
	sf, ok := lv.typ.Field(f.Name)
	if !ok {
		return nil, unsupported(path, "unknown field %q on %s", f.Name, lv.typ.Name)
	}
	if sf.IsList() {
		return nil, unsupported(path, "field %q is a list", f.Name)
	}
	if _, ok := sf.CustomStatement(); ok {
		return nil, unsupported(path, "field %q is computed by a statement", f.Name)
	}
	if _, ok := sf.Relationship(); ok {
		return nil, unsupported(path, "field %q is a relationship", f.Name)
	}
	var (
		typ    = sf.TypeName()
		x      = cypher.Prop(lv.node, sf.Property())
		fields []*ast.Field
		err    error
	)
	if fields, err = lv.c.collect(f.SelectionSet, ""); err != nil {
		return nil, err
	}
	m := cypher.NewMap()
	for _, af := range fields {
		name := alias(af)
		switch {
		case af.Name == "min" && numeric[typ]:
			m.Set(name, cypher.Fn("min", x))
		case af.Name == "max" && numeric[typ]:
			m.Set(name, cypher.Fn("max", x))
		case af.Name == "average" && numeric[typ]:
			m.Set(name, cypher.Fn("avg", x))
		case af.Name == "sum" && numeric[typ]:
			m.Set(name, cypher.Fn("sum", x))
		case af.Name == "shortest" && textual[typ]:
			m.Set(name, extreme(x, cypher.Lt))
		case af.Name == "longest" && textual[typ]:
			m.Set(name, extreme(x, cypher.Gt))
		default:
			return nil, unsupported(join(path, name), "%q is not an aggregate of %s fields", af.Name, typ)
		}
	}
	return m, nil
}

// extreme folds the collected values of x into the one whose size wins
// the comparison:
//
//	reduce(acc = null, v IN collect(x) | CASE WHEN acc IS NULL OR size(v) < size(acc) THEN v ELSE acc END)
func extreme(x cypher.Expr, wins func(l, r cypher.Expr) cypher.Expr) cypher.Expr {
	acc, v := cypher.NewVariable(), cypher.NewVariable()
	return &cypher.Reduce{
		Acc:  acc,
		Init: cypher.Null,
		Var:  v,
		List: cypher.Collect(x),
		Expr: cypher.Case(cypher.Or(cypher.IsNull(acc), wins(cypher.Size(v), cypher.Size(acc))), v, acc),
	}
}
