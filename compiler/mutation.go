package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

// create compiles create<Plural>(input: [...]):
//
//	UNWIND $param0 AS var0
//	CREATE (this1:Movie)
//	SET this1 += var0
//	RETURN { movies: collect(this1 { .title }) }
//
// Validate rules are decided against each input object. Rules that still
// depend on stored data are checked on the created nodes.
func (c *compilation) create(t *schema.Type, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	args, err := c.args(f, path)
	if err != nil {
		return nil, nil, err
	}
	v, _ := args.Get("input")
	items := querylanguage.AsList(v)
	if len(items) == 0 {
		return nil, nil, invalid(path, "input", "expected at least one input object")
	}
	var (
		lv       = c.level(cypher.NewNode(), t, path)
		rows     = make([]any, len(items))
		residual bool
		guarded  = make(map[string]bool)
	)
	for i, item := range items {
		obj, ok := querylanguage.AsObject(item)
		if !ok || obj == nil {
			return nil, nil, invalid(path, "input", "item %d: expected an input object", i)
		}
		props := make(map[string]any, len(obj))
		input := obj.Map()
		for _, kv := range obj {
			sf, err := lv.writable(kv.Key, "input")
			if err != nil {
				return nil, nil, err
			}
			props[sf.Property()] = querylanguage.Plain(kv.Value)
			if len(sf.Rules) == 0 {
				continue
			}
			p, err := c.auth.Validate(t.Name+"."+sf.Name, sf.Rules, authorization.Create, authorization.Before|authorization.After, input)
			if err != nil {
				return nil, nil, err
			}
			if p != nil {
				guarded[sf.Name] = true
			}
		}
		rows[i] = props
		p, err := c.auth.Validate(t.Name, t.Rules, authorization.Create, authorization.Before|authorization.After, input)
		if err != nil {
			return nil, nil, err
		}
		residual = residual || p != nil
	}

	row := cypher.NewVariable()
	body := []cypher.Clause{
		&cypher.Unwind{List: cypher.NewParam(rows), As: row},
		&cypher.Create{Pattern: cypher.Node(lv.node, t.Labels...)},
		&cypher.Set{Items: []cypher.SetItem{{Target: lv.node, Merge: true, Value: row}}},
	}
	if residual {
		checks, err := lv.validate(authorization.Create, authorization.Before|authorization.After, nil)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, checks...)
	}
	for _, sf := range t.Fields {
		if !guarded[sf.Name] {
			continue
		}
		checks, err := lv.fieldChecks(sf, authorization.Create, authorization.Before|authorization.After)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, checks...)
	}
	nested, result, err := lv.response(f, map[string]cypher.Expr{
		"nodesCreated":         cypher.Count(lv.node),
		"relationshipsCreated": cypher.Lit(0),
	})
	if err != nil {
		return nil, nil, err
	}
	return append(body, nested...), result, nil
}

// update compiles update<Plural>(where, update: {...}). Each entry of
// update assigns a value or applies one of set, add, subtract or push:
//
//	MATCH (this0:Movie)
//	WHERE this0.title = $param0
//	SET this0.year = this0.year + $param1
//	RETURN { movies: collect(this0 { .title }) }
func (c *compilation) update(t *schema.Type, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	args, err := c.args(f, path)
	if err != nil {
		return nil, nil, err
	}
	changes, err := object(args, "update", path)
	if err != nil {
		return nil, nil, err
	}
	if len(changes) == 0 {
		return nil, nil, invalid(path, "update", "expected at least one field")
	}
	lv := c.level(cypher.NewNode(), t, path)
	body, err := lv.match(nil, args, authorization.Update)
	if err != nil {
		return nil, nil, err
	}
	var (
		set   = &cypher.Set{}
		after []cypher.Clause
	)
	for _, kv := range changes {
		sf, err := lv.writable(kv.Key, "update")
		if err != nil {
			return nil, nil, err
		}
		target := cypher.Prop(lv.node, sf.Property())
		value, err := lv.assignment(target, kv.Value)
		if err != nil {
			return nil, nil, err
		}
		set.Items = append(set.Items, cypher.SetItem{Target: target, Value: value})
		checks, err := lv.fieldChecks(sf, authorization.Update, authorization.Before)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, checks...)
		if checks, err = lv.fieldChecks(sf, authorization.Update, authorization.After); err != nil {
			return nil, nil, err
		}
		after = append(after, checks...)
	}
	body = append(body, set)
	checks, err := lv.validate(authorization.Update, authorization.After, nil)
	if err != nil {
		return nil, nil, err
	}
	body = append(append(body, checks...), after...)
	nested, result, err := lv.response(f, map[string]cypher.Expr{
		"nodesUpdated": cypher.Count(lv.node),
	})
	if err != nil {
		return nil, nil, err
	}
	return append(body, nested...), result, nil
}

// assignment returns the value a SET item writes to target.
func (lv *level) assignment(target cypher.Expr, v any) (cypher.Expr, error) {
	obj, ok := v.(querylanguage.Object)
	if !ok {
		return cypher.NewParam(querylanguage.Plain(v)), nil
	}
	if len(obj) != 1 {
		return nil, invalid(lv.path, "update", "expected one of set, add, subtract or push")
	}
	p := cypher.NewParam(querylanguage.Plain(obj[0].Value))
	switch obj[0].Key {
	case "set":
		return p, nil
	case "add":
		return cypher.Plus(target, p), nil
	case "subtract":
		return cypher.Minus(target, p), nil
	case "push":
		return cypher.Plus(cypher.Fn("coalesce", target, cypher.List()), p), nil
	default:
		return nil, invalid(lv.path, "update", "unknown operator %q", obj[0].Key)
	}
}

// delete compiles delete<Plural>(where):
//
//	MATCH (this0:Movie)
//	OPTIONAL MATCH (this0)-[var1]-()
//	WITH collect(DISTINCT this0) AS var2, collect(DISTINCT var1) AS var3
//	CALL {
//	    WITH var2
//	    UNWIND var2 AS var4
//	    DETACH DELETE var4
//	}
//	RETURN { nodesDeleted: size(var2), relationshipsDeleted: size(var3) }
func (c *compilation) delete(t *schema.Type, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	args, err := c.args(f, path)
	if err != nil {
		return nil, nil, err
	}
	lv := c.level(cypher.NewNode(), t, path)
	body, err := lv.match(nil, args, authorization.Delete)
	if err != nil {
		return nil, nil, err
	}
	var (
		rel   = cypher.NewVariable()
		nodes = cypher.NewVariable()
		rels  = cypher.NewVariable()
		each  = cypher.NewVariable()
	)
	body = append(body,
		&cypher.Match{Optional: true, Pattern: cypher.Node(lv.node).RelatedAs(rel, "", cypher.Undirected, nil)},
		&cypher.With{Items: []cypher.Item{
			cypher.As(cypher.FnDistinct("collect", lv.node), nodes),
			cypher.As(cypher.FnDistinct("collect", rel), rels),
		}},
		&cypher.Call{Import: []*cypher.Variable{nodes}, Body: []cypher.Clause{
			&cypher.Unwind{List: nodes, As: each},
			&cypher.Delete{Detach: true, Exprs: []cypher.Expr{each}},
		}},
	)
	fields, err := c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, nil, err
	}
	result := cypher.NewMap()
	for _, sf := range fields {
		switch name := alias(sf); sf.Name {
		case "nodesDeleted":
			result.Set(name, cypher.Size(nodes))
		case "relationshipsDeleted":
			result.Set(name, cypher.Size(rels))
		case "__typename":
			result.Set(name, cypher.Lit("DeleteInfo"))
		default:
			return nil, nil, unsupported(join(path, name), "unknown delete field %q", sf.Name)
		}
	}
	return body, result, nil
}

// writable returns the field an input key writes.
func (lv *level) writable(name, arg string) (*schema.Field, error) {
	sf, ok := lv.typ.Field(name)
	if !ok {
		return nil, invalid(lv.path, arg, "unknown field %q on %s", name, lv.typ.Name)
	}
	switch sf.Resolver.(type) {
	case *schema.Relationship:
		return nil, unsupported(join(lv.path, name), "nested writes through %q are not supported", name)
	case *schema.CustomStatement:
		return nil, invalid(lv.path, arg, "field %q is computed by a statement", name)
	}
	if _, ok := lv.c.schema.Types[sf.TypeName()]; ok {
		return nil, invalid(lv.path, arg, "field %q is not a scalar", name)
	}
	return sf, nil
}

// fieldChecks returns the clauses checking the validate rules of a written
// field on the level's nodes.
func (lv *level) fieldChecks(f *schema.Field, op authorization.Operation, when authorization.When) ([]cypher.Clause, error) {
	if len(f.Rules) == 0 {
		return nil, nil
	}
	p, err := lv.c.auth.Validate(lv.typ.Name+"."+f.Name, f.Rules, op, when, nil)
	if err != nil || p == nil {
		return nil, err
	}
	return lv.assert(p)
}

// response compiles the selection of a create or update response: the
// affected nodes under the plural name of the type and the info counters.
func (lv *level) response(f *ast.Field, info map[string]cypher.Expr) ([]cypher.Clause, cypher.Expr, error) {
	fields, err := lv.c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, nil, err
	}
	var (
		plural = schema.RootNames(lv.typ).List
		result = cypher.NewMap()
		calls  []cypher.Clause
	)
	for _, sf := range fields {
		name, path := alias(sf), join(lv.path, alias(sf))
		switch sf.Name {
		case plural:
			if len(sf.SelectionSet) == 0 {
				return nil, nil, unsupported(path, "selection of %s is empty", lv.typ.Name)
			}
			nested, proj, err := lv.c.level(lv.node, lv.typ, path).project(sf.SelectionSet)
			if err != nil {
				return nil, nil, err
			}
			calls = append(calls, nested...)
			result.Set(name, cypher.Collect(proj))
		case "info":
			counters, err := lv.c.collect(sf.SelectionSet, "")
			if err != nil {
				return nil, nil, err
			}
			m := cypher.NewMap()
			for _, cf := range counters {
				x, ok := info[cf.Name]
				if !ok {
					return nil, nil, unsupported(join(path, alias(cf)), "unknown info field %q", cf.Name)
				}
				m.Set(alias(cf), x)
			}
			result.Set(name, m)
		case "__typename":
			result.Set(name, cypher.Lit(upperFirst(f.Name)+"MutationResponse"))
		default:
			return nil, nil, unsupported(path, "unknown field %q", sf.Name)
		}
	}
	return calls, result, nil
}
