package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

// this is the name custom statements see the enclosing node under.
var this = cypher.NamedVariable("this")

// custom compiles the subquery of a custom statement field:
//
//	CALL {
//	    WITH this0
//	    CALL {
//	        WITH this0
//	        WITH this0 AS this
//	        <statement>
//	    }
//	    WITH <column> AS this1
//	    RETURN collect(this1 { ... }) AS var2
//	}
//
// sel is the selected field, or nil when only the value is needed. On a
// root level (no node) the statement runs without an inbound variable.
func (lv *level) custom(f *schema.Field, cs *schema.CustomStatement, sel *ast.Field, path string) (*cypher.Call, *cypher.Variable, error) {
	body, result, err := lv.customBody(f, cs, sel, path)
	if err != nil {
		return nil, nil, err
	}
	slot := cypher.NewVariable()
	body = append(body, &cypher.Return{Items: []cypher.Item{cypher.As(result, slot)}})
	return &cypher.Call{Import: lv.imports(), Body: body}, slot, nil
}

func (lv *level) imports() []*cypher.Variable {
	if lv.node == nil {
		return nil
	}
	return []*cypher.Variable{lv.node}
}

// customBody returns the clauses of a custom statement subquery and the
// value it returns.
func (lv *level) customBody(f *schema.Field, cs *schema.CustomStatement, sel *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	params, err := lv.c.customParams(f, cs, sel, path)
	if err != nil {
		return nil, nil, err
	}
	inner := &cypher.Call{Import: lv.imports()}
	if lv.node != nil {
		inner.Body = append(inner.Body, &cypher.With{Items: []cypher.Item{cypher.As(lv.node, this)}})
	}
	inner.Body = append(inner.Body, cypher.Splice(cs.Statement, params...))

	var (
		column = cypher.NamedVariable(cs.ColumnName)
		target = lv.c.schema.Types[f.TypeName()]
		body   = []cypher.Clause{inner}
		value  cypher.Expr
	)
	switch {
	case target == nil:
		if sel != nil && len(sel.SelectionSet) > 0 {
			return nil, nil, unsupported(path, "field %q is a scalar", f.Name)
		}
		v := cypher.NewVariable()
		body = append(body, &cypher.With{Items: []cypher.Item{cypher.As(column, v)}})
		value = v
	default:
		if sel == nil || len(sel.SelectionSet) == 0 {
			return nil, nil, unsupported(path, "field %q needs a selection", f.Name)
		}
		child := lv.c.level(cypher.NewNode(), target, path)
		with := &cypher.With{Items: []cypher.Item{cypher.As(column, child.node)}}
		if target.Node {
			if with.Where, err = child.where(nil, authorization.Read); err != nil {
				return nil, nil, err
			}
		}
		body = append(body, with)
		nested, proj, err := child.project(sel.SelectionSet)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, nested...)
		value = proj
	}
	result := cypher.Collect(value)
	if !f.IsList() {
		result = cypher.Head(result)
	}
	return body, result, nil
}

// inline folds a scalar custom statement into the enclosing expression as
// head(COLLECT { WITH this0 AS this <statement> }).
func (lv *level) inline(f *schema.Field, cs *schema.CustomStatement) (cypher.Expr, error) {
	params, err := lv.c.customParams(f, cs, nil, join(lv.path, f.Name))
	if err != nil {
		return nil, err
	}
	return cypher.Head(cypher.CollectOf(
		&cypher.With{Items: []cypher.Item{cypher.As(lv.node, this)}},
		cypher.Splice(cs.Statement, params...),
	)), nil
}

// rootCustom compiles a custom field of Query or Mutation.
func (c *compilation) rootCustom(root *schema.RootField, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	cs, _ := root.Field.CustomStatement()
	return c.level(nil, nil, path).customBody(root.Field, cs, f, path)
}

// jwtParam is the parameter custom statements read the caller's claims from.
const jwtParam = "jwt"

// customParams binds the arguments of a custom statement field, and the
// caller's claims, to parameters of the same name. Only parameters the
// statement references are bound.
func (c *compilation) customParams(f *schema.Field, cs *schema.CustomStatement, sel *ast.Field, path string) ([]*cypher.Param, error) {
	var given querylanguage.Object
	if sel != nil {
		var err error
		if given, err = c.args(sel, path); err != nil {
			return nil, err
		}
	}
	for _, kv := range given {
		if f.Arguments.ForName(kv.Key) == nil {
			return nil, invalid(path, kv.Key, "unknown argument")
		}
	}
	var params []*cypher.Param
	for _, def := range f.Arguments {
		if !references(cs.Statement, def.Name) {
			continue
		}
		v, ok := given.Get(def.Name)
		if !ok && def.DefaultValue != nil {
			var err error
			if v, err = schema.Value(def.DefaultValue, nil); err != nil {
				return nil, invalid(path, def.Name, "%v", err)
			}
		}
		if v == nil && def.Type.NonNull {
			return nil, invalid(path, def.Name, "missing required argument")
		}
		params = append(params, cypher.NamedParam(def.Name, querylanguage.Plain(v)))
	}
	if references(cs.Statement, jwtParam) && f.Arguments.ForName(jwtParam) == nil {
		claims := map[string]any(c.auth.Claims())
		if claims == nil {
			claims = map[string]any{}
		}
		params = append(params, cypher.NamedParam(jwtParam, claims))
	}
	return params, nil
}

func references(statement, param string) bool {
	return cypher.Mentions(statement, "$"+param)
}
