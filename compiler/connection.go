package compiler

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

const cursorPrefix = "arrayconnection:"

// ErrMalformedCursor is returned for cursors not produced by EncodeCursor.
var ErrMalformedCursor = errors.New("compiler: malformed cursor")

// EncodeCursor returns the cursor of the row at the given offset.
func EncodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor returns the offset of the row a cursor points at.
func DecodeCursor(cursor string) (int, error) {
	b, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrMalformedCursor
	}
	s, ok := strings.CutPrefix(string(b), cursorPrefix)
	if !ok {
		return 0, ErrMalformedCursor
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrMalformedCursor
	}
	return n, nil
}

// connection compiles a connection field over the level's nodes. When
// neither edges nor pageInfo is selected the nodes are only counted:
//
//	MATCH (this0:Movie)
//	RETURN { totalCount: count(this0) } AS var1
//
// Otherwise the nodes are collected once and the page is cut from them:
//
//	MATCH (this0:Movie)
//	WITH collect(this0) AS var1
//	CALL {
//	    WITH var1
//	    UNWIND var1 AS this2
//	    WITH this2
//	    LIMIT $param0
//	    RETURN collect(this2 { .title }) AS var3
//	}
//	RETURN { edges: [...], totalCount: size(var1) } AS var5
func (lv *level) connection(e *edge, f *ast.Field) ([]cypher.Clause, cypher.Expr, error) {
	args, err := lv.c.args(f, lv.path)
	if err != nil {
		return nil, nil, err
	}
	if args, err = lv.nodeWhere(args); err != nil {
		return nil, nil, err
	}
	fields, err := lv.c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, nil, err
	}
	var (
		paged   bool
		nodeSel ast.SelectionSet
		aggs    = make(map[string]*cypher.Map)
	)
	for _, sf := range fields {
		switch sf.Name {
		case "edges":
			paged = true
			edges, err := lv.c.collect(sf.SelectionSet, "")
			if err != nil {
				return nil, nil, err
			}
			for _, ef := range edges {
				if ef.Name == "node" {
					nodeSel = append(nodeSel, ef.SelectionSet...)
				}
			}
		case "pageInfo":
			paged = true
		case "aggregate":
			m, err := lv.aggregate(e, sf.SelectionSet, join(lv.path, alias(sf)))
			if err != nil {
				return nil, nil, err
			}
			aggs[alias(sf)] = m
		case "totalCount", "__typename":
		default:
			return nil, nil, unsupported(join(lv.path, alias(sf)), "unknown connection field %q", sf.Name)
		}
	}
	body, err := lv.match(e, args, authorization.Read)
	if err != nil {
		return nil, nil, err
	}
	result := cypher.NewMap()
	if !paged {
		for _, sf := range fields {
			switch name := alias(sf); sf.Name {
			case "totalCount":
				result.Set(name, cypher.Count(lv.node))
			case "aggregate":
				result.Set(name, aggs[name])
			case "__typename":
				result.Set(name, cypher.Lit(connectionType(lv.typ)))
			}
		}
		return body, result, nil
	}

	offset, err := lv.after(args)
	if err != nil {
		return nil, nil, err
	}
	first, err := count(args, "first", lv.path)
	if err != nil {
		return nil, nil, err
	}
	limit := lv.c.limit(lv.typ, first)

	all := cypher.NewVariable()
	with := &cypher.With{Items: []cypher.Item{cypher.As(cypher.Collect(lv.node), all)}}
	bound := make(map[string]*cypher.Variable)
	for _, sf := range fields {
		if sf.Name == "aggregate" {
			v := cypher.NewVariable()
			with.Items = append(with.Items, cypher.As(aggs[alias(sf)], v))
			bound[alias(sf)] = v
		}
	}
	body = append(body, with)

	pl := lv.c.level(cypher.NewNode(), lv.typ, join(lv.path, "edges.node"))
	order, err := pl.order(args)
	if err != nil {
		return nil, nil, err
	}
	page := []cypher.Clause{&cypher.Unwind{List: all, As: pl.node}}
	page = append(page, pl.window(order, offset, limit)...)
	var proj cypher.Expr = cypher.Project(pl.node)
	if len(nodeSel) > 0 {
		nested, p, err := pl.project(nodeSel)
		if err != nil {
			return nil, nil, err
		}
		page = append(page, nested...)
		proj = p
	}
	rows := cypher.NewVariable()
	page = append(page, &cypher.Return{Items: []cypher.Item{cypher.As(cypher.Collect(proj), rows)}})
	body = append(body, &cypher.Call{Import: []*cypher.Variable{all}, Body: page})

	for _, sf := range fields {
		name := alias(sf)
		switch sf.Name {
		case "totalCount":
			result.Set(name, cypher.Size(all))
		case "aggregate":
			result.Set(name, bound[name])
		case "__typename":
			result.Set(name, cypher.Lit(connectionType(lv.typ)))
		case "edges":
			x, err := lv.edges(sf, rows, offset)
			if err != nil {
				return nil, nil, err
			}
			result.Set(name, x)
		case "pageInfo":
			x, err := lv.pageInfo(sf, rows, all, offset, limit)
			if err != nil {
				return nil, nil, err
			}
			result.Set(name, x)
		}
	}
	return body, result, nil
}

// nodeWhere unwraps connection filters written as where: { node: {...} }.
func (lv *level) nodeWhere(args querylanguage.Object) (querylanguage.Object, error) {
	where, err := object(args, "where", lv.path)
	if err != nil || len(where) != 1 || where[0].Key != "node" {
		return args, err
	}
	if _, ok := lv.typ.Field("node"); ok {
		return args, nil
	}
	out := make(querylanguage.Object, len(args))
	for i, kv := range args {
		if kv.Key == "where" {
			kv.Value = where[0].Value
		}
		out[i] = kv
	}
	return out, nil
}

// after returns the offset of the first row of the page.
func (lv *level) after(args querylanguage.Object) (int, error) {
	v, ok := args.Get("after")
	if !ok || v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, invalid(lv.path, "after", "expected a cursor string")
	}
	n, err := DecodeCursor(s)
	if err != nil {
		e := invalid(lv.path, "after", "malformed cursor %q", s)
		e.Cause = err
		return 0, e
	}
	return n + 1, nil
}

func (lv *level) edges(f *ast.Field, rows *cypher.Variable, offset int) (cypher.Expr, error) {
	fields, err := lv.c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, err
	}
	var (
		i = cypher.NewVariable()
		m = cypher.NewMap()
	)
	for _, ef := range fields {
		switch name := alias(ef); ef.Name {
		case "cursor":
			m.Set(name, cursorAt(position(offset, i)))
		case "node":
			m.Set(name, cypher.Index(rows, i))
		case "__typename":
			m.Set(name, cypher.Lit(lv.typ.Name+"Edge"))
		default:
			return nil, unsupported(join(lv.path, "edges."+name), "unknown edge field %q", ef.Name)
		}
	}
	last := cypher.Minus(cypher.Size(rows), cypher.Lit(1))
	return &cypher.Comprehension{Var: i, List: cypher.Fn("range", cypher.Lit(0), last), Map: m}, nil
}

func (lv *level) pageInfo(f *ast.Field, rows, all *cypher.Variable, offset int, limit *int) (cypher.Expr, error) {
	fields, err := lv.c.collect(f.SelectionSet, "")
	if err != nil {
		return nil, err
	}
	var (
		m        = cypher.NewMap()
		nonEmpty = cypher.Gt(cypher.Size(rows), cypher.Lit(0))
	)
	for _, pf := range fields {
		var x cypher.Expr
		switch pf.Name {
		case "hasNextPage":
			x = cypher.Lit(false)
			if limit != nil {
				x = cypher.Lt(cypher.Lit(offset+*limit), cypher.Size(all))
			}
		case "hasPreviousPage":
			x = cypher.Lit(offset > 0)
		case "startCursor":
			x = cypher.Case(nonEmpty, cypher.Lit(EncodeCursor(offset)), cypher.Null)
		case "endCursor":
			x = cypher.Case(nonEmpty, cursorAt(position(offset, cypher.Minus(cypher.Size(rows), cypher.Lit(1)))), cypher.Null)
		case "__typename":
			x = cypher.Lit("PageInfo")
		default:
			return nil, unsupported(join(lv.path, "pageInfo."+alias(pf)), "unknown pageInfo field %q", pf.Name)
		}
		m.Set(alias(pf), x)
	}
	return m, nil
}

func position(offset int, i cypher.Expr) cypher.Expr {
	if offset == 0 {
		return i
	}
	return cypher.Plus(cypher.Lit(offset), i)
}

func cursorAt(i cypher.Expr) cypher.Expr {
	return cypher.Fn("apoc.text.base64Encode", cypher.Plus(cypher.Lit(cursorPrefix), cypher.Fn("toString", i)))
}

func connectionType(t *schema.Type) string {
	return upperFirst(schema.RootNames(t).Connection)
}

func upperFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
