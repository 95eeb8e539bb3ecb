package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/schema"
)

// Compiler compiles GraphQL operations against one schema version. It is
// safe for concurrent use.
type Compiler struct {
	schema *schema.Schema
	log    *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithLogger sets the logger compilations are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) error {
		if l == nil {
			return errors.New("compiler: nil logger")
		}
		c.log = l
		return nil
	}
}

// New returns a compiler for s.
func New(s *schema.Schema, opts ...Option) (*Compiler, error) {
	if s == nil {
		return nil, errors.New("compiler: nil schema")
	}
	c := &Compiler{schema: s, log: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Schema returns the schema the compiler reads.
func (c *Compiler) Schema() *schema.Schema {
	return c.schema
}

// Request is one operation to compile.
type Request struct {
	Operation *ast.OperationDefinition
	Fragments ast.FragmentDefinitionList
	// Variables holds the decoded JSON variables of the operation.
	Variables map[string]any
	// Claims are the verified claims of the caller, nil if unauthenticated.
	Claims authorization.Claims
}

// NewRequest parses a query document and selects the named operation. An
// empty name selects the only operation of the document.
func NewRequest(query, operationName string, variables map[string]any, claims authorization.Claims) (*Request, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query.graphql", Input: query})
	if err != nil {
		return nil, fmt.Errorf("compiler: parse query: %w", err)
	}
	var op *ast.OperationDefinition
	for _, o := range doc.Operations {
		if o.Name == operationName || (operationName == "" && len(doc.Operations) == 1) {
			op = o
			break
		}
	}
	if op == nil {
		return nil, fmt.Errorf("compiler: operation %q not found", operationName)
	}
	return &Request{Operation: op, Fragments: doc.Fragments, Variables: variables, Claims: claims}, nil
}

// Compile compiles the request into one statement. Nothing is returned when
// any part of the operation fails to compile.
func (c *Compiler) Compile(r *Request) (*cypher.Statement, error) {
	start := time.Now()
	stmt, err := c.compile(r)
	if err != nil {
		c.log.Debug("compile failed", "operation", r.Operation.Name, "error", err)
		return nil, err
	}
	c.log.Debug("compiled operation",
		"operation", r.Operation.Name,
		"params", len(stmt.Params),
		"duration", time.Since(start),
	)
	return stmt, nil
}

func (c *Compiler) compile(r *Request) (*cypher.Statement, error) {
	cc := &compilation{
		schema:    c.schema,
		auth:      authorization.New(r.Claims),
		fragments: r.Fragments,
		vars:      variables(r.Operation, r.Variables),
	}
	var roots map[string]*schema.RootField
	switch r.Operation.Operation {
	case ast.Query, "":
		roots = c.schema.Query
	case ast.Mutation:
		roots = c.schema.Mutation
	default:
		return nil, unsupported(string(r.Operation.Operation), "%s operations are not supported", r.Operation.Operation)
	}
	typeName := schema.QueryType
	if r.Operation.Operation == ast.Mutation {
		typeName = schema.MutationType
	}
	fields, err := cc.collect(r.Operation.SelectionSet, typeName)
	if err != nil {
		return nil, err
	}
	var (
		clauses []cypher.Clause
		data    = cypher.NewMap()
	)
	for _, f := range fields {
		name := alias(f)
		if f.Name == "__typename" {
			data.Set(name, cypher.Lit(typeName))
			continue
		}
		root, ok := roots[f.Name]
		if !ok {
			return nil, unsupported(name, "unknown %s field %q", typeName, f.Name)
		}
		body, result, err := cc.root(root, f, name)
		if err != nil {
			return nil, err
		}
		slot := cypher.NewVariable()
		body = append(body, &cypher.Return{Items: []cypher.Item{cypher.As(result, slot)}})
		clauses = append(clauses, &cypher.Call{Body: body})
		data.Set(name, slot)
	}
	clauses = append(clauses, &cypher.Return{Items: []cypher.Item{cypher.As(data, cypher.NamedVariable("data"))}})
	stmt, err := cypher.Build(clauses...)
	if err != nil {
		e := invalid(r.Operation.Name, "", "statement cannot be built")
		e.Cause = err
		return nil, e
	}
	return stmt, nil
}

// root compiles one root field into the body of its subquery and the value
// the subquery returns.
func (c *compilation) root(root *schema.RootField, f *ast.Field, path string) ([]cypher.Clause, cypher.Expr, error) {
	switch root.Kind {
	case schema.RootList:
		return c.rootList(root.Type, f, path)
	case schema.RootConnection:
		return c.level(cypher.NewNode(), root.Type, path).connection(nil, f)
	case schema.RootAggregate:
		return c.level(cypher.NewNode(), root.Type, path).aggregateField(nil, f)
	case schema.RootCustom:
		return c.rootCustom(root, f, path)
	case schema.RootCreate:
		return c.create(root.Type, f, path)
	case schema.RootUpdate:
		return c.update(root.Type, f, path)
	case schema.RootDelete:
		return c.delete(root.Type, f, path)
	default:
		return nil, nil, unsupported(path, "unknown root field kind %s", root.Kind)
	}
}

// compilation is the state of one Compile call. It is never shared.
type compilation struct {
	schema    *schema.Schema
	auth      *authorization.Authorizer
	fragments ast.FragmentDefinitionList
	vars      map[string]any
}

// variables fills in declared defaults of variables the caller left out.
func variables(op *ast.OperationDefinition, given map[string]any) map[string]any {
	vars := make(map[string]any, len(given))
	for k, v := range given {
		vars[k] = v
	}
	for _, d := range op.VariableDefinitions {
		if _, ok := vars[d.Variable]; ok || d.DefaultValue == nil {
			continue
		}
		if v, err := schema.Value(d.DefaultValue, nil); err == nil {
			vars[d.Variable] = v
		}
	}
	return vars
}

func alias(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
