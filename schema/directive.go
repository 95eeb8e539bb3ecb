package schema

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
	"github.com/syssam/neoql/querylanguage"
)

// ParseDirective converts one directive occurrence into its annotation.
// Unknown directives yield a nil annotation and no error. Omitted optional
// arguments take their declared defaults. ParseDirective checks only the
// directive itself, not the rest of the schema.
func ParseDirective(d *ast.Directive, features neoql.Features) (Annotation, error) {
	args, err := Arguments(d.Arguments, nil)
	if err != nil {
		e := neoql.NewMalformedDirectiveError(d.Name, "invalid arguments")
		e.Cause = err
		return nil, e
	}
	switch d.Name {
	case DirectiveNode:
		return parseNode(args)
	case DirectiveLimit:
		return parseLimit(args)
	case DirectivePlural:
		v, err := requiredString(DirectivePlural, args, "value")
		if err != nil {
			return nil, err
		}
		return &Plural{Value: v}, nil
	case DirectiveAuthorization:
		rules, err := authorization.ParseRules(args, features.CaseInsensitive)
		if err != nil {
			e := neoql.NewMalformedDirectiveError(DirectiveAuthorization, "invalid rule")
			e.Cause = err
			return nil, e
		}
		return &Authorization{Rules: rules}, nil
	case DirectiveRelationship:
		return parseRelationship(args)
	case DirectiveCypher:
		return parseCypher(args)
	case DirectiveSortable:
		s := &Sortable{}
		if v, ok := args.Get("byValue"); ok && v != nil {
			b, ok := v.(bool)
			if !ok {
				return nil, malformed(DirectiveSortable, "byValue must be a boolean")
			}
			s.ByValue = b
		}
		return s, nil
	case DirectiveAlias:
		v, err := requiredString(DirectiveAlias, args, "property")
		if err != nil {
			return nil, err
		}
		return &Plain{Property: v}, nil
	default:
		return nil, nil
	}
}

func malformed(directive, format string, a ...any) *neoql.MalformedDirectiveError {
	return neoql.NewMalformedDirectiveError(directive, fmt.Sprintf(format, a...))
}

func requiredString(directive string, args querylanguage.Object, name string) (string, error) {
	v, ok := args.Get(name)
	if !ok || v == nil {
		return "", malformed(directive, "missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", malformed(directive, "argument %q must be a non-empty string", name)
	}
	return s, nil
}

func parseNode(args querylanguage.Object) (*Node, error) {
	n := &Node{}
	v, ok := args.Get("labels")
	if !ok || v == nil {
		return n, nil
	}
	for _, l := range querylanguage.AsList(v) {
		s, ok := l.(string)
		if !ok || s == "" {
			return nil, malformed(DirectiveNode, "labels must be non-empty strings")
		}
		n.Labels = append(n.Labels, s)
	}
	if len(n.Labels) == 0 {
		return nil, malformed(DirectiveNode, "labels must not be empty")
	}
	return n, nil
}

func parseLimit(args querylanguage.Object) (*Limit, error) {
	l := &Limit{}
	for _, name := range []string{"default", "max"} {
		v, ok := args.Get(name)
		if !ok || v == nil {
			continue
		}
		n, ok := Int(v)
		if !ok {
			return nil, malformed(DirectiveLimit, "%s must be an integer", name)
		}
		if n <= 0 {
			return nil, malformed(DirectiveLimit, "%s must be positive, got %d", name, n)
		}
		if name == "default" {
			l.Default = &n
		} else {
			l.Max = &n
		}
	}
	if l.Default != nil && l.Max != nil && *l.Default > *l.Max {
		return nil, malformed(DirectiveLimit, "default %d exceeds max %d", *l.Default, *l.Max)
	}
	return l, nil
}

var directions = map[string]cypher.Direction{
	"OUT":        cypher.Out,
	"IN":         cypher.In,
	"UNDIRECTED": cypher.Undirected,
}

func parseRelationship(args querylanguage.Object) (*Relationship, error) {
	typ, err := requiredString(DirectiveRelationship, args, "type")
	if err != nil {
		return nil, err
	}
	v, ok := args.Get("direction")
	if !ok || v == nil {
		return nil, malformed(DirectiveRelationship, "missing required argument %q", "direction")
	}
	s, _ := v.(string)
	dir, ok := directions[s]
	if !ok {
		return nil, malformed(DirectiveRelationship, "direction must be IN, OUT or UNDIRECTED, got %v", v)
	}
	return &Relationship{Type: typ, Direction: dir}, nil
}

func parseCypher(args querylanguage.Object) (*CustomStatement, error) {
	stmt, err := requiredString(DirectiveCypher, args, "statement")
	if err != nil {
		return nil, err
	}
	col, err := requiredString(DirectiveCypher, args, "columnName")
	if err != nil {
		return nil, err
	}
	if !cypher.Mentions(stmt, col) {
		return nil, malformed(DirectiveCypher, "columnName %q does not occur in the statement", col)
	}
	return &CustomStatement{Statement: stmt, ColumnName: col}, nil
}
