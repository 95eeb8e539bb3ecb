package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/querylanguage"
	"github.com/syssam/neoql/schema"
)

func unsupported(path, format string, args ...any) error {
	return neoql.NewUnsupportedSelectionError(path, format, args...)
}

func invalid(path, arg, format string, args ...any) *neoql.InvalidArgumentError {
	return neoql.NewInvalidArgumentError(path, arg, format, args...)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// collect flattens a selection set into its fields. Fragments apply when
// their type condition names typeName, or when typeName is empty. Fields
// sharing a response name are merged.
func (c *compilation) collect(set ast.SelectionSet, typeName string) ([]*ast.Field, error) {
	var (
		fields []*ast.Field
		seen   = make(map[string]*ast.Field)
	)
	var walk func(ast.SelectionSet, int) error
	walk = func(set ast.SelectionSet, depth int) error {
		if depth > maxFragmentDepth {
			return unsupported("", "fragments nest deeper than %d", maxFragmentDepth)
		}
		for _, sel := range set {
			switch sel := sel.(type) {
			case *ast.Field:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				name := alias(sel)
				if prev, ok := seen[name]; ok {
					prev.SelectionSet = append(append(ast.SelectionSet{}, prev.SelectionSet...), sel.SelectionSet...)
					continue
				}
				f := *sel
				seen[name] = &f
				fields = append(fields, &f)
			case *ast.InlineFragment:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if !ok || !applies(sel.TypeCondition, typeName) {
					continue
				}
				if err := walk(sel.SelectionSet, depth+1); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				ok, err := c.included(sel.Directives)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				def := c.fragment(sel.Name)
				if def == nil {
					return unsupported(sel.Name, "unknown fragment %q", sel.Name)
				}
				if !applies(def.TypeCondition, typeName) {
					continue
				}
				if err := walk(def.SelectionSet, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(set, 0); err != nil {
		return nil, err
	}
	return fields, nil
}

// maxFragmentDepth bounds fragment expansion, which also stops cycles.
const maxFragmentDepth = 32

func applies(cond, typeName string) bool {
	return cond == "" || typeName == "" || cond == typeName
}

func (c *compilation) fragment(name string) *ast.FragmentDefinition {
	for _, f := range c.fragments {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// included evaluates @skip and @include.
func (c *compilation) included(dirs ast.DirectiveList) (bool, error) {
	for _, d := range dirs {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		args, err := schema.Arguments(d.Arguments, c.vars)
		if err != nil {
			return false, invalid(d.Name, "if", "%v", err)
		}
		v, _ := args.Get("if")
		b, ok := v.(bool)
		if !ok {
			return false, invalid("@"+d.Name, "if", "expected a boolean")
		}
		if (d.Name == "skip") == b {
			return false, nil
		}
	}
	return true, nil
}

// args reads the arguments of a field.
func (c *compilation) args(f *ast.Field, path string) (querylanguage.Object, error) {
	args, err := schema.Arguments(f.Arguments, c.vars)
	if err != nil {
		return nil, invalid(path, "", "%v", err)
	}
	return args, nil
}

// count reads a non-negative integer argument. It returns nil when the
// argument is absent or null.
func count(args querylanguage.Object, name, path string) (*int, error) {
	v, ok := args.Get(name)
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := schema.Int(v)
	if !ok {
		return nil, invalid(path, name, "expected an integer")
	}
	if n < 0 {
		return nil, invalid(path, name, "must not be negative, got %d", n)
	}
	return &n, nil
}

// object reads an input object argument. It returns nil when the argument
// is absent or null.
func object(args querylanguage.Object, name, path string) (querylanguage.Object, error) {
	v, ok := args.Get(name)
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := querylanguage.AsObject(v)
	if !ok {
		return nil, invalid(path, name, "expected an input object")
	}
	return obj, nil
}
