package schema

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/authorization"
)

// Schema is the annotated model of one schema version. It is never modified
// after New returns and may be shared by concurrent compilations.
type Schema struct {
	Features neoql.Features
	// Types holds the object types keyed by name, graph-backed or not.
	Types map[string]*Type
	// Query and Mutation hold the root fields keyed by name.
	Query    map[string]*RootField
	Mutation map[string]*RootField
}

// Type is an object type of the schema.
type Type struct {
	Name string
	// Node reports whether the type is graph-backed.
	Node   bool
	Labels []string
	Limit  *Limit
	Plural string
	Rules  []*authorization.Rule
	Fields []*Field
	fields map[string]*Field
}

// Field returns the field with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Label returns the primary label of a graph-backed type.
func (t *Type) Label() string {
	if len(t.Labels) == 0 {
		return t.Name
	}
	return t.Labels[0]
}

// Field is a field of an object type.
type Field struct {
	Name string
	// Type is the declared GraphQL type.
	Type *ast.Type
	// Resolver is one of *Relationship, *CustomStatement or *Plain.
	Resolver FieldAnnotation
	// Sortable is set when the field carries @sortable.
	Sortable *Sortable
	Rules    []*authorization.Rule
	// Arguments are the declared field arguments.
	Arguments ast.ArgumentDefinitionList
}

// TypeName returns the named type under any list or non-null wrappers.
func (f *Field) TypeName() string {
	t := f.Type
	for t.Elem != nil {
		t = t.Elem
	}
	return t.NamedType
}

// IsList reports whether the field returns a list.
func (f *Field) IsList() bool {
	return f.Type.Elem != nil
}

// Property returns the node property of a plain field.
func (f *Field) Property() string {
	if p, ok := f.Resolver.(*Plain); ok {
		return p.Property
	}
	return f.Name
}

// Relationship returns the relationship annotation of the field.
func (f *Field) Relationship() (*Relationship, bool) {
	r, ok := f.Resolver.(*Relationship)
	return r, ok
}

// CustomStatement returns the custom statement annotation of the field.
func (f *Field) CustomStatement() (*CustomStatement, bool) {
	c, ok := f.Resolver.(*CustomStatement)
	return c, ok
}

// RootKind is the kind of a root field.
type RootKind int

// Root field kinds.
const (
	RootList RootKind = iota
	RootConnection
	RootAggregate
	RootCreate
	RootUpdate
	RootDelete
	RootCustom
)

var rootKinds = [...]string{
	RootList:       "list",
	RootConnection: "connection",
	RootAggregate:  "aggregate",
	RootCreate:     "create",
	RootUpdate:     "update",
	RootDelete:     "delete",
	RootCustom:     "custom",
}

// String returns the kind name.
func (k RootKind) String() string {
	if k >= 0 && int(k) < len(rootKinds) {
		return rootKinds[k]
	}
	return fmt.Sprintf("RootKind(%d)", int(k))
}

// RootField is a field of the Query or Mutation type.
type RootField struct {
	Name string
	Kind RootKind
	// Type is the node type the field reads or writes, or the result type
	// of a custom field if it is an object type.
	Type *Type
	// Field is the declared field of a custom root field.
	Field *Field
}

// Root type names.
const (
	QueryType    = "Query"
	MutationType = "Mutation"
)

// Option configures New.
type Option func(*config) error

type config struct {
	features neoql.Features
}

// WithFeatures sets the feature switches the schema is built under.
func WithFeatures(f neoql.Features) Option {
	return func(c *config) error {
		if f.Pagination.DefaultLimit < 0 || f.Pagination.MaxLimit < 0 {
			return fmt.Errorf("schema: negative pagination limits")
		}
		if f.Pagination.MaxLimit > 0 && f.Pagination.DefaultLimit > f.Pagination.MaxLimit {
			return fmt.Errorf("schema: default limit %d exceeds max limit %d", f.Pagination.DefaultLimit, f.Pagination.MaxLimit)
		}
		c.features = f
		return nil
	}
}

var rules = inflect.NewDefaultRuleset()

// Parse parses SDL text and builds its schema.
func Parse(name, sdl string, opts ...Option) (*Schema, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", name, err)
	}
	return New(doc, opts...)
}

// Load reads and parses an SDL file.
func Load(path string, opts ...Option) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return Parse(path, string(b), opts...)
}

// New builds the schema model of a parsed document. Any malformed
// directive fails the whole build with a MalformedDirectiveError.
func New(doc *ast.SchemaDocument, opts ...Option) (*Schema, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	s := &Schema{
		Features: cfg.features,
		Types:    make(map[string]*Type),
		Query:    make(map[string]*RootField),
		Mutation: make(map[string]*RootField),
	}
	var roots []*ast.Definition
	for _, def := range doc.Definitions {
		if def.Kind != ast.Object {
			continue
		}
		if def.Name == QueryType || def.Name == MutationType {
			roots = append(roots, def)
			continue
		}
		t, err := s.buildType(def)
		if err != nil {
			return nil, err
		}
		s.Types[t.Name] = t
	}
	for _, ext := range doc.Extensions {
		if ext.Kind == ast.Object && (ext.Name == QueryType || ext.Name == MutationType) {
			roots = append(roots, ext)
		}
	}
	if err := s.link(); err != nil {
		return nil, err
	}
	for _, name := range s.typeNames() {
		if t := s.Types[name]; t.Node {
			if err := s.deriveRoots(t); err != nil {
				return nil, err
			}
		}
	}
	for _, def := range roots {
		if err := s.customRoots(def); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) typeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Schema) buildType(def *ast.Definition) (*Type, error) {
	t := &Type{Name: def.Name, fields: make(map[string]*Field)}
	for _, d := range def.Directives {
		a, err := ParseDirective(d, s.Features)
		if err != nil {
			return nil, locate(err, def.Name, "")
		}
		switch a := a.(type) {
		case *Node:
			t.Node = true
			t.Labels = a.Labels
			if len(t.Labels) == 0 {
				t.Labels = []string{def.Name}
			}
		case *Limit:
			t.Limit = a
		case *Plural:
			t.Plural = a.Value
		case *Authorization:
			t.Rules = append(t.Rules, a.Rules...)
		case nil:
		default:
			return nil, malformed(a.Name(), "not allowed on types").At(def.Name, "")
		}
	}
	for _, fd := range def.Fields {
		f, err := s.buildField(fd)
		if err != nil {
			return nil, locate(err, def.Name, fd.Name)
		}
		t.Fields = append(t.Fields, f)
		t.fields[f.Name] = f
	}
	return t, nil
}

func (s *Schema) buildField(fd *ast.FieldDefinition) (*Field, error) {
	f := &Field{Name: fd.Name, Type: fd.Type, Arguments: fd.Arguments}
	for _, d := range fd.Directives {
		a, err := ParseDirective(d, s.Features)
		if err != nil {
			return nil, err
		}
		switch a := a.(type) {
		case *Relationship, *CustomStatement, *Plain:
			if f.Resolver != nil {
				return nil, malformed(d.Name, "conflicts with @%s", f.Resolver.Name())
			}
			f.Resolver = a.(FieldAnnotation)
		case *Sortable:
			f.Sortable = a
		case *Authorization:
			f.Rules = append(f.Rules, a.Rules...)
		case nil:
		default:
			return nil, malformed(a.Name(), "not allowed on fields")
		}
	}
	if f.Resolver == nil {
		f.Resolver = &Plain{Property: fd.Name}
	}
	return f, nil
}

// link checks relationship targets and fills the nested fields of custom
// statements.
func (s *Schema) link() error {
	for _, name := range s.typeNames() {
		t := s.Types[name]
		for _, f := range t.Fields {
			switch r := f.Resolver.(type) {
			case *Relationship:
				target, ok := s.Types[f.TypeName()]
				if !ok || !target.Node {
					return malformed(r.Name(), "target %s is not a @node type", f.TypeName()).At(t.Name, f.Name)
				}
			case *CustomStatement:
				s.nest(r, f)
			}
			if f.Sortable != nil {
				if _, ok := f.CustomStatement(); !ok {
					if _, ok := s.Types[f.TypeName()]; ok {
						return malformed(DirectiveSortable, "object fields cannot be sorted").At(t.Name, f.Name)
					}
				}
			}
		}
	}
	return nil
}

func (s *Schema) nest(c *CustomStatement, f *Field) {
	target, ok := s.Types[f.TypeName()]
	if !ok {
		return
	}
	c.NestedFields = make([]string, len(target.Fields))
	for i, tf := range target.Fields {
		c.NestedFields[i] = tf.Name
	}
}

// Names are the derived root field names of a node type.
type Names struct {
	List, Connection, Aggregate string
	Create, Update, Delete      string
}

// RootNames derives the root field names of a node type, e.g. movies,
// moviesConnection, moviesAggregate, createMovies, updateMovies and
// deleteMovies for Movie.
func RootNames(t *Type) Names {
	plural := t.Plural
	if plural == "" {
		plural = rules.Pluralize(t.Name)
	}
	lower := strings.ToLower(plural[:1]) + plural[1:]
	upper := strings.ToUpper(plural[:1]) + plural[1:]
	return Names{
		List:       lower,
		Connection: lower + "Connection",
		Aggregate:  lower + "Aggregate",
		Create:     "create" + upper,
		Update:     "update" + upper,
		Delete:     "delete" + upper,
	}
}

func (s *Schema) deriveRoots(t *Type) error {
	n := RootNames(t)
	for _, r := range []*RootField{
		{Name: n.List, Kind: RootList, Type: t},
		{Name: n.Connection, Kind: RootConnection, Type: t},
		{Name: n.Aggregate, Kind: RootAggregate, Type: t},
	} {
		if err := s.addRoot(s.Query, r); err != nil {
			return err
		}
	}
	for _, r := range []*RootField{
		{Name: n.Create, Kind: RootCreate, Type: t},
		{Name: n.Update, Kind: RootUpdate, Type: t},
		{Name: n.Delete, Kind: RootDelete, Type: t},
	} {
		if err := s.addRoot(s.Mutation, r); err != nil {
			return err
		}
	}
	return nil
}

// customRoots adds the @cypher fields of Query and Mutation. Other fields
// of the root types are left to the resolver that owns them.
func (s *Schema) customRoots(def *ast.Definition) error {
	root := s.Query
	if def.Name == MutationType {
		root = s.Mutation
	}
	for _, fd := range def.Fields {
		f, err := s.buildField(fd)
		if err != nil {
			return locate(err, def.Name, fd.Name)
		}
		c, ok := f.CustomStatement()
		if !ok {
			continue
		}
		s.nest(c, f)
		r := &RootField{Name: f.Name, Kind: RootCustom, Field: f, Type: s.Types[f.TypeName()]}
		if err := s.addRoot(root, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) addRoot(root map[string]*RootField, r *RootField) error {
	if prev, ok := root[r.Name]; ok {
		typ := r.Name
		if r.Type != nil {
			typ = r.Type.Name
		}
		return malformed(DirectivePlural, "root field %s is derived twice (%s and %s)", r.Name, prev.Kind, r.Kind).At(typ, "")
	}
	root[r.Name] = r
	return nil
}

func locate(err error, typ, field string) error {
	if e, ok := err.(*neoql.MalformedDirectiveError); ok {
		return e.At(typ, field)
	}
	return err
}
