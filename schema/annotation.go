package schema

import (
	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/dialect/cypher"
)

// Annotation is the typed value of one directive occurrence.
type Annotation interface {
	// Name returns the directive name without the leading '@'.
	Name() string
}

// Directive names.
const (
	DirectiveNode          = "node"
	DirectiveLimit         = "limit"
	DirectivePlural        = "plural"
	DirectiveAuthorization = "authorization"
	DirectiveRelationship  = "relationship"
	DirectiveCypher        = "cypher"
	DirectiveSortable      = "sortable"
	DirectiveAlias         = "alias"
)

type (
	// Node marks a type as graph-backed. Labels defaults to the type name.
	Node struct {
		Labels []string
	}

	// Limit caps page sizes of a type. Default is applied when no page size
	// is requested and Max clamps any requested one. Default <= Max holds
	// when both are set.
	Limit struct {
		Default *int
		Max     *int
	}

	// Plural overrides the plural used in derived root field names.
	Plural struct {
		Value string
	}

	// Authorization holds the rules of a type or field.
	Authorization struct {
		Rules []*authorization.Rule
	}
)

// Name implements Annotation.
func (*Node) Name() string { return DirectiveNode }

// Name implements Annotation.
func (*Limit) Name() string { return DirectiveLimit }

// Name implements Annotation.
func (*Plural) Name() string { return DirectivePlural }

// Name implements Annotation.
func (*Authorization) Name() string { return DirectiveAuthorization }

// Clamp applies the limit to a requested page size. A nil requested size
// means none was given. It returns nil when the page is unbounded.
func (l *Limit) Clamp(requested *int) *int {
	if l == nil {
		return requested
	}
	n := requested
	if n == nil {
		n = l.Default
	}
	if n != nil && l.Max != nil && *n > *l.Max {
		n = l.Max
	}
	if n == nil {
		n = l.Max
	}
	return n
}

// FieldAnnotation describes how a field is resolved. The variants are
// Relationship, CustomStatement, Sortable and Plain.
type FieldAnnotation interface {
	Annotation
	fieldAnnotation()
}

type (
	// Relationship resolves a field by traversing edges of Type.
	Relationship struct {
		Type      string
		Direction cypher.Direction
	}

	// CustomStatement resolves a field with a raw Cypher statement. The
	// statement sees the enclosing node as `this` and must return ColumnName.
	CustomStatement struct {
		Statement  string
		ColumnName string
		// NestedFields holds the fields of the result type that selections
		// may project, nil for scalar results.
		NestedFields []string
	}

	// Sortable controls how a custom field takes part in sorting and
	// filtering. ByValue folds the statement into the comparison instead
	// of materializing it first.
	Sortable struct {
		ByValue bool
	}

	// Plain resolves a field from a node property.
	Plain struct {
		Property string
	}
)

// Name implements Annotation.
func (*Relationship) Name() string { return DirectiveRelationship }

// Name implements Annotation.
func (*CustomStatement) Name() string { return DirectiveCypher }

// Name implements Annotation.
func (*Sortable) Name() string { return DirectiveSortable }

// Name implements Annotation.
func (*Plain) Name() string { return DirectiveAlias }

func (*Relationship) fieldAnnotation()    {}
func (*CustomStatement) fieldAnnotation() {}
func (*Sortable) fieldAnnotation()        {}
func (*Plain) fieldAnnotation()           {}
