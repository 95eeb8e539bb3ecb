// Package querylanguage provides an API for describing graph predicates.
//
// A predicate is a small expression tree over node fields, relationship
// edges, caller claims and literal values. User where arguments and
// authorization rules both parse into it; the compiler renders it to Cypher
// and the authorization package evaluates its claim-only parts ahead of time.
//
//	p, err := querylanguage.ParseWhere(querylanguage.Object{
//	    {Key: "title", Value: querylanguage.Object{{Key: "eq", Value: "Heat"}}},
//	    {Key: "actors", Value: querylanguage.Object{{Key: "some", Value: querylanguage.Object{
//	        {Key: "name", Value: querylanguage.Object{{Key: "startsWith", Value: "Al"}}},
//	    }}}},
//	})
//	p.String() // title == "Heat" && has_edge(actors, has_prefix(name, "Al"))
package querylanguage

import (
	"fmt"
	"strconv"
	"strings"
)

// An Op represents an operator.
type Op int

// Operators.
const (
	OpAnd   Op = iota // logical and.
	OpOr              // logical or.
	OpNot             // logical negation.
	OpEQ              // ==
	OpNEQ             // !=
	OpGT              // >
	OpGTE             // >=
	OpLT              // <
	OpLTE             // <=
	OpIn              // in
	OpNotIn           // not in
)

var ops = [...]string{
	OpAnd:   "&&",
	OpOr:    "||",
	OpNot:   "!",
	OpEQ:    "==",
	OpNEQ:   "!=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpIn:    "in",
	OpNotIn: "not in",
}

// String returns the text representation of an operator.
func (o Op) String() string {
	if o >= 0 && int(o) < len(ops) {
		return ops[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// A Func represents a function expression.
type Func string

// Predicate functions.
const (
	FuncEqualFold     Func = "equal_fold"      // equals case-insensitive
	FuncInFold        Func = "in_fold"         // in list case-insensitive
	FuncContains      Func = "contains"        // substring
	FuncContainsFold  Func = "contains_fold"   // substring case-insensitive
	FuncHasPrefix     Func = "has_prefix"      // string prefix
	FuncHasPrefixFold Func = "has_prefix_fold" // string prefix case-insensitive
	FuncHasSuffix     Func = "has_suffix"      // string suffix
	FuncHasSuffixFold Func = "has_suffix_fold" // string suffix case-insensitive
	FuncIncludes      Func = "includes"        // list field holds a value
	FuncMatches       Func = "matches"         // regular expression
	FuncHasEdge       Func = "has_edge"        // at least one related node matches
	FuncHasNoEdge     Func = "has_no_edge"     // no related node matches
	FuncAllEdges      Func = "all_edges"       // every related node matches
	FuncSingleEdge    Func = "single_edge"     // exactly one related node matches
)

// Folded reports whether the function compares case-insensitively.
func (f Func) Folded() bool {
	switch f {
	case FuncEqualFold, FuncInFold, FuncContainsFold, FuncHasPrefixFold, FuncHasSuffixFold:
		return true
	}
	return false
}

// Quantifier reports whether the function quantifies over related nodes.
func (f Func) Quantifier() bool {
	switch f {
	case FuncHasEdge, FuncHasNoEdge, FuncAllEdges, FuncSingleEdge:
		return true
	}
	return false
}

type (
	// An Expr represents a predicate expression.
	Expr interface {
		fmt.Stringer
		expr()
	}

	// P represents an expression that returns a boolean value.
	P interface {
		Expr
		Negate() P
	}

	// UnaryExpr represents a unary expression.
	UnaryExpr struct {
		Op Op
		X  Expr
	}

	// BinaryExpr represents a binary expression.
	BinaryExpr struct {
		Op   Op
		X, Y Expr
	}

	// NaryExpr represents an n-ary expression.
	NaryExpr struct {
		Op Op
		Xs []Expr
	}

	// CallExpr represents a function call with its arguments.
	CallExpr struct {
		Func Func
		Args []Expr
	}

	// ListExpr represents a list literal.
	ListExpr struct {
		X []Expr
	}

	// Field represents a node field.
	Field struct {
		Name string
	}

	// Edge represents a relationship field.
	Edge struct {
		Name string
	}

	// Claim represents a dotted path into the caller's claims.
	Claim struct {
		Path string
	}

	// Value represents an arbitrary value.
	Value struct {
		V any
	}

	// Bool is a three-valued truth constant. Unknown is what a comparison
	// against a missing claim evaluates to.
	Bool int8
)

// Truth constants.
const (
	False Bool = iota
	True
	Unknown
)

// Not returns a predicate that represents the logical negation of the given predicate.
func Not(x P) P {
	return &UnaryExpr{
		Op: OpNot,
		X:  x,
	}
}

// And returns a composed predicate that represents the logical AND predicate.
func And(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{
			Op: OpAnd,
			X:  x,
			Y:  y,
		}
	}
	return &NaryExpr{
		Op: OpAnd,
		Xs: append([]Expr{x, y}, p2expr(z)...),
	}
}

// Or returns a composed predicate that represents the logical OR predicate.
func Or(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{
			Op: OpOr,
			X:  x,
			Y:  y,
		}
	}
	return &NaryExpr{
		Op: OpOr,
		Xs: append([]Expr{x, y}, p2expr(z)...),
	}
}

// All returns the conjunction of the non-nil predicates, nil if there are none.
func All(ps ...P) P {
	return combine(And, ps)
}

// Any returns the disjunction of the non-nil predicates, nil if there are none.
func Any(ps ...P) P {
	return combine(Or, ps)
}

func combine(f func(P, P, ...P) P, ps []P) P {
	var xs []P
	for _, p := range ps {
		if p != nil {
			xs = append(xs, p)
		}
	}
	switch len(xs) {
	case 0:
		return nil
	case 1:
		return xs[0]
	default:
		return f(xs[0], xs[1], xs[2:]...)
	}
}

// F returns a field expression for the given name.
func F(name string) *Field {
	return &Field{Name: name}
}

// C returns a claim expression for the given dotted path.
func C(path string) *Claim {
	return &Claim{Path: path}
}

// EQ returns a predicate to check if the expressions are equal.
func EQ(x, y Expr) P {
	return &BinaryExpr{
		Op: OpEQ,
		X:  x,
		Y:  y,
	}
}

// GT returns a predicate to check if the expression x > than expression y.
func GT(x, y Expr) P {
	return &BinaryExpr{
		Op: OpGT,
		X:  x,
		Y:  y,
	}
}

// GTE returns a predicate to check if the expression x >= than expression y.
func GTE(x, y Expr) P {
	return &BinaryExpr{
		Op: OpGTE,
		X:  x,
		Y:  y,
	}
}

// LT returns a predicate to check if the expression x < than expression y.
func LT(x, y Expr) P {
	return &BinaryExpr{
		Op: OpLT,
		X:  x,
		Y:  y,
	}
}

// LTE returns a predicate to check if the expression x <= than expression y.
func LTE(x, y Expr) P {
	return &BinaryExpr{
		Op: OpLTE,
		X:  x,
		Y:  y,
	}
}

// In returns a predicate to check if x is a member of y, which is either a
// list literal or a list-valued claim.
func In(x, y Expr) P {
	return &BinaryExpr{
		Op: OpIn,
		X:  x,
		Y:  y,
	}
}

// Call returns a predicate calling f with the given arguments.
func Call(f Func, args ...Expr) P {
	return &CallExpr{Func: f, Args: args}
}

// HasEdgeWith returns a predicate to check if at least one node connected
// by the edge satisfies all the given predicates.
func HasEdgeWith(name string, p ...P) P {
	return edgeWith(FuncHasEdge, name, p)
}

// HasNoEdgeWith returns a predicate to check that no node connected by the
// edge satisfies all the given predicates.
func HasNoEdgeWith(name string, p ...P) P {
	return edgeWith(FuncHasNoEdge, name, p)
}

// AllEdgesWith returns a predicate to check that every node connected by the
// edge satisfies all the given predicates.
func AllEdgesWith(name string, p ...P) P {
	return edgeWith(FuncAllEdges, name, p)
}

// SingleEdgeWith returns a predicate to check that exactly one node
// connected by the edge satisfies all the given predicates.
func SingleEdgeWith(name string, p ...P) P {
	return edgeWith(FuncSingleEdge, name, p)
}

func edgeWith(f Func, name string, p []P) P {
	args := []Expr{&Edge{Name: name}}
	if x := All(p...); x != nil {
		args = append(args, x)
	}
	return Call(f, args...)
}

// Negate negates the predicate.
func (e *BinaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *NaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *UnaryExpr) Negate() P {
	return Not(e)
}

// Negate negates the predicate.
func (e *CallExpr) Negate() P {
	return Not(e)
}

// Negate returns the Kleene negation: Unknown stays Unknown.
func (b Bool) Negate() P {
	switch b {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// String returns the text representation of a binary expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// String returns the text representation of a unary expression.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

// String returns the text representation of an n-ary expression.
func (e *NaryExpr) String() string {
	var s strings.Builder
	s.WriteByte('(')
	for i, x := range e.Xs {
		if i > 0 {
			s.WriteByte(' ')
			s.WriteString(e.Op.String())
			s.WriteByte(' ')
		}
		s.WriteString(x.String())
	}
	s.WriteByte(')')
	return s.String()
}

// String returns the text representation of a call expression.
func (e *CallExpr) String() string {
	var s strings.Builder
	s.WriteString(string(e.Func))
	s.WriteByte('(')
	for i, x := range e.Args {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(x.String())
	}
	s.WriteByte(')')
	return s.String()
}

// String returns the text representation of a list expression.
func (l *ListExpr) String() string {
	var s strings.Builder
	s.WriteByte('[')
	for i, x := range l.X {
		if i > 0 {
			s.WriteByte(',')
		}
		s.WriteString(x.String())
	}
	s.WriteByte(']')
	return s.String()
}

// String returns the field name.
func (f *Field) String() string { return f.Name }

// String returns the edge name.
func (e *Edge) String() string { return e.Name }

// String returns the claim reference as written in rules.
func (c *Claim) String() string { return "$jwt." + c.Path }

// String returns the text representation of a value.
func (v *Value) String() string {
	switch x := v.V.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case []any:
		return values(x).String()
	default:
		return fmt.Sprint(x)
	}
}

// String returns true, false or unknown.
func (b Bool) String() string {
	switch b {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

func values(vs []any) *ListExpr {
	l := &ListExpr{X: make([]Expr, len(vs))}
	for i := range vs {
		if x, ok := vs[i].(Expr); ok {
			l.X[i] = x
			continue
		}
		l.X[i] = &Value{V: vs[i]}
	}
	return l
}

func p2expr(ps []P) []Expr {
	expr := make([]Expr, len(ps))
	for i := range ps {
		expr[i] = ps[i]
	}
	return expr
}

func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*NaryExpr) expr()   {}
func (*CallExpr) expr()   {}
func (*ListExpr) expr()   {}
func (*Field) expr()      {}
func (*Edge) expr()       {}
func (*Claim) expr()      {}
func (*Value) expr()      {}
func (Bool) expr()        {}
