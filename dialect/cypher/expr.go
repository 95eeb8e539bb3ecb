package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Expr is a Cypher expression.
type Expr interface {
	Cypher(env *Env) string
}

// ExprFunc adapts a render function to Expr.
type ExprFunc func(env *Env) string

// Cypher calls f(env).
func (f ExprFunc) Cypher(env *Env) string { return f(env) }

// Variable is a bound name. Unnamed variables get their name from the Env
// the first time they render.
type Variable struct {
	name   string
	prefix string
}

// NewNode returns a variable for a node, rendered as thisN.
func NewNode() *Variable { return &Variable{prefix: "this"} }

// NewVariable returns a variable for any other value, rendered as varN.
func NewVariable() *Variable { return &Variable{prefix: "var"} }

// NamedVariable returns a variable with a fixed name.
func NamedVariable(name string) *Variable { return &Variable{name: name} }

// Cypher implements Expr.
func (v *Variable) Cypher(env *Env) string { return escapeName(env.varName(v)) }

// Prop returns the property access v.key.
func (v *Variable) Prop(key string) Expr { return Prop(v, key) }

// Param is a statement parameter. Parameters are only added to the
// statement when they render.
type Param struct {
	name  string
	value any
}

// NewParam returns a parameter rendered as $paramN.
func NewParam(value any) *Param { return &Param{value: value} }

// NamedParam returns a parameter with a fixed name.
func NamedParam(name string, value any) *Param { return &Param{name: name, value: value} }

// Value returns the bound value.
func (p *Param) Value() any { return p.value }

// Cypher implements Expr.
func (p *Param) Cypher(env *Env) string { return "$" + escapeName(env.paramName(p)) }

// Prop returns the property access of.key.
func Prop(of Expr, key string) Expr {
	return ExprFunc(func(env *Env) string {
		return of.Cypher(env) + "." + escapeName(key)
	})
}

// Raw returns s as is.
func Raw(s string) Expr {
	return ExprFunc(func(*Env) string { return s })
}

// Null is the null literal.
var Null = Raw("null")

// Lit returns a literal for a Go value. Supported values are nil, bool,
// integers, floats, strings, []any and map[string]any.
func Lit(v any) Expr {
	return ExprFunc(func(env *Env) string { return literal(env, v) })
}

func literal(env *Env, v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case Expr:
		return v.Cypher(env)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return quote(v)
	case []any:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = literal(env, v[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = quote(v[i])
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, Lit(v[k]))
		}
		return m.Cypher(env)
	default:
		env.fail(fmt.Errorf("cypher: unsupported literal type %T", v))
		return "null"
	}
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(s string) string { return `"` + quoter.Replace(s) + `"` }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// escapeName returns name, backtick-quoted when it is not a plain identifier.
func escapeName(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Mentions reports whether name occurs in text as a whole token, that is
// neither preceded by an identifier character or '$' nor followed by an
// identifier character.
func Mentions(text, name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], name)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(name)
		if (start == 0 || !identChar(text[start-1]) && text[start-1] != '$') &&
			(end == len(text) || !identChar(text[end])) {
			return true
		}
		i = start + 1
	}
	return false
}

func identChar(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

// Fn returns the function call name(args...).
func Fn(name string, args ...Expr) Expr {
	return fn(name, false, args)
}

// FnDistinct returns the function call name(DISTINCT args...).
func FnDistinct(name string, args ...Expr) Expr {
	return fn(name, true, args)
}

func fn(name string, distinct bool, args []Expr) Expr {
	return ExprFunc(func(env *Env) string {
		var b strings.Builder
		b.WriteString(name)
		b.WriteByte('(')
		if distinct {
			b.WriteString("DISTINCT ")
		}
		for i, a := range args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Cypher(env))
		}
		b.WriteByte(')')
		return b.String()
	})
}

// Count returns count(x).
func Count(x Expr) Expr { return Fn("count", x) }

// Collect returns collect(x).
func Collect(x Expr) Expr { return Fn("collect", x) }

// Head returns head(x).
func Head(x Expr) Expr { return Fn("head", x) }

// Size returns size(x).
func Size(x Expr) Expr { return Fn("size", x) }

// ToLower returns toLower(x).
func ToLower(x Expr) Expr { return Fn("toLower", x) }

// CountAll is count(*).
var CountAll = Raw("count(*)")

// binary is an infix operation.
type binary struct {
	op   string
	l, r Expr
}

func (b *binary) Cypher(env *Env) string {
	return operand(env, b.l) + " " + b.op + " " + operand(env, b.r)
}

func operand(env *Env, x Expr) string {
	if _, ok := x.(*logical); ok {
		return "(" + x.Cypher(env) + ")"
	}
	return x.Cypher(env)
}

// Op returns the infix operation l op r.
func Op(l Expr, op string, r Expr) Expr { return &binary{op: op, l: l, r: r} }

// Comparison and arithmetic shorthands.
func Eq(l, r Expr) Expr         { return Op(l, "=", r) }
func Neq(l, r Expr) Expr        { return Op(l, "<>", r) }
func Lt(l, r Expr) Expr         { return Op(l, "<", r) }
func Lte(l, r Expr) Expr        { return Op(l, "<=", r) }
func Gt(l, r Expr) Expr         { return Op(l, ">", r) }
func Gte(l, r Expr) Expr        { return Op(l, ">=", r) }
func InList(l, r Expr) Expr     { return Op(l, "IN", r) }
func Contains(l, r Expr) Expr   { return Op(l, "CONTAINS", r) }
func StartsWith(l, r Expr) Expr { return Op(l, "STARTS WITH", r) }
func EndsWith(l, r Expr) Expr   { return Op(l, "ENDS WITH", r) }
func Matches(l, r Expr) Expr    { return Op(l, "=~", r) }
func Plus(l, r Expr) Expr       { return Op(l, "+", r) }
func Minus(l, r Expr) Expr      { return Op(l, "-", r) }

// IsNull returns x IS NULL.
func IsNull(x Expr) Expr {
	return ExprFunc(func(env *Env) string { return operand(env, x) + " IS NULL" })
}

// IsNotNull returns x IS NOT NULL.
func IsNotNull(x Expr) Expr {
	return ExprFunc(func(env *Env) string { return operand(env, x) + " IS NOT NULL" })
}

// logical is a conjunction or disjunction.
type logical struct {
	op string
	xs []Expr
}

func (l *logical) Cypher(env *Env) string {
	parts := make([]string, len(l.xs))
	for i, x := range l.xs {
		if n, ok := x.(*logical); ok && n.op != l.op {
			parts[i] = "(" + x.Cypher(env) + ")"
			continue
		}
		parts[i] = x.Cypher(env)
	}
	return strings.Join(parts, " "+l.op+" ")
}

// And returns the conjunction of the non-nil xs. It returns nil when no
// operand is given and the operand itself when only one is.
func And(xs ...Expr) Expr { return join("AND", xs) }

// Or returns the disjunction of the non-nil xs. It returns nil when no
// operand is given and the operand itself when only one is.
func Or(xs ...Expr) Expr { return join("OR", xs) }

func join(op string, xs []Expr) Expr {
	var flat []Expr
	for _, x := range xs {
		switch x := x.(type) {
		case nil:
		case *logical:
			if x.op == op {
				flat = append(flat, x.xs...)
			} else {
				flat = append(flat, x)
			}
		default:
			flat = append(flat, x)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &logical{op: op, xs: flat}
	}
}

// Not returns NOT (x).
func Not(x Expr) Expr {
	return ExprFunc(func(env *Env) string { return "NOT (" + x.Cypher(env) + ")" })
}

// Map is a map literal with ordered keys.
type Map struct {
	keys []string
	vals []Expr
}

// NewMap returns an empty map literal.
func NewMap() *Map { return &Map{} }

// Set appends the entry key: x, replacing an existing entry with the same key.
func (m *Map) Set(key string, x Expr) *Map {
	for i, k := range m.keys {
		if k == key {
			m.vals[i] = x
			return m
		}
	}
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, x)
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Cypher implements Expr.
func (m *Map) Cypher(env *Env) string {
	if len(m.keys) == 0 {
		return "{}"
	}
	parts := make([]string, len(m.keys))
	for i, k := range m.keys {
		parts[i] = escapeName(k) + ": " + m.vals[i].Cypher(env)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// Projection is a map projection over a variable: v { .a, b: x }.
type Projection struct {
	v     *Variable
	items []projItem
}

type projItem struct {
	key   string
	x     Expr
	short bool
}

// Project returns an empty projection over v.
func Project(v *Variable) *Projection { return &Projection{v: v} }

// Prop appends the shorthand entry .key.
func (p *Projection) Prop(key string) *Projection {
	p.items = append(p.items, projItem{key: key, short: true})
	return p
}

// Set appends the entry key: x.
func (p *Projection) Set(key string, x Expr) *Projection {
	p.items = append(p.items, projItem{key: key, x: x})
	return p
}

// Len returns the number of entries.
func (p *Projection) Len() int { return len(p.items) }

// Cypher implements Expr. An empty projection renders as an empty map.
func (p *Projection) Cypher(env *Env) string {
	if len(p.items) == 0 {
		return "{}"
	}
	subject := p.v.Cypher(env)
	parts := make([]string, len(p.items))
	for i, it := range p.items {
		if it.short {
			parts[i] = "." + escapeName(it.key)
		} else {
			parts[i] = escapeName(it.key) + ": " + it.x.Cypher(env)
		}
	}
	return subject + " { " + strings.Join(parts, ", ") + " }"
}

// List returns the list literal [xs...].
func List(xs ...Expr) Expr {
	return ExprFunc(func(env *Env) string {
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = x.Cypher(env)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	})
}

// Comprehension is the list comprehension [v IN list WHERE where | mapping].
type Comprehension struct {
	Var   *Variable
	List  Expr
	Where Expr
	Map   Expr
}

// Cypher implements Expr.
func (c *Comprehension) Cypher(env *Env) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(c.Var.Cypher(env))
	b.WriteString(" IN ")
	b.WriteString(c.List.Cypher(env))
	if c.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where.Cypher(env))
	}
	if c.Map != nil {
		b.WriteString(" | ")
		b.WriteString(c.Map.Cypher(env))
	}
	b.WriteByte(']')
	return b.String()
}

// Index returns list[i].
func Index(list, i Expr) Expr {
	return ExprFunc(func(env *Env) string { return list.Cypher(env) + "[" + i.Cypher(env) + "]" })
}

// Case returns CASE WHEN cond THEN then ELSE els END.
func Case(cond, then, els Expr) Expr {
	return ExprFunc(func(env *Env) string {
		return "CASE WHEN " + cond.Cypher(env) + " THEN " + then.Cypher(env) + " ELSE " + els.Cypher(env) + " END"
	})
}

// Exists returns the existential subquery EXISTS { clauses }.
func Exists(clauses ...Clause) Expr { return subquery("EXISTS", clauses) }

// CountOf returns the counting subquery COUNT { clauses }.
func CountOf(clauses ...Clause) Expr { return subquery("COUNT", clauses) }

// CollectOf returns the collecting subquery COLLECT { clauses }.
func CollectOf(clauses ...Clause) Expr { return subquery("COLLECT", clauses) }

func subquery(kw string, clauses []Clause) Expr {
	return ExprFunc(func(env *Env) string {
		parts := make([]string, len(clauses))
		for i, c := range clauses {
			parts[i] = c.Cypher(env)
		}
		return kw + " { " + strings.Join(parts, " ") + " }"
	})
}

// Reduce is the fold reduce(acc = init, v IN list | x).
type Reduce struct {
	Acc  *Variable
	Init Expr
	Var  *Variable
	List Expr
	Expr Expr
}

// Cypher implements Expr.
func (r *Reduce) Cypher(env *Env) string {
	acc := r.Acc.Cypher(env)
	return "reduce(" + acc + " = " + r.Init.Cypher(env) + ", " + r.Var.Cypher(env) + " IN " + r.List.Cypher(env) + " | " + r.Expr.Cypher(env) + ")"
}
