package cypher

import "strings"

// Clause is a Cypher clause. A clause may render to several lines.
type Clause interface {
	Cypher(env *Env) string
}

// ClauseFunc adapts a render function to Clause.
type ClauseFunc func(env *Env) string

// Cypher calls f(env).
func (f ClauseFunc) Cypher(env *Env) string { return f(env) }

// RawClause returns s as a clause.
func RawClause(s string) Clause {
	return ClauseFunc(func(*Env) string { return s })
}

// Item is a projected expression with an optional alias.
type Item struct {
	Expr Expr
	As   *Variable
}

// As returns the item x AS v.
func As(x Expr, v *Variable) Item { return Item{Expr: x, As: v} }

// Pass returns the item v, carrying a variable into the next scope.
func Pass(v *Variable) Item { return Item{Expr: v} }

func (it Item) cypher(env *Env) string {
	s := it.Expr.Cypher(env)
	if it.As == nil {
		return s
	}
	if v, ok := it.Expr.(*Variable); ok && v == it.As {
		return s
	}
	return s + " AS " + it.As.Cypher(env)
}

// Order is a sort key.
type Order struct {
	Expr Expr
	Desc bool
}

// Match is MATCH pattern [WHERE cond].
type Match struct {
	Pattern  *Pattern
	Optional bool
	Where    Expr
}

// Cypher implements Clause.
func (m *Match) Cypher(env *Env) string {
	var b strings.Builder
	if m.Optional {
		b.WriteString("OPTIONAL ")
	}
	b.WriteString("MATCH ")
	b.WriteString(m.Pattern.Cypher(env))
	if m.Where != nil {
		b.WriteString("\nWHERE ")
		b.WriteString(m.Where.Cypher(env))
	}
	return b.String()
}

// Create is CREATE pattern.
type Create struct {
	Pattern *Pattern
}

// Cypher implements Clause.
func (c *Create) Cypher(env *Env) string {
	return "CREATE " + c.Pattern.Cypher(env)
}

// projection renders the shared tail of WITH and RETURN.
type projection struct {
	Star     bool
	Distinct bool
	Items    []Item
	OrderBy  []Order
	Skip     Expr
	Limit    Expr
}

func (p *projection) write(env *Env, kw string, b *strings.Builder) {
	b.WriteString(kw)
	if p.Distinct {
		b.WriteString(" DISTINCT")
	}
	var parts []string
	if p.Star {
		parts = append(parts, "*")
	}
	for _, it := range p.Items {
		parts = append(parts, it.cypher(env))
	}
	b.WriteByte(' ')
	b.WriteString(strings.Join(parts, ", "))
	if len(p.OrderBy) > 0 {
		keys := make([]string, len(p.OrderBy))
		for i, o := range p.OrderBy {
			dir := " ASC"
			if o.Desc {
				dir = " DESC"
			}
			keys[i] = o.Expr.Cypher(env) + dir
		}
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(keys, ", "))
	}
	if p.Skip != nil {
		b.WriteString("\nSKIP ")
		b.WriteString(p.Skip.Cypher(env))
	}
	if p.Limit != nil {
		b.WriteString("\nLIMIT ")
		b.WriteString(p.Limit.Cypher(env))
	}
}

// With is WITH items [ORDER BY ...] [SKIP n] [LIMIT n] [WHERE cond].
type With struct {
	Star     bool
	Distinct bool
	Items    []Item
	OrderBy  []Order
	Skip     Expr
	Limit    Expr
	Where    Expr
}

// WithVars returns WITH vs... carrying each variable into the next scope.
func WithVars(vs ...*Variable) *With {
	w := &With{}
	for _, v := range vs {
		w.Items = append(w.Items, Pass(v))
	}
	return w
}

// Cypher implements Clause.
func (w *With) Cypher(env *Env) string {
	var b strings.Builder
	p := projection{Star: w.Star, Distinct: w.Distinct, Items: w.Items, OrderBy: w.OrderBy, Skip: w.Skip, Limit: w.Limit}
	p.write(env, "WITH", &b)
	if w.Where != nil {
		b.WriteString("\nWHERE ")
		b.WriteString(w.Where.Cypher(env))
	}
	return b.String()
}

// Return is RETURN items [ORDER BY ...] [SKIP n] [LIMIT n].
type Return struct {
	Distinct bool
	Items    []Item
	OrderBy  []Order
	Skip     Expr
	Limit    Expr
}

// Cypher implements Clause.
func (r *Return) Cypher(env *Env) string {
	var b strings.Builder
	p := projection{Distinct: r.Distinct, Items: r.Items, OrderBy: r.OrderBy, Skip: r.Skip, Limit: r.Limit}
	p.write(env, "RETURN", &b)
	return b.String()
}

// Unwind is UNWIND list AS v.
type Unwind struct {
	List Expr
	As   *Variable
}

// Cypher implements Clause.
func (u *Unwind) Cypher(env *Env) string {
	return "UNWIND " + u.List.Cypher(env) + " AS " + u.As.Cypher(env)
}

// SetItem is one assignment of a SET clause.
type SetItem struct {
	Target Expr
	// Merge renders target += value instead of target = value.
	Merge bool
	Value Expr
}

// Set is SET item, item, ...
type Set struct {
	Items []SetItem
}

// Cypher implements Clause.
func (s *Set) Cypher(env *Env) string {
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		op := " = "
		if it.Merge {
			op = " += "
		}
		parts[i] = it.Target.Cypher(env) + op + it.Value.Cypher(env)
	}
	return "SET " + strings.Join(parts, ", ")
}

// Delete is [DETACH] DELETE xs.
type Delete struct {
	Detach bool
	Exprs  []Expr
}

// Cypher implements Clause.
func (d *Delete) Cypher(env *Env) string {
	parts := make([]string, len(d.Exprs))
	for i, x := range d.Exprs {
		parts[i] = x.Cypher(env)
	}
	kw := "DELETE "
	if d.Detach {
		kw = "DETACH DELETE "
	}
	return kw + strings.Join(parts, ", ")
}

// Call is a unit subquery CALL { WITH imports body }.
type Call struct {
	Import []*Variable
	Body   []Clause
}

// Cypher implements Clause. The body is indented by four spaces.
func (c *Call) Cypher(env *Env) string {
	var lines []string
	if len(c.Import) > 0 {
		lines = append(lines, WithVars(c.Import...).Cypher(env))
	}
	for _, cl := range c.Body {
		lines = append(lines, cl.Cypher(env))
	}
	return "CALL {\n" + indent(strings.Join(lines, "\n")) + "\n}"
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n")
}

// Splice returns the user-written statement text as a clause. The params
// are bound under their fixed names; the text is expected to reference
// each of them.
func Splice(text string, params ...*Param) Clause {
	return ClauseFunc(func(env *Env) string {
		for _, p := range params {
			p.Cypher(env)
		}
		return text
	})
}
